package ledger

import (
	"encoding/json"
	"time"

	"rewards_app/internal/store"
)

// Entry categories used for client-side filtering of history views.
const (
	CategoryReferralBonus  = "referral_bonus"
	CategoryWatchAndEarn   = "watch_and_earn"
	CategorySpinAndWin     = "spin_and_win"
	CategoryDailyBonus     = "daily_bonus"
	CategoryReferralCredit = "referral_credit"
)

const (
	EntryTypeCredit = "credit"
	EntryTypeDebit  = "debit"
)

// CoinsPerUnit is the fixed exchange rate: 10 coins = 1 currency unit.
// money is persisted redundantly but is always coins/10.
const CoinsPerUnit = 10

// Account is a user's wallet document (users/{id}). Optional fields get
// their defaults exactly once, when the raw document is normalized.
type Account struct {
	ID                  string    `json:"id"`
	Coins               int64     `json:"coins"`
	Money               float64   `json:"money"`
	TotalEarnings       int64     `json:"total_earnings"`
	ReferralCode        string    `json:"referral_code"`
	AppliedReferralCode string    `json:"applied_referral_code,omitempty"`
	BonusClaimed        bool      `json:"bonus_claimed"`
	ActiveStreak        int       `json:"active_streak"`
	LastLoginDate       string    `json:"last_login_date,omitempty"` // YYYY-MM-DD
	ReferralsMade       int64     `json:"referrals_made"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Entry is one append-only transaction record
// (users/{id}/transactions/{autoId}).
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Amount    int64     `json:"amount"`
	Type      string    `json:"type"`
	IsCoin    bool      `json:"is_coin"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DailyEarnings is the per-user per-calendar-date coin aggregate
// (users/{id}/dailyEarnings/{YYYY-MM-DD}).
type DailyEarnings struct {
	Date        string    `json:"date"`
	CoinsEarned int64     `json:"coins_earned"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func accountFromDoc(id string, doc store.Document) Account {
	d := doc.Data
	return Account{
		ID:                  id,
		Coins:               asInt64(d["coins"]),
		Money:               asFloat64(d["money"]),
		TotalEarnings:       asInt64(d["totalEarnings"]),
		ReferralCode:        asString(d["referralCode"]),
		AppliedReferralCode: asString(d["appliedReferralCode"]),
		BonusClaimed:        asBool(d["bonusClaimed"]),
		ActiveStreak:        int(asInt64(d["activeStreak"])),
		LastLoginDate:       asString(d["lastLoginDate"]),
		ReferralsMade:       asInt64(d["referralsMade"]),
		CreatedAt:           asTime(d["createdAt"]),
		UpdatedAt:           asTime(d["updatedAt"]),
	}
}

func entryFromDoc(doc store.Document) Entry {
	d := doc.Data
	return Entry{
		ID:        lastSegment(doc.Path),
		Title:     asString(d["title"]),
		Amount:    asInt64(d["amount"]),
		Type:      asString(d["type"]),
		IsCoin:    asBool(d["isCoin"]),
		Category:  asString(d["category"]),
		CreatedAt: asTime(d["createdAt"]),
	}
}

func lastSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// moneyOf derives the currency balance from a coin balance.
func moneyOf(coins int64) float64 {
	return float64(coins) / CoinsPerUnit
}

// The store hands back jsonb values as json.Number and timestamps as RFC3339
// strings; the in-memory store keeps native Go values. These coercions are
// the single place that difference is absorbed.

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}
		}
		return parsed
	default:
		return time.Time{}
	}
}
