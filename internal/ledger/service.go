package ledger

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"rewards_app/internal/feed"
	"rewards_app/internal/store"
)

var (
	ErrInvalidAmount        = errors.New("credit amount must be positive")
	ErrUserNotFound         = errors.New("user account not found")
	ErrReferralCodeNotFound = errors.New("referral code not found")
)

// sentinel used inside transaction bodies to abort without writes when an
// operation turns out to be a no-op; never returned to callers.
var errNoAward = errors.New("no award")

// BonusTable is the repeating 7-day login bonus schedule; day 8 pays day 1's
// amount again.
var BonusTable = []int64{10, 15, 20, 25, 30, 35, 50}

const (
	userColl = "users"

	defaultReferralReward = 300
	defaultSignupBonus    = 50
)

// Service performs every balance-affecting operation as one atomic store
// transaction spanning the account document, a new transaction entry and the
// daily earnings aggregate for today. It holds no locks of its own; it relies
// entirely on the store's transaction mechanism.
type Service struct {
	store store.Store
	bus   feed.Bus
	now   func() time.Time

	referralReward int64
	signupBonus    int64
}

func NewService(st store.Store, bus feed.Bus) *Service {
	return &Service{
		store:          st,
		bus:            bus,
		now:            time.Now,
		referralReward: defaultReferralReward,
		signupBonus:    defaultSignupBonus,
	}
}

// NewServiceWithRewards overrides the fixed referral and signup amounts.
func NewServiceWithRewards(st store.Store, bus feed.Bus, referralReward, signupBonus int64) *Service {
	s := NewService(st, bus)
	if referralReward > 0 {
		s.referralReward = referralReward
	}
	if signupBonus > 0 {
		s.signupBonus = signupBonus
	}
	return s
}

func userPath(id string) string  { return userColl + "/" + id }
func entryColl(id string) string { return userPath(id) + "/transactions" }
func dailyPath(id, date string) string {
	return userPath(id) + "/dailyEarnings/" + date
}

// dateKey renders a calendar date with no time component.
func dateKey(t time.Time) string { return t.Format("2006-01-02") }

// Credit atomically adds amount coins to the user's balance, appends a credit
// entry and bumps today's earnings aggregate. A non-positive amount is
// rejected before any store call.
func (s *Service) Credit(ctx context.Context, userID string, amount int64, title, category string) (Account, error) {
	if amount <= 0 {
		return Account{}, ErrInvalidAmount
	}

	today := dateKey(s.now())
	var updated Account
	err := s.store.RunTransaction(ctx, func(tx store.Txn) error {
		acct, err := s.readAccount(tx, userID)
		if err != nil {
			return err
		}
		updated, err = s.applyCredit(tx, acct, amount, title, category, today, nil)
		return err
	})
	if err != nil {
		return Account{}, err
	}

	s.publishCredit(ctx, updated, amount, title, category)
	return updated, nil
}

// DailyBonus is the outcome of a login bonus evaluation. Awarded=false means
// the user already claimed today; that is not an error.
type DailyBonus struct {
	Awarded bool  `json:"awarded"`
	Streak  int   `json:"streak"`
	Amount  int64 `json:"amount"`
}

// AwardDailyBonus evaluates streak eligibility against today's calendar date
// and, when eligible, awards the scheduled bonus in one atomic write that
// also advances activeStreak and lastLoginDate. A second same-day call is a
// safe no-op. On store failure lastLoginDate is not advanced, so the bonus
// can be retried on the next login evaluation.
func (s *Service) AwardDailyBonus(ctx context.Context, userID string) (DailyBonus, error) {
	now := s.now()
	today := dateKey(now)
	yesterday := dateKey(now.AddDate(0, 0, -1))

	var (
		res     DailyBonus
		updated Account
	)
	err := s.store.RunTransaction(ctx, func(tx store.Txn) error {
		acct, err := s.readAccount(tx, userID)
		if err != nil {
			return err
		}
		if acct.LastLoginDate == today {
			return errNoAward
		}

		newStreak := 1
		if acct.LastLoginDate == yesterday {
			newStreak = acct.ActiveStreak + 1
		}
		amount := BonusTable[(newStreak-1)%len(BonusTable)]

		updated, err = s.applyCredit(tx, acct, amount,
			fmt.Sprintf("Daily Bonus: Day %d", newStreak), CategoryDailyBonus, today,
			map[string]any{
				"activeStreak":  newStreak,
				"lastLoginDate": today,
			})
		if err != nil {
			return err
		}
		updated.ActiveStreak = newStreak
		updated.LastLoginDate = today
		res = DailyBonus{Awarded: true, Streak: newStreak, Amount: amount}
		return nil
	})
	if errors.Is(err, errNoAward) {
		return DailyBonus{}, nil
	}
	if err != nil {
		return DailyBonus{}, err
	}

	s.publishCredit(ctx, updated, res.Amount,
		fmt.Sprintf("Daily Bonus: Day %d", res.Streak), CategoryDailyBonus)
	return res, nil
}

// ProcessReferral credits the owner of code with the fixed referral reward
// and increments their referralsMade counter. An empty code is a successful
// no-op: absence of a referral code is valid. A lookup miss reports
// ErrReferralCodeNotFound but must not abort the signup flow that spawned it.
func (s *Service) ProcessReferral(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil
	}

	doc, err := s.store.FindOne(ctx, userColl, "referralCode", code)
	if errors.Is(err, store.ErrNotFound) {
		return ErrReferralCodeNotFound
	}
	if err != nil {
		return err
	}
	referrerID := lastSegment(doc.Path)

	today := dateKey(s.now())
	var updated Account
	err = s.store.RunTransaction(ctx, func(tx store.Txn) error {
		acct, err := s.readAccount(tx, referrerID)
		if err != nil {
			return err
		}
		acct.ReferralsMade++
		updated, err = s.applyCredit(tx, acct, s.referralReward,
			"New User Referral", CategoryReferralCredit, today,
			map[string]any{"referralsMade": acct.ReferralsMade})
		return err
	})
	if err != nil {
		return err
	}

	s.publishCredit(ctx, updated, s.referralReward, "New User Referral", CategoryReferralCredit)
	return nil
}

// ClaimSignupBonus grants the one-time bonus for signing up with a referral
// code. The bonusClaimed flag flip and the credit land in the same atomic
// transaction so a crash between them cannot double-award or strand a
// claimed-but-uncredited account.
func (s *Service) ClaimSignupBonus(ctx context.Context, userID string) (bool, error) {
	today := dateKey(s.now())
	var updated Account
	err := s.store.RunTransaction(ctx, func(tx store.Txn) error {
		acct, err := s.readAccount(tx, userID)
		if err != nil {
			return err
		}
		if acct.BonusClaimed || acct.AppliedReferralCode == "" {
			return errNoAward
		}
		updated, err = s.applyCredit(tx, acct, s.signupBonus,
			"Referral Signup Bonus", CategoryReferralBonus, today,
			map[string]any{"bonusClaimed": true})
		return err
	})
	if errors.Is(err, errNoAward) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.publishCredit(ctx, updated, s.signupBonus, "Referral Signup Bonus", CategoryReferralBonus)
	return true, nil
}

// RegisterAccount creates the users/{id} document with zeroed balances and a
// freshly generated referral code. Registering an existing account is a
// no-op. Awarding the referrer happens separately via ProcessReferral, in the
// background of the signup flow.
func (s *Service) RegisterAccount(ctx context.Context, userID, appliedCode string) (Account, error) {
	appliedCode = strings.ToUpper(strings.TrimSpace(appliedCode))
	code, err := s.newReferralCode(ctx)
	if err != nil {
		return Account{}, err
	}

	var acct Account
	err = s.store.RunTransaction(ctx, func(tx store.Txn) error {
		doc, err := tx.Get(userPath(userID))
		if err != nil {
			return err
		}
		if doc.Exists {
			acct = accountFromDoc(userID, doc)
			return nil
		}

		data := map[string]any{
			"coins":         int64(0),
			"money":         float64(0),
			"totalEarnings": int64(0),
			"referralCode":  code,
			"bonusClaimed":  false,
			"activeStreak":  int64(0),
			"referralsMade": int64(0),
			"createdAt":     store.ServerTimestamp,
			"updatedAt":     store.ServerTimestamp,
		}
		if appliedCode != "" {
			data["appliedReferralCode"] = appliedCode
		}
		tx.Set(userPath(userID), data)
		acct = Account{ID: userID, ReferralCode: code, AppliedReferralCode: appliedCode}
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return acct, nil
}

// newReferralCode generates an 8-char uppercase code, retrying on the
// (unlikely) collision with an existing account.
func (s *Service) newReferralCode(ctx context.Context) (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	for attempt := 0; attempt < 5; attempt++ {
		b := make([]byte, 8)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		for i := range b {
			b[i] = alphabet[int(b[i])%len(alphabet)]
		}
		code := string(b)
		if _, err := s.store.FindOne(ctx, userColl, "referralCode", code); errors.Is(err, store.ErrNotFound) {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique referral code")
}

// GetAccount returns the normalized account document.
func (s *Service) GetAccount(ctx context.Context, userID string) (Account, error) {
	doc, err := s.store.Get(ctx, userPath(userID))
	if err != nil {
		return Account{}, err
	}
	if !doc.Exists {
		return Account{}, ErrUserNotFound
	}
	return accountFromDoc(userID, doc), nil
}

// Entries returns the user's transaction history, newest first, optionally
// filtered by category. The limit applies after filtering, so a filtered page
// is never short-changed by entries of other categories.
func (s *Service) Entries(ctx context.Context, userID string, limit int, category string) ([]Entry, error) {
	fetch := limit
	if category != "" {
		fetch = 0
	}
	docs, err := s.store.List(ctx, entryColl(userID), fetch)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		e := entryFromDoc(doc)
		if category != "" && e.Category != category {
			continue
		}
		entries = append(entries, e)
		if limit > 0 && len(entries) == limit {
			break
		}
	}
	return entries, nil
}

// TodayEarnings returns the coin aggregate for the caller's current calendar
// date; a missing aggregate reads as zero.
func (s *Service) TodayEarnings(ctx context.Context, userID string) (DailyEarnings, error) {
	today := dateKey(s.now())
	doc, err := s.store.Get(ctx, dailyPath(userID, today))
	if err != nil {
		return DailyEarnings{}, err
	}
	return DailyEarnings{
		Date:        today,
		CoinsEarned: asInt64(doc.Data["coinsEarned"]),
		UpdatedAt:   asTime(doc.Data["date"]),
	}, nil
}

// readAccount loads and normalizes the user document inside a transaction.
func (s *Service) readAccount(tx store.Txn, userID string) (Account, error) {
	doc, err := tx.Get(userPath(userID))
	if err != nil {
		return Account{}, err
	}
	if !doc.Exists {
		return Account{}, ErrUserNotFound
	}
	return accountFromDoc(userID, doc), nil
}

// applyCredit stages the three writes every credit consists of: the account
// update, the append-only entry and the daily aggregate upsert. extra fields
// ride along on the account update so callers like AwardDailyBonus stay
// single-transaction. Callers fix day once up front so a transaction retried
// across midnight keeps all writes on the same calendar date.
func (s *Service) applyCredit(tx store.Txn, acct Account, amount int64, title, category, day string, extra map[string]any) (Account, error) {
	dailyDoc, err := tx.Get(dailyPath(acct.ID, day))
	if err != nil {
		return Account{}, err
	}

	acct.Coins += amount
	acct.Money = moneyOf(acct.Coins)
	acct.TotalEarnings += amount

	fields := map[string]any{
		"coins":         acct.Coins,
		"money":         acct.Money,
		"totalEarnings": acct.TotalEarnings,
		"updatedAt":     store.ServerTimestamp,
	}
	for k, v := range extra {
		fields[k] = v
	}
	tx.Update(userPath(acct.ID), fields)

	entry := map[string]any{
		"title":     title,
		"amount":    amount,
		"isCoin":    true,
		"type":      EntryTypeCredit,
		"createdAt": store.ServerTimestamp,
	}
	if category != "" {
		entry["category"] = category
	}
	tx.Set(entryColl(acct.ID)+"/"+s.store.NewID(), entry)

	tx.Merge(dailyPath(acct.ID, day), map[string]any{
		"coinsEarned": asInt64(dailyDoc.Data["coinsEarned"]) + amount,
		"date":        store.ServerTimestamp,
	})
	return acct, nil
}

func (s *Service) publishCredit(ctx context.Context, acct Account, amount int64, title, category string) {
	creditsTotal.WithLabelValues(labelCategory(category)).Inc()
	if s.bus == nil {
		return
	}
	now := s.now()
	_ = s.bus.Publish(ctx, feed.Event{
		Kind:   feed.KindBalance,
		UserID: acct.ID,
		Data: map[string]any{
			"coins":          acct.Coins,
			"money":          acct.Money,
			"total_earnings": acct.TotalEarnings,
		},
		At: now,
	})
	_ = s.bus.Publish(ctx, feed.Event{
		Kind:   feed.KindEntry,
		UserID: acct.ID,
		Data: map[string]any{
			"title":    title,
			"amount":   amount,
			"category": category,
		},
		At: now,
	})
}

func labelCategory(category string) string {
	if category == "" {
		return "uncategorized"
	}
	return category
}
