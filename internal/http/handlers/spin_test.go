package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"rewards_app/internal/ledger"
	"rewards_app/internal/spin"
	"rewards_app/internal/store"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newSpinFixture(t *testing.T, pick int) (*Handler, *ledger.Service) {
	t.Helper()
	st := store.NewMemStore()
	svc := ledger.NewService(st, nil)
	if _, err := svc.RegisterAccount(context.Background(), "u1", ""); err != nil {
		t.Fatalf("RegisterAccount: %v", err)
	}

	scheduler := spin.NewScheduler(spin.NewWheelWithPicker(func(n int) int { return pick }), spin.NewMemStamps())
	// no animation wait in tests
	scheduler.SetDurations(0, 0)

	return NewHandler(st, svc, scheduler, RewardConfig{}), svc
}

func doAuthed(h gin.HandlerFunc, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, nil)
	c.Set("user_id", "u1")
	h(c)
	return w
}

func TestSpinClaimCreditsJackpotAsSpinAndWin(t *testing.T) {
	h, svc := newSpinFixture(t, 6) // jackpot segment

	if w := doAuthed(h.SpinStart, http.MethodPost, "/spin"); w.Code != http.StatusOK {
		t.Fatalf("SpinStart status = %d: %s", w.Code, w.Body.String())
	}
	if w := doAuthed(h.SpinClaim, http.MethodPost, "/spin/claim"); w.Code != http.StatusOK {
		t.Fatalf("SpinClaim status = %d: %s", w.Code, w.Body.String())
	}

	acct, err := svc.GetAccount(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.Coins != 200 {
		t.Fatalf("coins = %d after jackpot claim, want 200", acct.Coins)
	}

	entries, err := svc.Entries(context.Background(), "u1", 10, ledger.CategorySpinAndWin)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Amount != 200 || entries[0].Title != "Spin & Win Reward" {
		t.Fatalf("spin_and_win entries = %+v", entries)
	}
}

func TestSpinClaimZeroPrizeWritesNothing(t *testing.T) {
	h, svc := newSpinFixture(t, 4) // "Try Again"

	if w := doAuthed(h.SpinStart, http.MethodPost, "/spin"); w.Code != http.StatusOK {
		t.Fatalf("SpinStart status = %d", w.Code)
	}
	if w := doAuthed(h.SpinClaim, http.MethodPost, "/spin/claim"); w.Code != http.StatusOK {
		t.Fatalf("SpinClaim status = %d: %s", w.Code, w.Body.String())
	}

	acct, _ := svc.GetAccount(context.Background(), "u1")
	if acct.Coins != 0 {
		t.Fatalf("coins = %d after losing spin, want 0", acct.Coins)
	}
	entries, _ := svc.Entries(context.Background(), "u1", 10, "")
	if len(entries) != 0 {
		t.Fatalf("losing spin produced entries: %+v", entries)
	}

	// the cooldown still started
	if w := doAuthed(h.SpinStart, http.MethodPost, "/spin"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second spin status = %d, want 429", w.Code)
	}
}

func TestSpinClaimWithoutSpin(t *testing.T) {
	h, _ := newSpinFixture(t, 0)
	if w := doAuthed(h.SpinClaim, http.MethodPost, "/spin/claim"); w.Code != http.StatusBadRequest {
		t.Fatalf("claim without spin status = %d, want 400", w.Code)
	}
}
