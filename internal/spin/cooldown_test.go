package spin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestScheduler(pick int) (*Scheduler, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
	s := NewScheduler(NewWheelWithPicker(func(n int) int { return pick }), NewMemStamps())
	s.now = func() time.Time { return clock.now }
	return s, clock
}

func TestRemaining(t *testing.T) {
	base := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		elapsed time.Duration
		want    time.Duration
	}{
		{0, time.Hour},
		{30 * time.Minute, 30 * time.Minute},
		{time.Hour, 0},
		{2 * time.Hour, 0},
	}
	for _, tc := range cases {
		got := Remaining(base, base.Add(tc.elapsed), time.Hour)
		if got != tc.want {
			t.Fatalf("Remaining after %v = %v, want %v", tc.elapsed, got, tc.want)
		}
	}
}

func TestSpinLifecycle(t *testing.T) {
	s, clock := newTestScheduler(0) // value 10
	ctx := context.Background()

	st, err := s.Status(ctx, "u1")
	if err != nil || st.State != StateReady {
		t.Fatalf("initial state = %v (err %v), want ready", st.State, err)
	}

	res, err := s.Start(ctx, "u1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.Prize.Value != 10 || res.Jackpot {
		t.Fatalf("prize = %+v", res.Prize)
	}

	st, _ = s.Status(ctx, "u1")
	if st.State != StateSpinning {
		t.Fatalf("state = %v during animation, want spinning", st.State)
	}

	// cannot resolve while the wheel is still animating
	if _, err := s.Resolve(ctx, "u1"); !errors.Is(err, ErrSpinInProgress) {
		t.Fatalf("early resolve error = %v, want ErrSpinInProgress", err)
	}

	clock.advance(DefaultSpinDuration)
	st, _ = s.Status(ctx, "u1")
	if st.State != StateResolving {
		t.Fatalf("state = %v after animation, want resolving", st.State)
	}

	prize, err := s.Resolve(ctx, "u1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if prize.Value != 10 {
		t.Fatalf("resolved prize = %+v", prize)
	}

	st, _ = s.Status(ctx, "u1")
	if st.State != StateCooling {
		t.Fatalf("state = %v after resolve, want cooling", st.State)
	}
	if st.RemainingSeconds != int64(DefaultCooldown.Seconds()) {
		t.Fatalf("remaining = %ds, want full cooldown", st.RemainingSeconds)
	}

	if _, err := s.Start(ctx, "u1"); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("start during cooldown error = %v, want ErrCooldownActive", err)
	}

	clock.advance(DefaultCooldown)
	st, _ = s.Status(ctx, "u1")
	if st.State != StateReady {
		t.Fatalf("state = %v after cooldown elapsed, want ready", st.State)
	}
}

func TestJackpotExtendsAnimation(t *testing.T) {
	s, clock := newTestScheduler(6) // jackpot
	ctx := context.Background()

	res, err := s.Start(ctx, "u1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !res.Jackpot || res.Prize.Value != 200 {
		t.Fatalf("expected jackpot 200, got %+v", res.Prize)
	}

	clock.advance(DefaultSpinDuration)
	st, _ := s.Status(ctx, "u1")
	if st.State != StateSpinning {
		t.Fatalf("state = %v, want spinning during jackpot celebration", st.State)
	}

	clock.advance(DefaultJackpotDelay)
	st, _ = s.Status(ctx, "u1")
	if st.State != StateResolving {
		t.Fatalf("state = %v after celebration, want resolving", st.State)
	}

	prize, err := s.Resolve(ctx, "u1")
	if err != nil || prize.Value != 200 {
		t.Fatalf("prize = %+v err = %v", prize, err)
	}
}

func TestZeroPrizeStillStartsCooldown(t *testing.T) {
	s, clock := newTestScheduler(4) // "Try Again"
	ctx := context.Background()

	if _, err := s.Start(ctx, "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.advance(DefaultSpinDuration)
	prize, err := s.Resolve(ctx, "u1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if prize.Value != 0 {
		t.Fatalf("prize = %+v, want zero", prize)
	}

	st, _ := s.Status(ctx, "u1")
	if st.State != StateCooling {
		t.Fatalf("state = %v after losing spin, want cooling", st.State)
	}
}

func TestDoubleStartRejected(t *testing.T) {
	s, _ := newTestScheduler(0)
	ctx := context.Background()

	if _, err := s.Start(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Start(ctx, "u1"); !errors.Is(err, ErrSpinInProgress) {
		t.Fatalf("second start error = %v, want ErrSpinInProgress", err)
	}
}

func TestConcurrentStartsCreateOneSession(t *testing.T) {
	s, _ := newTestScheduler(0)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Start(ctx, "u1")
		}(i)
	}
	wg.Wait()

	successes := 0
	for i, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrSpinInProgress):
		default:
			t.Fatalf("worker %d: unexpected error %v", i, err)
		}
	}
	if successes != 1 {
		t.Fatalf("%d concurrent starts succeeded, want exactly 1", successes)
	}
}

func TestResolveWithoutSpin(t *testing.T) {
	s, _ := newTestScheduler(0)
	if _, err := s.Resolve(context.Background(), "u1"); !errors.Is(err, ErrNothingToResolve) {
		t.Fatalf("error = %v, want ErrNothingToResolve", err)
	}
}

func TestCooldownSurvivesSchedulerRestart(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
	stamps := NewMemStamps()
	ctx := context.Background()

	s1 := NewScheduler(NewWheelWithPicker(func(n int) int { return 0 }), stamps)
	s1.now = func() time.Time { return clock.now }
	if _, err := s1.Start(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	clock.advance(DefaultSpinDuration)
	if _, err := s1.Resolve(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	// a fresh scheduler over the same stamp store still sees the cooldown
	s2 := NewScheduler(NewWheelWithPicker(func(n int) int { return 0 }), stamps)
	s2.now = func() time.Time { return clock.now }
	st, err := s2.Status(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StateCooling {
		t.Fatalf("state = %v after restart, want cooling", st.State)
	}

	clock.advance(DefaultCooldown)
	st, _ = s2.Status(ctx, "u1")
	if st.State != StateReady {
		t.Fatalf("state = %v after window elapsed, want ready", st.State)
	}
}

func TestCooldownIsPerUser(t *testing.T) {
	s, clock := newTestScheduler(0)
	ctx := context.Background()

	if _, err := s.Start(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	clock.advance(DefaultSpinDuration)
	if _, err := s.Resolve(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	st, _ := s.Status(ctx, "u2")
	if st.State != StateReady {
		t.Fatalf("u2 state = %v, want ready", st.State)
	}
}
