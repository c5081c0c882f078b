package spin

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Scheduler states. Ready and Cooling are derived lazily from the persisted
// last-spin timestamp; Spinning and Resolving only exist while a session is
// in flight.
type State string

const (
	StateReady     State = "ready"
	StateSpinning  State = "spinning"
	StateResolving State = "resolving"
	StateCooling   State = "cooling"
)

var (
	ErrCooldownActive   = errors.New("spin cooldown is still active")
	ErrSpinInProgress   = errors.New("a spin is already in progress")
	ErrNothingToResolve = errors.New("no spin awaiting resolution")
)

const (
	DefaultCooldown     = time.Hour
	DefaultSpinDuration = 5 * time.Second
	// Extra celebration time before the jackpot prize can be acknowledged.
	DefaultJackpotDelay = 3 * time.Second
)

// StampStore persists the last-spin timestamp per user so the cooldown
// survives a restart.
type StampStore interface {
	Last(ctx context.Context, userID string) (time.Time, bool, error)
	Touch(ctx context.Context, userID string, t time.Time) error
}

// MemStamps is an in-process StampStore.
type MemStamps struct {
	mu     sync.Mutex
	stamps map[string]time.Time
}

func NewMemStamps() *MemStamps {
	return &MemStamps{stamps: make(map[string]time.Time)}
}

func (m *MemStamps) Last(ctx context.Context, userID string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.stamps[userID]
	return t, ok, nil
}

func (m *MemStamps) Touch(ctx context.Context, userID string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stamps[userID] = t
	return nil
}

// session tracks one in-flight spin between Start and Resolve.
type session struct {
	prize     Segment
	startedAt time.Time
}

// Status is a snapshot of the scheduler for one user.
type Status struct {
	State     State         `json:"state"`
	Remaining time.Duration `json:"-"`
	// RemainingSeconds mirrors Remaining for JSON clients ticking a countdown.
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// Result is returned by Start: the selected prize plus what the client needs
// to animate the wheel.
type Result struct {
	Prize    Segment       `json:"prize"`
	Angle    float64       `json:"angle"`
	Duration time.Duration `json:"-"`
	Jackpot  bool          `json:"jackpot"`
}

// Scheduler runs the spin state machine: Ready -> Spinning -> Resolving ->
// Cooling -> Ready. The prize is fixed at Start; crediting happens at Resolve
// so no balance write occurs until the user acknowledges.
type Scheduler struct {
	wheel        *Wheel
	stamps       StampStore
	cooldown     time.Duration
	spinDuration time.Duration
	jackpotDelay time.Duration
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func NewScheduler(wheel *Wheel, stamps StampStore) *Scheduler {
	return &Scheduler{
		wheel:        wheel,
		stamps:       stamps,
		cooldown:     DefaultCooldown,
		spinDuration: DefaultSpinDuration,
		jackpotDelay: DefaultJackpotDelay,
		now:          time.Now,
		sessions:     make(map[string]*session),
	}
}

// SetCooldown overrides the cooldown window.
func (s *Scheduler) SetCooldown(d time.Duration) {
	if d > 0 {
		s.cooldown = d
	}
}

// SetDurations overrides the visual-spin and jackpot celebration windows.
func (s *Scheduler) SetDurations(spinDuration, jackpotDelay time.Duration) {
	if spinDuration >= 0 {
		s.spinDuration = spinDuration
	}
	if jackpotDelay >= 0 {
		s.jackpotDelay = jackpotDelay
	}
}

// Remaining is the pure cooldown function: time left given the last spin and
// the current wall clock.
func Remaining(lastSpin, now time.Time, cooldown time.Duration) time.Duration {
	left := cooldown - now.Sub(lastSpin)
	if left < 0 {
		return 0
	}
	return left
}

// Status derives the current state lazily; no ticker is required, callers may
// poll once per second while displaying the countdown.
func (s *Scheduler) Status(ctx context.Context, userID string) (Status, error) {
	s.mu.Lock()
	sess := s.sessions[userID]
	s.mu.Unlock()

	now := s.now()
	if sess != nil {
		if now.Before(sess.resolvableAt(s)) {
			return Status{State: StateSpinning}, nil
		}
		return Status{State: StateResolving}, nil
	}

	last, ok, err := s.stamps.Last(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	if ok {
		if left := Remaining(last, now, s.cooldown); left > 0 {
			return Status{
				State:            StateCooling,
				Remaining:        left,
				RemainingSeconds: int64(left.Round(time.Second).Seconds()),
			}, nil
		}
	}
	return Status{State: StateReady}, nil
}

func (sess *session) resolvableAt(s *Scheduler) time.Time {
	at := sess.startedAt.Add(s.spinDuration)
	if sess.prize.IsJackpot() {
		at = at.Add(s.jackpotDelay)
	}
	return at
}

// Start moves Ready -> Spinning and fixes the prize.
func (s *Scheduler) Start(ctx context.Context, userID string) (Result, error) {
	st, err := s.Status(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	switch st.State {
	case StateCooling:
		return Result{}, ErrCooldownActive
	case StateSpinning, StateResolving:
		return Result{}, ErrSpinInProgress
	}

	prize := s.wheel.Spin()
	s.mu.Lock()
	// Status dropped the lock; a racing Start may have inserted a session
	// since, and it must not be overwritten.
	if s.sessions[userID] != nil {
		s.mu.Unlock()
		return Result{}, ErrSpinInProgress
	}
	s.sessions[userID] = &session{prize: prize, startedAt: s.now()}
	s.mu.Unlock()

	return Result{
		Prize:    prize,
		Angle:    s.wheel.Angle(prize),
		Duration: s.spinDuration,
		Jackpot:  prize.IsJackpot(),
	}, nil
}

// Resolve acknowledges the finished spin, records the last-spin timestamp
// (regardless of prize value) and returns the prize so the caller can credit
// it. The cooldown window starts here.
func (s *Scheduler) Resolve(ctx context.Context, userID string) (Segment, error) {
	s.mu.Lock()
	sess := s.sessions[userID]
	if sess == nil {
		s.mu.Unlock()
		return Segment{}, ErrNothingToResolve
	}
	if s.now().Before(sess.resolvableAt(s)) {
		s.mu.Unlock()
		return Segment{}, ErrSpinInProgress
	}
	delete(s.sessions, userID)
	s.mu.Unlock()

	if err := s.stamps.Touch(ctx, userID, s.now()); err != nil {
		return Segment{}, err
	}
	return sess.prize, nil
}
