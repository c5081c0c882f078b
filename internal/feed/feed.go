package feed

import (
	"context"
	"sync"
	"time"
)

// Event kinds published after a committed ledger write.
const (
	KindBalance = "balance_updated"
	KindEntry   = "entry_created"
)

// Event is pushed to live views (balance displays, history screens) after a
// ledger transaction commits.
type Event struct {
	Kind   string         `json:"kind"`
	UserID string         `json:"user_id"`
	Data   map[string]any `json:"data,omitempty"`
	At     time.Time      `json:"at"`
}

// Bus carries committed-write events from the ledger to subscribers.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe returns a channel of events and a cancel func. Slow
	// subscribers may miss events; delivery is best effort.
	Subscribe(ctx context.Context) (<-chan Event, func())
}

// MemBus is an in-process Bus.
type MemBus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewMemBus() *MemBus {
	return &MemBus{subs: make(map[chan Event]struct{})}
}

func (b *MemBus) Publish(ctx context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (b *MemBus) Subscribe(ctx context.Context) (<-chan Event, func()) {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}
