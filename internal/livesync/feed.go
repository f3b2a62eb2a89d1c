package livesync

import (
	"context"
	"sync"
)

// Source is a request/response read of the full ranked collection.
// Implementations classify failures via Transient/Fatal.
type Source interface {
	Fetch(ctx context.Context) ([]Item, error)
}

// SourceFunc adapts a function to the Source interface
type SourceFunc func(ctx context.Context) ([]Item, error)

// Fetch implements Source
func (f SourceFunc) Fetch(ctx context.Context) ([]Item, error) {
	return f(ctx)
}

// ChangeFeed is a push channel of row-level change events. The feed is a
// trigger and best-effort patch input, never the sole source of truth:
// delivery is not guaranteed and the poller remains the fallback.
type ChangeFeed interface {
	// Subscribe starts delivering events to fn until the subscription is
	// stopped or ctx is cancelled. Events are delivered sequentially.
	Subscribe(ctx context.Context, fn func(Event)) (Subscription, error)
}

// Subscription is a handle to an active change-feed subscription.
type Subscription interface {
	// Stop tears down the subscription. Idempotent: calling it a second
	// time is a no-op.
	Stop()
}

// SubscriptionFunc wraps a teardown function into an idempotent Subscription
type SubscriptionFunc struct {
	once sync.Once
	stop func()
}

// NewSubscription creates a Subscription that invokes stop exactly once
func NewSubscription(stop func()) *SubscriptionFunc {
	return &SubscriptionFunc{stop: stop}
}

// Stop implements Subscription
func (s *SubscriptionFunc) Stop() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}
