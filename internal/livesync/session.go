package livesync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/pkg/logger"
)

// SessionConfig holds configuration for a sync session
type SessionConfig struct {
	Name            string
	Poll            PollerConfig
	SortOrder       SortOrder
	InitialWindow   int
	PatchFromEvents bool // apply self-contained events directly instead of refetching
	Retry           RetryPolicy
	OnChange        func() // invoked after the collection visibly changes; may be nil
}

// DefaultSessionConfig returns defaults for a high-churn list
func DefaultSessionConfig(name string) SessionConfig {
	return SessionConfig{
		Name:          name,
		Poll:          DefaultPollerConfig(name),
		SortOrder:     SortDesc,
		InitialWindow: 30,
		Retry:         DefaultRetryPolicy(),
	}
}

// Session owns one poller and one change-feed subscription for a logical
// list, merging both through a reconciler into a view. The change feed is
// an accelerator: with it entirely unavailable the session stays correct,
// merely staler, on poller freshness alone.
//
// Events either patch the collection directly (PatchFromEvents, for feeds
// whose payload is self-contained) or kick a debounced refetch. One session
// uses one strategy consistently; mixing the two per event is where
// partial-state bugs come from.
type Session struct {
	config SessionConfig
	source Source
	feed   ChangeFeed

	rec    *Reconciler
	view   *ViewState
	poller *Poller
	sub    Subscription

	ctx      context.Context
	cancel   context.CancelFunc
	loaded   atomic.Bool
	stopOnce sync.Once
	mu       sync.Mutex
	running  bool
}

// NewSession creates a session. feed may be nil for poll-only lists.
func NewSession(config SessionConfig, source Source, feed ChangeFeed) *Session {
	if source == nil {
		panic("source cannot be nil")
	}
	if config.Name == "" {
		config.Name = "default"
	}
	if config.Poll.Name == "" {
		config.Poll.Name = config.Name
	}
	if config.Retry.Classify == nil {
		config.Retry.Classify = KindOf
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		config: config,
		source: source,
		feed:   feed,
		rec:    NewReconciler(),
		view:   NewViewState(config.SortOrder, config.InitialWindow),
		ctx:    ctx,
		cancel: cancel,
	}
	s.poller = NewPoller(config.Poll, source, s.handleSnapshot, s.handleError)
	return s
}

// Start subscribes to the change feed and starts the poll loop
func (s *Session) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("session %s is already running", s.config.Name)
	}
	s.running = true
	s.mu.Unlock()

	s.view.MarkLoading()

	if s.feed != nil {
		sub, err := s.feed.Subscribe(s.ctx, s.handleEvent)
		if err != nil {
			// feed unavailability degrades freshness, not correctness
			logger.Warn("Change feed unavailable, continuing poll-only",
				logger.ErrorField(err),
				logger.String("list", s.config.Name),
			)
		} else {
			s.sub = sub
		}
	}

	if err := s.poller.Start(); err != nil {
		return err
	}

	sessionsActive.Inc()
	logger.Info("Sync session started",
		logger.String("list", s.config.Name),
		logger.Bool("patch_from_events", s.config.PatchFromEvents),
	)
	return nil
}

// Stop tears the session down: the feed subscription is released exactly
// once, the reconciler is closed so late responses become inert, and the
// poll loop is drained.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		wasRunning := s.running
		s.running = false
		s.mu.Unlock()
		if !wasRunning {
			return
		}

		if s.sub != nil {
			s.sub.Stop()
		}
		s.rec.Close()
		s.cancel()
		s.poller.Stop()
		sessionsActive.Dec()
		logger.Info("Sync session stopped", logger.String("list", s.config.Name))
	})
}

// IsRunning returns whether the session is running
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Name returns the logical list name
func (s *Session) Name() string {
	return s.config.Name
}

// View returns the current sorted, windowed projection
func (s *Session) View() Projection {
	return s.view.View()
}

// SetSortOrder changes the view sort direction
func (s *Session) SetSortOrder(order SortOrder) {
	s.view.SetSortOrder(order)
	s.notify()
}

// GrowWindow grows the visible window by n
func (s *Session) GrowWindow(n int) {
	s.view.GrowWindow(n)
	s.notify()
}

// Reconciler exposes the authoritative collection, read-only by convention
func (s *Session) Reconciler() *Reconciler {
	return s.rec
}

func (s *Session) handleSnapshot(items []Item) {
	if s.rec.Closed() {
		return
	}
	s.rec.ApplyFullSnapshot(items)
	s.view.SetItems(s.rec.Items())
	s.loaded.Store(true)
	s.view.MarkLoaded()
	s.notify()
}

func (s *Session) handleError(err error) {
	kind := s.config.Retry.Classify(err)
	if kind == KindFatal {
		s.view.MarkError(KindFatal)
		s.notify()
		return
	}
	// transient: silent after the first successful load, surfaced before it
	if !s.loaded.Load() {
		s.view.MarkError(KindTransient)
		s.notify()
	}
}

func (s *Session) handleEvent(ev Event) {
	if s.rec.Closed() {
		return
	}
	feedEventsTotal.WithLabelValues(s.config.Name, ev.Kind.String()).Inc()

	if s.config.PatchFromEvents {
		s.rec.ApplyEvent(ev)
		s.view.SetItems(s.rec.Items())
		s.notify()
		return
	}
	s.poller.Kick()
}

func (s *Session) notify() {
	if s.config.OnChange != nil {
		s.config.OnChange()
	}
}
