package livesync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeFeed captures the subscriber so tests can inject events directly.
type fakeFeed struct {
	mu      sync.Mutex
	handler func(Event)
	stopped bool
}

func (f *fakeFeed) Subscribe(ctx context.Context, fn func(Event)) (Subscription, error) {
	f.mu.Lock()
	f.handler = fn
	f.mu.Unlock()
	return NewSubscription(func() {
		f.mu.Lock()
		f.stopped = true
		f.mu.Unlock()
	}), nil
}

func (f *fakeFeed) emit(ev Event) {
	f.mu.Lock()
	fn := f.handler
	f.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (f *fakeFeed) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type staticSource struct {
	mu    sync.Mutex
	items []Item
	err   error
}

func (s *staticSource) Fetch(ctx context.Context) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items, s.err
}

func (s *staticSource) set(items []Item, err error) {
	s.mu.Lock()
	s.items = items
	s.err = err
	s.mu.Unlock()
}

func sessionConfig(name string) SessionConfig {
	cfg := DefaultSessionConfig(name)
	cfg.Poll.Interval = time.Hour // tests drive fetches themselves
	cfg.Poll.Debounce = 5 * time.Millisecond
	return cfg
}

func TestSession_InitialLoad(t *testing.T) {
	now := time.Now()
	src := &staticSource{items: []Item{
		itemAt("a", 3, now),
		itemAt("b", 7, now),
	}}
	s := NewSession(sessionConfig("initial-load"), src, nil)

	if s.View().Phase != PhaseIdle {
		t.Errorf("Expected idle before start, got %s", s.View().Phase)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	waitFor(t, func() bool { return s.View().Phase == PhaseLoaded }, "Expected first poll to load the view")

	view := s.View()
	if view.Total != 2 {
		t.Errorf("Expected 2 items, got %d", view.Total)
	}
	if got := ids(view.Items); got[0] != "b" || got[1] != "a" {
		t.Errorf("Expected descending order [b a], got %v", got)
	}
	if view.IsLoading {
		t.Error("Expected loading cleared after first load")
	}
}

func TestSession_TransientErrorBeforeAndAfterLoad(t *testing.T) {
	src := &staticSource{err: Transient(errors.New("connection refused"))}
	onChange := make(chan struct{}, 16)
	cfg := sessionConfig("transient-surface")
	cfg.OnChange = func() {
		select {
		case onChange <- struct{}{}:
		default:
		}
	}
	s := NewSession(cfg, src, nil)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	// before anything loaded the failure is surfaced
	waitFor(t, func() bool { return s.View().Phase == PhaseErrored }, "Expected transient error surfaced before first load")
	if kind := s.View().Error; kind == nil || *kind != KindTransient {
		t.Errorf("Expected transient error kind, got %v", kind)
	}

	// recovery clears the error
	src.set([]Item{itemAt("a", 1, time.Now())}, nil)
	s.poller.Kick()
	waitFor(t, func() bool { return s.View().Phase == PhaseLoaded }, "Expected recovery to load the view")

	// once loaded, transient failures go quiet and the data stays up
	src.set(nil, Transient(errors.New("connection refused")))
	drain(onChange)
	s.poller.Kick()
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		view := s.View()
		if view.Error != nil || view.Phase != PhaseLoaded {
			t.Fatalf("Expected transient failure silent after load, got phase=%s error=%v", view.Phase, view.Error)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if s.View().Total != 1 {
		t.Errorf("Expected stale data retained through failure, got %d items", s.View().Total)
	}
}

func TestSession_FatalErrorAfterLoadKeepsData(t *testing.T) {
	src := &staticSource{items: []Item{itemAt("a", 1, time.Now())}}
	s := NewSession(sessionConfig("fatal-after-load"), src, nil)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()
	waitFor(t, func() bool { return s.View().Phase == PhaseLoaded }, "Expected initial load")

	src.set(nil, Fatal(errors.New("schema mismatch")))
	s.poller.Kick()
	waitFor(t, func() bool { return s.View().Error != nil }, "Expected fatal error surfaced")

	view := s.View()
	if view.Phase != PhaseLoaded {
		t.Errorf("Expected phase to stay loaded, got %s", view.Phase)
	}
	if view.Total != 1 {
		t.Errorf("Expected previous data retained, got %d items", view.Total)
	}
	if *view.Error != KindFatal {
		t.Errorf("Expected fatal kind, got %s", *view.Error)
	}
}

func TestSession_PatchFromEvents(t *testing.T) {
	now := time.Now()
	src := &staticSource{items: []Item{itemAt("a", 1, now)}}
	feed := &fakeFeed{}
	cfg := sessionConfig("patch-events")
	cfg.PatchFromEvents = true
	s := NewSession(cfg, src, feed)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()
	waitFor(t, func() bool { return s.View().Phase == PhaseLoaded }, "Expected initial load")

	feed.emit(Event{Kind: EventInsert, Item: itemAt("b", 9, now.Add(time.Second))})
	waitFor(t, func() bool { return s.View().Total == 2 }, "Expected event to patch the collection")

	if got := ids(s.View().Items); got[0] != "b" {
		t.Errorf("Expected patched item ranked first, got %v", got)
	}

	feed.emit(Event{Kind: EventDelete, Item: Item{ID: "a"}})
	waitFor(t, func() bool { return s.View().Total == 1 }, "Expected delete event applied")
}

func TestSession_EventKicksRefetch(t *testing.T) {
	src := &countingSource{items: []Item{itemAt("a", 1, time.Now())}}
	feed := &fakeFeed{}
	s := NewSession(sessionConfig("kick-refetch"), src, feed)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()
	waitFor(t, func() bool { return src.fetches.Load() == 1 }, "Expected initial load")

	feed.emit(Event{Kind: EventUpdate, Item: Item{ID: "a"}})
	waitFor(t, func() bool { return src.fetches.Load() == 2 }, "Expected event to trigger a refetch")
}

func TestSession_StopMakesSessionInert(t *testing.T) {
	now := time.Now()
	src := &staticSource{items: []Item{itemAt("a", 1, now)}}
	feed := &fakeFeed{}
	cfg := sessionConfig("stop-inert")
	cfg.PatchFromEvents = true
	s := NewSession(cfg, src, feed)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, func() bool { return s.View().Phase == PhaseLoaded }, "Expected initial load")

	s.Stop()
	s.Stop()

	if s.IsRunning() {
		t.Error("Expected session stopped")
	}
	if !feed.isStopped() {
		t.Error("Expected feed subscription released")
	}

	// late events and snapshots are dropped, not applied
	feed.emit(Event{Kind: EventInsert, Item: itemAt("z", 99, now.Add(time.Minute))})
	s.handleSnapshot([]Item{itemAt("x", 1, now), itemAt("y", 2, now)})

	if s.View().Total != 1 {
		t.Errorf("Expected view frozen after stop, got %d items", s.View().Total)
	}
}

func TestSession_WindowAndSortControls(t *testing.T) {
	now := time.Now()
	items := []Item{
		itemAt("a", 1, now),
		itemAt("b", 2, now),
		itemAt("c", 3, now),
	}
	src := &staticSource{items: items}
	cfg := sessionConfig("controls")
	cfg.InitialWindow = 2
	changes := make(chan struct{}, 16)
	cfg.OnChange = func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}
	s := NewSession(cfg, src, nil)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()
	waitFor(t, func() bool { return s.View().Phase == PhaseLoaded }, "Expected initial load")

	if len(s.View().Items) != 2 {
		t.Fatalf("Expected window of 2, got %d", len(s.View().Items))
	}

	drain(changes)
	s.GrowWindow(5)
	if len(s.View().Items) != 3 {
		t.Errorf("Expected grown window clamped to 3, got %d", len(s.View().Items))
	}
	select {
	case <-changes:
	default:
		t.Error("Expected GrowWindow to notify")
	}

	s.SetSortOrder(SortAsc)
	if got := ids(s.View().Items); got[0] != "a" {
		t.Errorf("Expected ascending order after SetSortOrder, got %v", got)
	}
}

func drain(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
