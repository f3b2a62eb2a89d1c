package livesync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/pkg/logger"
)

// PollerConfig holds configuration for a poller
type PollerConfig struct {
	Name     string        // logical list name, used in logs and metrics
	Interval time.Duration // fixed poll period; also the transient-error backoff
	Debounce time.Duration // collapse window for feed-triggered refetches
}

// DefaultPollerConfig returns defaults suited to a high-churn list
func DefaultPollerConfig(name string) PollerConfig {
	return PollerConfig{
		Name:     name,
		Interval: 3 * time.Second,
		Debounce: 250 * time.Millisecond,
	}
}

// Poller periodically fetches the full ranked collection and hands results
// to its callbacks. Polls are serialized: a tick firing while a fetch is
// still in flight is skipped rather than stacked (skip-if-busy). Transient
// failures are swallowed and retried on the next tick; fatal failures are
// reported but never stop the loop.
type Poller struct {
	config     PollerConfig
	source     Source
	onSnapshot func([]Item)
	onError    func(error)

	kick    chan struct{}
	busy    atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewPoller creates a poller. onSnapshot receives each successful fetch;
// onError receives classified fetch errors. Either callback may be nil.
func NewPoller(config PollerConfig, source Source, onSnapshot func([]Item), onError func(error)) *Poller {
	if source == nil {
		panic("source cannot be nil")
	}
	if config.Interval <= 0 {
		config.Interval = 3 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		config:     config,
		source:     source,
		onSnapshot: onSnapshot,
		onError:    onError,
		kick:       make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the poll loop. The first poll runs immediately.
func (p *Poller) Start() error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller %s is already running", p.config.Name)
	}
	p.running = true
	p.mu.Unlock()

	logger.Info("Starting poller",
		logger.String("list", p.config.Name),
		logger.Duration("interval", p.config.Interval),
	)

	p.wg.Add(1)
	go p.run()
	return nil
}

// Stop stops the poll loop and waits for any in-flight poll to finish
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	logger.Info("Poller stopped", logger.String("list", p.config.Name))
}

// IsRunning returns whether the poll loop is running
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Kick requests an immediate refetch, used when a change event arrives on
// a list that refetches instead of patching. Requests arriving while one
// is already pending collapse into it.
func (p *Poller) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.Poll(p.ctx)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.Poll(p.ctx)
		case <-p.kick:
			if p.config.Debounce > 0 {
				// absorb the burst, then fetch once
				timer := time.NewTimer(p.config.Debounce)
				select {
				case <-p.ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
				select {
				case <-p.kick:
				default:
				}
			}
			p.Poll(p.ctx)
		}
	}
}

// Poll performs one fetch cycle (exported for testing). Returns false when
// skipped because another poll is in flight.
func (p *Poller) Poll(ctx context.Context) bool {
	if !p.busy.CompareAndSwap(false, true) {
		pollsSkipped.WithLabelValues(p.config.Name).Inc()
		return false
	}
	defer p.busy.Store(false)

	start := time.Now()
	items, err := p.source.Fetch(ctx)
	pollDuration.WithLabelValues(p.config.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return true // shutting down, not a fetch failure
		}
		kind := KindOf(err)
		pollsTotal.WithLabelValues(p.config.Name, "error").Inc()
		if kind == KindFatal {
			logger.Error("Poll failed",
				logger.ErrorField(err),
				logger.String("list", p.config.Name),
				logger.String("kind", kind.String()),
			)
		} else {
			logger.Debug("Poll failed, retrying next tick",
				logger.ErrorField(err),
				logger.String("list", p.config.Name),
			)
		}
		if p.onError != nil {
			p.onError(err)
		}
		return true
	}

	pollsTotal.WithLabelValues(p.config.Name, "success").Inc()
	if p.onSnapshot != nil {
		p.onSnapshot(items)
	}
	return true
}
