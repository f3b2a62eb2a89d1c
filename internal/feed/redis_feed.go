// Package feed delivers row-level change notifications from Redis pub/sub
// to livesync sessions.
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/livesync"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/models"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/storage"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/pkg/logger"
)

var (
	feedReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_reconnects_total",
			Help: "Change-feed reconnect attempts per channel",
		},
		[]string{"channel"},
	)

	feedDecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_decode_errors_total",
			Help: "Change-feed messages dropped because they failed to decode",
		},
		[]string{"channel"},
	)
)

// ConnState represents the connection state of a feed subscription
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateSubscribed
)

// String returns the connection state name
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// RedisFeed implements livesync.ChangeFeed over a Redis pub/sub channel
// carrying JSON-encoded models.ChangeEvent messages. An optional Filter
// drops events before they reach the session. On channel drop the feed
// resubscribes using the shared retry policy; delivery is at-most-once, so
// consumers treat events as triggers, not as the source of truth.
type RedisFeed struct {
	redis   storage.RedisClient
	channel string
	retry   livesync.RetryPolicy

	// Filter returns whether an event should be delivered. Nil delivers all.
	Filter func(*models.ChangeEvent) bool
}

// NewRedisFeed creates a change feed for a pub/sub channel
func NewRedisFeed(redis storage.RedisClient, channel string, retry livesync.RetryPolicy) *RedisFeed {
	if retry.BaseDelay <= 0 {
		retry = livesync.DefaultRetryPolicy()
	}
	return &RedisFeed{
		redis:   redis,
		channel: channel,
		retry:   retry,
	}
}

// WithFilter returns a copy of the feed that delivers only events for the
// given ID, the per-row scoping used by coin detail views.
func (f *RedisFeed) WithFilter(id string) *RedisFeed {
	clone := *f
	clone.Filter = func(ev *models.ChangeEvent) bool {
		return ev.ID == id
	}
	return &clone
}

// Subscribe implements livesync.ChangeFeed. The returned subscription's
// Stop is idempotent and tears down the pub/sub consumer.
func (f *RedisFeed) Subscribe(ctx context.Context, fn func(livesync.Event)) (livesync.Subscription, error) {
	if fn == nil {
		return nil, fmt.Errorf("feed callback cannot be nil")
	}

	subCtx, cancel := context.WithCancel(ctx)

	msgs, err := f.redis.Subscribe(subCtx, f.channel)
	if err != nil {
		cancel()
		return nil, livesync.Transient(fmt.Errorf("failed to subscribe to %s: %w", f.channel, err))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.consume(subCtx, msgs, fn)
	}()

	sub := livesync.NewSubscription(func() {
		cancel()
		wg.Wait()
	})
	return sub, nil
}

// consume drains messages until ctx is cancelled, resubscribing whenever
// the channel closes underneath us.
func (f *RedisFeed) consume(ctx context.Context, msgs <-chan storage.PubSubMessage, fn func(livesync.Event)) {
	attempt := 0
	for {
		msg, ok := <-msgs
		if !ok {
			if ctx.Err() != nil {
				return
			}
			// channel dropped: SubscriptionDropped is transient
			attempt++
			if !f.retry.ShouldRetry(attempt, livesync.Transient(fmt.Errorf("subscription dropped"))) {
				logger.Error("Change feed gave up reconnecting",
					logger.String("channel", f.channel),
					logger.Int("attempts", attempt),
				)
				return
			}
			feedReconnects.WithLabelValues(f.channel).Inc()
			delay := f.retry.Delay(attempt)
			logger.Warn("Change feed dropped, resubscribing",
				logger.String("channel", f.channel),
				logger.Duration("delay", delay),
				logger.Int("attempt", attempt),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			next, err := f.redis.Subscribe(ctx, f.channel)
			if err != nil {
				msgs = closedChan()
				continue
			}
			attempt = 0
			msgs = next
			continue
		}

		event, err := models.ChangeEventFromJSON([]byte(msg.Message))
		if err != nil || event.Validate() != nil {
			feedDecodeErrors.WithLabelValues(f.channel).Inc()
			logger.Debug("Dropping undecodable change event",
				logger.String("channel", f.channel),
			)
			continue
		}
		if f.Filter != nil && !f.Filter(event) {
			continue
		}
		fn(toLivesyncEvent(event))
	}
}

func toLivesyncEvent(ev *models.ChangeEvent) livesync.Event {
	var kind livesync.EventKind
	switch ev.Kind {
	case models.EventInsert:
		kind = livesync.EventInsert
	case models.EventDelete:
		kind = livesync.EventDelete
	default:
		kind = livesync.EventUpdate
	}
	return livesync.Event{
		Kind: kind,
		Item: livesync.Item{
			ID:        ev.ID,
			Score:     ev.Score,
			Payload:   ev.Payload,
			UpdatedAt: ev.UpdatedAt,
		},
	}
}

func closedChan() <-chan storage.PubSubMessage {
	ch := make(chan storage.PubSubMessage)
	close(ch)
	return ch
}
