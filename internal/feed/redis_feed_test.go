package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/livesync"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/models"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/storage"
)

func publishEvent(t *testing.T, mockRedis *storage.MockRedisClient, channel string, ev *models.ChangeEvent) {
	t.Helper()
	err := mockRedis.Publish(context.Background(), channel, ev)
	require.NoError(t, err)
}

func collectEvents(ch chan livesync.Event, n int, timeout time.Duration) []livesync.Event {
	events := make([]livesync.Event, 0, n)
	deadline := time.After(timeout)
	for len(events) < n {
		select {
		case ev := <-ch:
			events = append(events, ev)
		case <-deadline:
			return events
		}
	}
	return events
}

func TestRedisFeed_DeliversDecodedEvents(t *testing.T) {
	mockRedis := storage.NewMockRedisClient()
	feed := NewRedisFeed(mockRedis, "coin.changes", livesync.DefaultRetryPolicy())

	received := make(chan livesync.Event, 10)
	sub, err := feed.Subscribe(context.Background(), func(ev livesync.Event) {
		received <- ev
	})
	require.NoError(t, err)
	defer sub.Stop()

	now := time.Now().UTC()
	publishEvent(t, mockRedis, "coin.changes", &models.ChangeEvent{
		Kind:      models.EventUpdate,
		ID:        "coin-1",
		Score:     floatPtr(42),
		UpdatedAt: now,
	})
	publishEvent(t, mockRedis, "coin.changes", &models.ChangeEvent{
		Kind: models.EventDelete,
		ID:   "coin-2",
	})

	events := collectEvents(received, 2, time.Second)
	require.Len(t, events, 2)

	assert.Equal(t, livesync.EventUpdate, events[0].Kind)
	assert.Equal(t, "coin-1", events[0].Item.ID)
	require.NotNil(t, events[0].Item.Score)
	assert.Equal(t, 42.0, *events[0].Item.Score)
	assert.True(t, events[0].Item.UpdatedAt.Equal(now))

	assert.Equal(t, livesync.EventDelete, events[1].Kind)
	assert.Equal(t, "coin-2", events[1].Item.ID)
}

func TestRedisFeed_DropsUndecodableMessages(t *testing.T) {
	mockRedis := storage.NewMockRedisClient()
	feed := NewRedisFeed(mockRedis, "coin.changes", livesync.DefaultRetryPolicy())

	received := make(chan livesync.Event, 10)
	sub, err := feed.Subscribe(context.Background(), func(ev livesync.Event) {
		received <- ev
	})
	require.NoError(t, err)
	defer sub.Stop()

	// not a ChangeEvent at all
	require.NoError(t, mockRedis.Publish(context.Background(), "coin.changes", "garbage"))
	// decodes but fails validation (missing ID)
	publishEvent(t, mockRedis, "coin.changes", &models.ChangeEvent{
		Kind:      models.EventUpdate,
		UpdatedAt: time.Now(),
	})
	// a valid event still gets through after the bad ones
	publishEvent(t, mockRedis, "coin.changes", &models.ChangeEvent{
		Kind:      models.EventInsert,
		ID:        "coin-3",
		UpdatedAt: time.Now(),
	})

	events := collectEvents(received, 1, time.Second)
	require.Len(t, events, 1)
	assert.Equal(t, "coin-3", events[0].Item.ID)
}

func TestRedisFeed_FilterScopesToOneID(t *testing.T) {
	mockRedis := storage.NewMockRedisClient()
	feed := NewRedisFeed(mockRedis, "coin.changes", livesync.DefaultRetryPolicy()).WithFilter("coin-7")

	received := make(chan livesync.Event, 10)
	sub, err := feed.Subscribe(context.Background(), func(ev livesync.Event) {
		received <- ev
	})
	require.NoError(t, err)
	defer sub.Stop()

	publishEvent(t, mockRedis, "coin.changes", &models.ChangeEvent{
		Kind: models.EventUpdate, ID: "coin-1", UpdatedAt: time.Now(),
	})
	publishEvent(t, mockRedis, "coin.changes", &models.ChangeEvent{
		Kind: models.EventUpdate, ID: "coin-7", UpdatedAt: time.Now(),
	})
	publishEvent(t, mockRedis, "coin.changes", &models.ChangeEvent{
		Kind: models.EventUpdate, ID: "coin-9", UpdatedAt: time.Now(),
	})

	events := collectEvents(received, 1, time.Second)
	require.Len(t, events, 1)
	assert.Equal(t, "coin-7", events[0].Item.ID)

	// nothing else should arrive
	extra := collectEvents(received, 1, 100*time.Millisecond)
	assert.Empty(t, extra)
}

func TestRedisFeed_SubscribeErrorIsTransient(t *testing.T) {
	mockRedis := storage.NewMockRedisClient()
	mockRedis.SubscribeErr = assert.AnError

	feed := NewRedisFeed(mockRedis, "coin.changes", livesync.DefaultRetryPolicy())
	sub, err := feed.Subscribe(context.Background(), func(livesync.Event) {})
	require.Error(t, err)
	assert.Nil(t, sub)
	assert.Equal(t, livesync.KindTransient, livesync.KindOf(err))
}

func TestRedisFeed_NilCallbackRejected(t *testing.T) {
	feed := NewRedisFeed(storage.NewMockRedisClient(), "coin.changes", livesync.DefaultRetryPolicy())
	_, err := feed.Subscribe(context.Background(), nil)
	assert.Error(t, err)
}

func TestRedisFeed_StopIsIdempotent(t *testing.T) {
	mockRedis := storage.NewMockRedisClient()
	feed := NewRedisFeed(mockRedis, "coin.changes", livesync.DefaultRetryPolicy())

	sub, err := feed.Subscribe(context.Background(), func(livesync.Event) {})
	require.NoError(t, err)

	sub.Stop()
	sub.Stop()

	// a stopped subscription no longer receives anything, and publishing
	// after teardown must not block or panic
	publishEvent(t, mockRedis, "coin.changes", &models.ChangeEvent{
		Kind: models.EventInsert, ID: "coin-1", UpdatedAt: time.Now(),
	})
}

func floatPtr(v float64) *float64 {
	return &v
}
