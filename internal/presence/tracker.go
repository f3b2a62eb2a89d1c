// Package presence tracks the live audience of a room. Membership is
// derived from join/leave/sync broadcasts on the room's pub/sub channel,
// backed by a Redis SET for authoritative resyncs. Nothing is persisted:
// after a reconnect the set is re-read rather than trusted.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/config"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/livesync"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/models"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/storage"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/pkg/logger"
)

var (
	roomMembers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "presence_room_members",
			Help: "Current member count per room",
		},
		[]string{"room"},
	)
)

// Tracker tracks presence for one room on behalf of one participant. It
// owns an ephemeral member key, broadcasts its own join/leave, and keeps a
// PresenceCounter in step with everyone else's broadcasts.
type Tracker struct {
	redis    storage.RedisClient
	roomID   string
	selfKey  string
	resync   time.Duration
	counter  *livesync.PresenceCounter
	onChange func(count int)

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	leaveOnce sync.Once
	mu        sync.Mutex
	joined    bool
}

// NewTracker creates a tracker for a room. onChange is invoked with the new
// count after every membership change; it may be nil.
func NewTracker(redis storage.RedisClient, roomID string, cfg config.PresenceConfig, onChange func(count int)) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	resync := cfg.ResyncInterval
	if resync <= 0 {
		resync = 30 * time.Second
	}
	return &Tracker{
		redis:    redis,
		roomID:   roomID,
		selfKey:  uuid.NewString(),
		resync:   resync,
		counter:  livesync.NewPresenceCounter(),
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SelfKey returns this participant's ephemeral member key
func (t *Tracker) SelfKey() string {
	return t.selfKey
}

// Join enters the room: registers self in the membership set, broadcasts a
// join, loads the authoritative member list, and starts listening.
func (t *Tracker) Join(ctx context.Context) error {
	t.mu.Lock()
	if t.joined {
		t.mu.Unlock()
		return fmt.Errorf("already joined room %s", t.roomID)
	}
	t.joined = true
	t.mu.Unlock()

	setKey := models.GetPresenceSetKey(t.roomID)
	channel := models.GetPresenceChannel(t.roomID)

	msgs, err := t.redis.Subscribe(t.ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to presence channel: %w", err)
	}

	if err := t.redis.SetAdd(ctx, setKey, t.selfKey); err != nil {
		t.cancel()
		return fmt.Errorf("failed to register presence: %w", err)
	}
	t.broadcast(ctx, models.PresenceJoin)

	// authoritative snapshot after subscribing, so no broadcast is missed
	members, err := t.redis.SetMembers(ctx, setKey)
	if err != nil {
		logger.Warn("Failed to load presence members, waiting for resync",
			logger.ErrorField(err),
			logger.String("room", t.roomID),
		)
	} else {
		t.counter.Sync(members)
		t.notify()
	}

	t.wg.Add(1)
	go t.run(msgs)

	logger.Info("Joined room",
		logger.String("room", t.roomID),
		logger.String("member_key", t.selfKey),
	)
	return nil
}

// Leave exits the room: broadcasts a leave, deregisters, stops listening,
// and clears local membership. Idempotent.
func (t *Tracker) Leave(ctx context.Context) {
	t.leaveOnce.Do(func() {
		t.mu.Lock()
		wasJoined := t.joined
		t.joined = false
		t.mu.Unlock()
		if !wasJoined {
			return
		}

		setKey := models.GetPresenceSetKey(t.roomID)
		if err := t.redis.SetRemove(ctx, setKey, t.selfKey); err != nil {
			logger.Warn("Failed to deregister presence",
				logger.ErrorField(err),
				logger.String("room", t.roomID),
			)
		}
		t.broadcast(ctx, models.PresenceLeave)

		t.cancel()
		t.wg.Wait()
		t.counter.Clear()
		roomMembers.DeleteLabelValues(t.roomID)
		logger.Info("Left room", logger.String("room", t.roomID))
	})
}

// Count returns the current member count
func (t *Tracker) Count() int {
	return t.counter.Count()
}

// Members returns the current member keys
func (t *Tracker) Members() []string {
	return t.counter.Members()
}

func (t *Tracker) run(msgs <-chan storage.PubSubMessage) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.resync)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.resyncMembers()
		case msg, ok := <-msgs:
			if !ok {
				if t.ctx.Err() != nil {
					return
				}
				// dropped channel: resubscribe and re-sync, never trust
				// stale membership across the gap
				next, err := t.redis.Subscribe(t.ctx, models.GetPresenceChannel(t.roomID))
				if err != nil {
					select {
					case <-t.ctx.Done():
						return
					case <-time.After(time.Second):
					}
					continue
				}
				msgs = next
				t.resyncMembers()
				continue
			}
			t.handleMessage(msg)
		}
	}
}

func (t *Tracker) handleMessage(msg storage.PubSubMessage) {
	var pm models.PresenceMessage
	if err := json.Unmarshal([]byte(msg.Message), &pm); err != nil || pm.Validate() != nil {
		logger.Debug("Dropping undecodable presence message",
			logger.String("room", t.roomID),
		)
		return
	}

	switch pm.Kind {
	case models.PresenceJoin:
		t.counter.Join(pm.MemberKey)
	case models.PresenceLeave:
		t.counter.Leave(pm.MemberKey)
	case models.PresenceSync:
		t.counter.Sync(pm.Members)
	}
	t.notify()
}

func (t *Tracker) resyncMembers() {
	members, err := t.redis.SetMembers(t.ctx, models.GetPresenceSetKey(t.roomID))
	if err != nil {
		logger.Debug("Presence resync failed",
			logger.ErrorField(err),
			logger.String("room", t.roomID),
		)
		return
	}
	t.counter.Sync(members)
	t.notify()
}

func (t *Tracker) broadcast(ctx context.Context, kind models.PresenceMessageKind) {
	msg := models.PresenceMessage{
		Kind:      kind,
		RoomID:    t.roomID,
		MemberKey: t.selfKey,
		Timestamp: time.Now().UTC(),
	}
	if err := t.redis.Publish(ctx, models.GetPresenceChannel(t.roomID), msg); err != nil {
		logger.Warn("Failed to broadcast presence",
			logger.ErrorField(err),
			logger.String("room", t.roomID),
			logger.String("kind", string(kind)),
		)
	}
}

func (t *Tracker) notify() {
	count := t.counter.Count()
	roomMembers.WithLabelValues(t.roomID).Set(float64(count))
	if t.onChange != nil {
		t.onChange(count)
	}
}
