// Package source provides RankedSource implementations that read the full
// ranked collection from a backing store for the livesync poller.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/livesync"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/storage"
)

// RedisRankedSource fetches a ranked collection from a Redis ZSET of IDs,
// hydrating payloads from per-entity JSON keys in one MGET.
type RedisRankedSource struct {
	redis      storage.RedisClient
	setKey     string
	keyFor     func(id string) string
	pageSize   int
}

// NewRedisRankedSource creates a source over a ZSET. keyFor maps a member
// ID to the key holding its JSON payload.
func NewRedisRankedSource(redis storage.RedisClient, setKey string, keyFor func(id string) string, pageSize int) *RedisRankedSource {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &RedisRankedSource{
		redis:    redis,
		setKey:   setKey,
		keyFor:   keyFor,
		pageSize: pageSize,
	}
}

// payloadEnvelope pulls the timestamp out of an otherwise opaque payload
type payloadEnvelope struct {
	UpdatedAt time.Time `json:"updated_at"`
}

// Fetch implements livesync.Source. Store failures are transient; a payload
// that exists but does not decode is fatal (the store is reachable but the
// data shape is wrong, retrying will not fix it).
func (s *RedisRankedSource) Fetch(ctx context.Context) ([]livesync.Item, error) {
	members, err := s.redis.ZRevRangeWithScores(ctx, s.setKey, 0, int64(s.pageSize)-1)
	if err != nil {
		return nil, livesync.Transient(fmt.Errorf("failed to read ranked set %s: %w", s.setKey, err))
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = s.keyFor(m.Member)
	}
	payloads, err := s.redis.MGet(ctx, keys...)
	if err != nil {
		return nil, livesync.Transient(fmt.Errorf("failed to hydrate payloads for %s: %w", s.setKey, err))
	}

	items := make([]livesync.Item, 0, len(members))
	for i, m := range members {
		score := m.Score
		item := livesync.Item{
			ID:    m.Member,
			Score: &score,
		}
		if i < len(payloads) && payloads[i] != "" {
			var env payloadEnvelope
			if err := json.Unmarshal([]byte(payloads[i]), &env); err != nil {
				return nil, livesync.Fatal(fmt.Errorf("malformed payload for %s: %w", m.Member, err))
			}
			item.Payload = json.RawMessage(payloads[i])
			item.UpdatedAt = env.UpdatedAt
		}
		items = append(items, item)
	}
	return items, nil
}
