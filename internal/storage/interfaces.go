package storage

import (
	"context"
	"time"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/models"
)

// CoinStorage defines the interface for the Postgres coin catalog
type CoinStorage interface {
	// TopCoins retrieves the top coins ordered by the given metric column
	TopCoins(ctx context.Context, metric RankMetric, limit int) ([]*models.Coin, error)

	// GetCoin retrieves a single coin by ID
	GetCoin(ctx context.Context, coinID string) (*models.Coin, error)

	// UpsertCoin inserts or updates a coin
	UpsertCoin(ctx context.Context, coin *models.Coin) error

	// DeleteCoin removes a coin
	DeleteCoin(ctx context.Context, coinID string) error

	// Close closes the storage connection
	Close() error
}

// RankMetric selects the ranking column for TopCoins queries
type RankMetric string

const (
	RankByMarketCap   RankMetric = "market_cap"
	RankBySearchCount RankMetric = "search_count"
)

// RedisClient defines the interface for Redis operations
type RedisClient interface {
	// Key-value operations
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetJSON(ctx context.Context, key string, dest interface{}) error
	MGet(ctx context.Context, keys ...string) ([]string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Sorted-set operations (ranked lists)
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZAddBatch(ctx context.Context, key string, members map[string]float64) error
	ZRem(ctx context.Context, key string, members ...string) error
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ZMember, error)
	ZCard(ctx context.Context, key string) (int64, error)

	// Set operations (presence membership)
	SetAdd(ctx context.Context, key string, members ...string) error
	SetMembers(ctx context.Context, key string) ([]string, error)
	SetRemove(ctx context.Context, key string, members ...string) error

	// Pub/Sub operations (change feeds, presence broadcasts)
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channels ...string) (<-chan PubSubMessage, error)

	// Close closes the Redis connection
	Close() error
}

// ZMember represents a sorted-set member with its score
type ZMember struct {
	Member string
	Score  float64
}

// PubSubMessage represents a message from Redis pub/sub
type PubSubMessage struct {
	Channel string
	Message string
}
