package models

import (
	"encoding/json"
	"time"
)

// Coin represents a single tradeable coin as stored in the backing store.
type Coin struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Ticker      string    `json:"ticker"`
	ImageURL    string    `json:"image_url,omitempty"`
	Description string    `json:"description,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	MarketCap   *float64  `json:"market_cap,omitempty"`
	SearchCount int64     `json:"search_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate validates a Coin
func (c *Coin) Validate() error {
	if c.ID == "" {
		return ErrInvalidCoinID
	}
	if c.Name == "" {
		return ErrInvalidCoinName
	}
	if c.Price != nil && *c.Price < 0 {
		return ErrInvalidPrice
	}
	if c.UpdatedAt.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}

// CoinFromJSON creates a Coin from JSON bytes
func CoinFromJSON(data []byte) (*Coin, error) {
	var coin Coin
	if err := json.Unmarshal(data, &coin); err != nil {
		return nil, err
	}
	return &coin, nil
}

// ToJSON converts a Coin to JSON bytes
func (c *Coin) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}

// Stream represents a live stream entry in the active-streams list.
type Stream struct {
	ID          string    `json:"id"`
	CoinID      string    `json:"coin_id,omitempty"`
	Title       string    `json:"title"`
	HostID      string    `json:"host_id"`
	ViewerCount int64     `json:"viewer_count"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StreamFromJSON creates a Stream from JSON bytes
func StreamFromJSON(data []byte) (*Stream, error) {
	var stream Stream
	if err := json.Unmarshal(data, &stream); err != nil {
		return nil, err
	}
	return &stream, nil
}

// ToJSON converts a Stream to JSON bytes
func (s *Stream) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// Redis key layout. ZSETs hold the ranked id sets, one JSON key per coin
// holds the payload, and pub/sub channels carry change notifications.
const (
	TrendingSetKey = "coins:trending"
	ExploreSetKey  = "coins:explore"
	StreamsSetKey  = "streams:active"

	CoinChangesChannel   = "coins.changes"
	StreamChangesChannel = "streams.changes"
)

// GetCoinKey returns the Redis key holding a coin's JSON payload
func GetCoinKey(coinID string) string {
	return "coin:" + coinID
}

// GetStreamKey returns the Redis key holding a stream's JSON payload
func GetStreamKey(streamID string) string {
	return "stream:" + streamID
}

// GetPresenceChannel returns the pub/sub channel for a room's presence broadcasts
func GetPresenceChannel(roomID string) string {
	return "presence.room." + roomID
}

// GetPresenceSetKey returns the Redis SET key holding a room's current members
func GetPresenceSetKey(roomID string) string {
	return "presence:members:" + roomID
}
