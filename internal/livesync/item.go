// Package livesync keeps a live-ranked list consistent between a periodic
// poll of the backing store and a push-based change feed. One Session owns
// one Poller and one change-feed subscription; both feed a Reconciler whose
// collection is projected through a ViewState for rendering.
package livesync

import (
	"encoding/json"
	"time"
)

// Item is one entry in a live-ranked collection. ID is the primary key and
// unique within a collection. Score is the ranking metric (market cap,
// search count, viewer count); nil means unknown and sorts last. Payload is
// opaque to the synchronizer. UpdatedAt decides whether an incoming value is
// newer than the locally held one.
type Item struct {
	ID        string          `json:"id"`
	Score     *float64        `json:"score,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// EventKind represents the type of a change-feed event
type EventKind int

const (
	EventInsert EventKind = iota
	EventUpdate
	EventDelete
)

// String returns the event kind name
func (k EventKind) String() string {
	switch k {
	case EventInsert:
		return "insert"
	case EventUpdate:
		return "update"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a single change-feed notification. For delete events only
// Item.ID is meaningful.
type Event struct {
	Kind EventKind
	Item Item
}

// Score returns a pointer to v, for building items inline.
func Score(v float64) *float64 {
	return &v
}
