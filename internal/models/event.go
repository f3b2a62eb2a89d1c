package models

import (
	"encoding/json"
	"time"
)

// ChangeEventKind represents the type of a row-level change notification
type ChangeEventKind string

const (
	EventInsert ChangeEventKind = "insert"
	EventUpdate ChangeEventKind = "update"
	EventDelete ChangeEventKind = "delete"
)

// ChangeEvent is the wire format of a single change notification published
// on a change channel. Payload is present for insert/update when the event
// is self-contained; delete events carry only the ID.
type ChangeEvent struct {
	Kind      ChangeEventKind `json:"kind"`
	ID        string          `json:"id"`
	Score     *float64        `json:"score,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Validate validates a ChangeEvent
func (e *ChangeEvent) Validate() error {
	if e.ID == "" {
		return ErrInvalidEventID
	}
	switch e.Kind {
	case EventInsert, EventUpdate, EventDelete:
	default:
		return ErrInvalidEventKind
	}
	if e.Kind != EventDelete && e.UpdatedAt.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}

// ChangeEventFromJSON creates a ChangeEvent from JSON bytes
func ChangeEventFromJSON(data []byte) (*ChangeEvent, error) {
	var event ChangeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// ToJSON converts a ChangeEvent to JSON bytes
func (e *ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// PresenceMessageKind represents the type of a presence broadcast
type PresenceMessageKind string

const (
	PresenceJoin  PresenceMessageKind = "join"
	PresenceLeave PresenceMessageKind = "leave"
	PresenceSync  PresenceMessageKind = "sync"
)

// PresenceMessage is the wire format of a presence broadcast for a room.
// Members is populated only for sync messages.
type PresenceMessage struct {
	Kind      PresenceMessageKind `json:"kind"`
	RoomID    string              `json:"room_id"`
	MemberKey string              `json:"member_key,omitempty"`
	Members   []string            `json:"members,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// Validate validates a PresenceMessage
func (m *PresenceMessage) Validate() error {
	if m.RoomID == "" {
		return ErrInvalidRoomID
	}
	switch m.Kind {
	case PresenceJoin, PresenceLeave:
		if m.MemberKey == "" {
			return ErrInvalidMemberKey
		}
	case PresenceSync:
	default:
		return ErrInvalidEventKind
	}
	return nil
}
