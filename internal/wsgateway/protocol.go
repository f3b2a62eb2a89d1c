package wsgateway

import (
	"encoding/json"
	"time"
)

// Client message types
const (
	MessageTypeSubscribeList   = "subscribe_list"
	MessageTypeUnsubscribeList = "unsubscribe_list"
	MessageTypeGrowWindow      = "grow_window"
	MessageTypeSetSort         = "set_sort"
	MessageTypeJoinRoom        = "join_room"
	MessageTypeLeaveRoom       = "leave_room"
	MessageTypePing            = "ping"
)

// Server message types
const (
	MessageTypeListSnapshot = "list_snapshot"
	MessageTypePresence     = "presence"
	MessageTypeSuccess      = "success"
	MessageTypeError        = "error"
	MessageTypePong         = "pong"
)

// ClientMessage represents a message from the client
type ClientMessage struct {
	Type   string `json:"type"`
	List   string `json:"list,omitempty"`
	RoomID string `json:"room_id,omitempty"`
	Grow   int    `json:"grow,omitempty"`
	Order  string `json:"order,omitempty"`
}

// ServerMessage represents a message to the client
type ServerMessage struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ListSnapshot is the payload of a list_snapshot message
type ListSnapshot struct {
	List      string         `json:"list"`
	Items     []SnapshotItem `json:"items"`
	Total     int            `json:"total"`
	IsLoading bool           `json:"is_loading"`
	Phase     string         `json:"phase"`
	Error     string         `json:"error,omitempty"`
}

// SnapshotItem is one ranked entry inside a snapshot
type SnapshotItem struct {
	ID        string          `json:"id"`
	Score     *float64        `json:"score"`
	UpdatedAt time.Time       `json:"updated_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// PresenceUpdate is the payload of a presence message
type PresenceUpdate struct {
	RoomID string `json:"room_id"`
	Count  int    `json:"count"`
}
