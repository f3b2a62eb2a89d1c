package wsgateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/pkg/logger"
)

// Connection represents a WebSocket connection with a viewer
type Connection struct {
	ID        string
	UserID    string
	Conn      *websocket.Conn
	Send      chan []byte
	lists     map[string]bool // list name -> subscribed
	rooms     map[string]bool // room_id -> joined
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	lastPong  time.Time
	createdAt time.Time
}

// NewConnection creates a new WebSocket connection
func NewConnection(id string, userID string, conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		ID:        id,
		UserID:    userID,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		lists:     make(map[string]bool),
		rooms:     make(map[string]bool),
		ctx:       ctx,
		cancel:    cancel,
		createdAt: time.Now(),
		lastPong:  time.Now(),
	}
}

// SubscribeList marks the connection as watching a list. Returns false if
// it already was.
func (c *Connection) SubscribeList(list string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lists[list] {
		return false
	}
	c.lists[list] = true
	return true
}

// UnsubscribeList clears a list subscription. Returns false if the
// connection was not subscribed.
func (c *Connection) UnsubscribeList(list string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lists[list] {
		return false
	}
	delete(c.lists, list)
	return true
}

// IsSubscribed checks if the connection is watching a list
func (c *Connection) IsSubscribed(list string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lists[list]
}

// Lists returns the lists this connection is watching
func (c *Connection) Lists() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lists := make([]string, 0, len(c.lists))
	for list := range c.lists {
		lists = append(lists, list)
	}
	return lists
}

// JoinRoom marks the connection as present in a room. Returns false if it
// already was.
func (c *Connection) JoinRoom(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rooms[roomID] {
		return false
	}
	c.rooms[roomID] = true
	return true
}

// LeaveRoom clears room membership. Returns false if the connection was
// not in the room.
func (c *Connection) LeaveRoom(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.rooms[roomID] {
		return false
	}
	delete(c.rooms, roomID)
	return true
}

// InRoom checks if the connection is in a room
func (c *Connection) InRoom(roomID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[roomID]
}

// Rooms returns the rooms this connection is in
func (c *Connection) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// UpdateLastPong updates the last pong time
func (c *Connection) UpdateLastPong() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPong = time.Now()
}

// GetLastPong returns the last pong time
func (c *Connection) GetLastPong() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPong
}

// Close closes the connection
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.Send)
		c.Conn.Close()
	})
}

// ReadMessage reads a message from the connection
func (c *Connection) ReadMessage() (messageType int, p []byte, err error) {
	return c.Conn.ReadMessage()
}

// WriteJSON writes a JSON message directly to the connection
func (c *Connection) WriteJSON(v interface{}) error {
	c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.Conn.WriteJSON(v)
}

// SendMessage enqueues a server message for the write pump
func (c *Connection) SendMessage(msg *ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	case <-time.After(1 * time.Second):
		logger.Warn("Dropping message, send channel full",
			logger.String("connection_id", c.ID),
			logger.String("type", msg.Type),
		)
		return nil
	}
}

// SendError sends an error message to the client
func (c *Connection) SendError(code string, message string) error {
	data, err := json.Marshal(&ServerMessage{
		Type:    MessageTypeError,
		Code:    code,
		Message: message,
	})
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		// drop errors rather than block the pump
		return nil
	}
}
