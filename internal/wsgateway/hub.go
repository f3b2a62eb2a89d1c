package wsgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/config"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/livesync"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/presence"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/storage"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/pkg/logger"
)

// Hub manages WebSocket connections, fanning list snapshots and presence
// updates out to subscribed viewers. List sessions are shared through the
// session manager: one viewer on a list costs the same as a thousand.
// Presence is per viewer: each connection that joins a room carries its
// own tracker so the room counts every viewer, not every gateway process.
type Hub struct {
	config      config.GatewayConfig
	presenceCfg config.PresenceConfig
	registry    *ConnectionRegistry
	manager     *livesync.SessionManager
	redis       storage.RedisClient

	mu       sync.Mutex
	lists    map[string]*hubList
	trackers map[string]map[string]*presence.Tracker // connection_id -> room_id -> tracker
	running  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	stats  HubStats
}

// hubList tracks how many gateway connections watch a list and holds the
// single view watcher that feeds all of them
type hubList struct {
	refs    int
	unwatch func()
}

// HubStats holds statistics about the hub
type HubStats struct {
	ConnectionsTotal   int64
	ConnectionsActive  int64
	SnapshotsBroadcast int64
	MessagesSent       int64
	MessagesFailed     int64
	mu                 sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(cfg config.GatewayConfig, presenceCfg config.PresenceConfig, manager *livesync.SessionManager, redis storage.RedisClient) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		config:      cfg,
		presenceCfg: presenceCfg,
		registry:    NewConnectionRegistry(),
		manager:     manager,
		redis:       redis,
		lists:       make(map[string]*hubList),
		trackers:    make(map[string]map[string]*presence.Tracker),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the hub
func (h *Hub) Start() error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = true
	h.mu.Unlock()

	logger.Info("Starting WebSocket hub",
		logger.Int("max_connections", h.config.MaxConnections),
	)

	h.wg.Add(1)
	go h.monitorConnections()

	return nil
}

// Stop stops the hub, closing every connection and releasing every
// shared session
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	logger.Info("Stopping WebSocket hub")

	for _, conn := range h.registry.GetAll() {
		h.Unregister(conn)
	}

	h.cancel()
	h.wg.Wait()
	logger.Info("WebSocket hub stopped")
}

// Register registers a new connection and starts its pumps
func (h *Hub) Register(conn *Connection) {
	h.registry.Add(conn)
	h.incrementConnectionsTotal()

	logger.Info("Connection registered",
		logger.String("connection_id", conn.ID),
		logger.String("user_id", conn.UserID),
		logger.Int("total_connections", h.registry.Count()),
	)

	h.wg.Add(2)
	go h.writePump(conn)
	go h.readPump(conn)
}

// Unregister tears a connection down: list subscriptions are released,
// rooms are left, and the socket is closed. Safe to call more than once.
func (h *Hub) Unregister(conn *Connection) {
	for _, list := range conn.Lists() {
		h.unsubscribeList(conn, list)
	}
	for _, room := range conn.Rooms() {
		h.leaveRoom(conn, room)
	}

	h.registry.Remove(conn.ID)
	conn.Close()

	logger.Info("Connection unregistered",
		logger.String("connection_id", conn.ID),
		logger.Int("total_connections", h.registry.Count()),
	)
}

// handleClientMessage dispatches one decoded client message
func (h *Hub) handleClientMessage(conn *Connection, msg *ClientMessage) error {
	switch msg.Type {
	case MessageTypeSubscribeList:
		if msg.List == "" {
			return conn.SendError("invalid_request", "list field required")
		}
		return h.subscribeList(conn, msg.List)

	case MessageTypeUnsubscribeList:
		if msg.List == "" {
			return conn.SendError("invalid_request", "list field required")
		}
		h.unsubscribeList(conn, msg.List)
		return conn.SendMessage(&ServerMessage{
			Type: MessageTypeSuccess,
			Data: map[string]string{"action": "unsubscribed", "list": msg.List},
		})

	case MessageTypeGrowWindow:
		return h.growWindow(conn, msg)

	case MessageTypeSetSort:
		return h.setSort(conn, msg)

	case MessageTypeJoinRoom:
		if msg.RoomID == "" {
			return conn.SendError("invalid_request", "room_id field required")
		}
		return h.joinRoom(conn, msg.RoomID)

	case MessageTypeLeaveRoom:
		if msg.RoomID == "" {
			return conn.SendError("invalid_request", "room_id field required")
		}
		h.leaveRoom(conn, msg.RoomID)
		return conn.SendMessage(&ServerMessage{
			Type: MessageTypeSuccess,
			Data: map[string]string{"action": "left", "room_id": msg.RoomID},
		})

	case MessageTypePing:
		return conn.SendMessage(&ServerMessage{Type: MessageTypePong})

	default:
		return conn.SendError("unknown_message_type", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

// subscribeList attaches a connection to a shared list session, creating
// the session on the first subscriber across the process
func (h *Hub) subscribeList(conn *Connection, list string) error {
	if !conn.SubscribeList(list) {
		// already subscribed, resend the current snapshot
		return h.sendSnapshot(conn, list)
	}

	session, err := h.manager.Acquire(list)
	if err != nil {
		conn.UnsubscribeList(list)
		return conn.SendError("unknown_list", err.Error())
	}

	h.registry.IndexList(list, conn)

	h.mu.Lock()
	hl, ok := h.lists[list]
	if !ok {
		hl = &hubList{}
		unwatch, werr := h.manager.Watch(list, func() {
			h.broadcastList(list)
		})
		if werr == nil {
			hl.unwatch = unwatch
		}
		h.lists[list] = hl
	}
	hl.refs++
	h.mu.Unlock()

	logger.Debug("Client subscribed to list",
		logger.String("connection_id", conn.ID),
		logger.String("list", list),
	)

	return conn.SendMessage(&ServerMessage{
		Type: MessageTypeListSnapshot,
		Data: snapshotOf(list, session.View()),
	})
}

// unsubscribeList detaches a connection from a list; idempotent
func (h *Hub) unsubscribeList(conn *Connection, list string) {
	if !conn.UnsubscribeList(list) {
		return
	}

	h.registry.UnindexList(list, conn.ID)

	h.mu.Lock()
	if hl, ok := h.lists[list]; ok {
		hl.refs--
		if hl.refs <= 0 {
			if hl.unwatch != nil {
				hl.unwatch()
			}
			delete(h.lists, list)
		}
	}
	h.mu.Unlock()

	h.manager.Release(list)
}

func (h *Hub) growWindow(conn *Connection, msg *ClientMessage) error {
	if msg.List == "" || !conn.IsSubscribed(msg.List) {
		return conn.SendError("not_subscribed", "subscribe to the list first")
	}
	if msg.Grow <= 0 {
		return conn.SendError("invalid_request", "grow must be positive")
	}

	session, ok := h.manager.Get(msg.List)
	if !ok {
		return conn.SendError("unknown_list", "list not active")
	}
	session.GrowWindow(msg.Grow)
	return nil
}

func (h *Hub) setSort(conn *Connection, msg *ClientMessage) error {
	if msg.List == "" || !conn.IsSubscribed(msg.List) {
		return conn.SendError("not_subscribed", "subscribe to the list first")
	}

	var order livesync.SortOrder
	switch msg.Order {
	case "asc":
		order = livesync.SortAsc
	case "desc":
		order = livesync.SortDesc
	default:
		return conn.SendError("invalid_request", "order must be asc or desc")
	}

	session, ok := h.manager.Get(msg.List)
	if !ok {
		return conn.SendError("unknown_list", "list not active")
	}
	session.SetSortOrder(order)
	return nil
}

// joinRoom enrolls the connection in a presence room. Each connection
// carries its own tracker so every viewer counts as one member.
func (h *Hub) joinRoom(conn *Connection, roomID string) error {
	if !conn.JoinRoom(roomID) {
		// already in the room, resend the current count
		h.mu.Lock()
		tracker := h.trackers[conn.ID][roomID]
		h.mu.Unlock()
		if tracker != nil {
			return conn.SendMessage(&ServerMessage{
				Type: MessageTypePresence,
				Data: PresenceUpdate{RoomID: roomID, Count: tracker.Count()},
			})
		}
		return nil
	}

	tracker := presence.NewTracker(h.redis, roomID, h.presenceCfg, func(count int) {
		h.incrementMessagesSent()
		conn.SendMessage(&ServerMessage{
			Type: MessageTypePresence,
			Data: PresenceUpdate{RoomID: roomID, Count: count},
		})
	})

	if err := tracker.Join(h.ctx); err != nil {
		conn.LeaveRoom(roomID)
		logger.Warn("Failed to join presence room",
			logger.ErrorField(err),
			logger.String("connection_id", conn.ID),
			logger.String("room_id", roomID),
		)
		return conn.SendError("join_failed", "failed to join room")
	}

	h.registry.IndexRoom(roomID, conn)
	h.mu.Lock()
	if h.trackers[conn.ID] == nil {
		h.trackers[conn.ID] = make(map[string]*presence.Tracker)
	}
	h.trackers[conn.ID][roomID] = tracker
	h.mu.Unlock()

	logger.Debug("Client joined room",
		logger.String("connection_id", conn.ID),
		logger.String("room_id", roomID),
	)

	return conn.SendMessage(&ServerMessage{
		Type: MessageTypePresence,
		Data: PresenceUpdate{RoomID: roomID, Count: tracker.Count()},
	})
}

// leaveRoom removes the connection from a presence room; idempotent
func (h *Hub) leaveRoom(conn *Connection, roomID string) {
	if !conn.LeaveRoom(roomID) {
		return
	}

	h.registry.UnindexRoom(roomID, conn.ID)

	h.mu.Lock()
	var tracker *presence.Tracker
	if rooms, ok := h.trackers[conn.ID]; ok {
		tracker = rooms[roomID]
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(h.trackers, conn.ID)
		}
	}
	h.mu.Unlock()

	if tracker != nil {
		leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		tracker.Leave(leaveCtx)
		cancel()
	}
}

// broadcastList sends the current snapshot of a list to every subscriber
func (h *Hub) broadcastList(list string) {
	session, ok := h.manager.Get(list)
	if !ok {
		return
	}

	msg := &ServerMessage{
		Type: MessageTypeListSnapshot,
		Data: snapshotOf(list, session.View()),
	}

	connections := h.registry.GetByList(list)
	for _, conn := range connections {
		if err := conn.SendMessage(msg); err != nil {
			h.incrementMessagesFailed()
			continue
		}
		h.incrementMessagesSent()
	}
	h.incrementSnapshotsBroadcast()

	logger.Debug("Broadcast list snapshot",
		logger.String("list", list),
		logger.Int("subscribers", len(connections)),
	)
}

// sendSnapshot sends the current snapshot of a list to one connection
func (h *Hub) sendSnapshot(conn *Connection, list string) error {
	session, ok := h.manager.Get(list)
	if !ok {
		return conn.SendError("unknown_list", "list not active")
	}
	return conn.SendMessage(&ServerMessage{
		Type: MessageTypeListSnapshot,
		Data: snapshotOf(list, session.View()),
	})
}

func snapshotOf(list string, view livesync.Projection) ListSnapshot {
	items := make([]SnapshotItem, 0, len(view.Items))
	for _, item := range view.Items {
		items = append(items, SnapshotItem{
			ID:        item.ID,
			Score:     item.Score,
			UpdatedAt: item.UpdatedAt,
			Payload:   item.Payload,
		})
	}
	snap := ListSnapshot{
		List:      list,
		Items:     items,
		Total:     view.Total,
		IsLoading: view.IsLoading,
		Phase:     view.Phase.String(),
	}
	if view.Error != nil {
		snap.Error = view.Error.String()
	}
	return snap
}

// writePump pumps messages from the hub to the WebSocket connection
func (h *Hub) writePump(conn *Connection) {
	defer h.wg.Done()
	defer h.Unregister(conn)

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.incrementMessagesFailed()
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (h *Hub) readPump(conn *Connection) {
	defer h.wg.Done()
	defer h.Unregister(conn)

	conn.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.UpdateLastPong()
		conn.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("WebSocket error",
					logger.ErrorField(err),
					logger.String("connection_id", conn.ID),
				)
			}
			break
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			conn.SendError("invalid_message", "failed to parse message")
			continue
		}

		if err := h.handleClientMessage(conn, &clientMsg); err != nil {
			logger.Debug("Failed to handle client message",
				logger.ErrorField(err),
				logger.String("connection_id", conn.ID),
				logger.String("type", clientMsg.Type),
			)
		}
	}
}

// monitorConnections removes connections whose pongs have gone quiet
func (h *Hub) monitorConnections() {
	defer h.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case <-ticker.C:
			connections := h.registry.GetAll()
			now := time.Now()
			staleThreshold := h.config.ReadTimeout * 2

			for _, conn := range connections {
				lastPong := conn.GetLastPong()
				if now.Sub(lastPong) > staleThreshold {
					logger.Info("Removing stale connection",
						logger.String("connection_id", conn.ID),
						logger.Duration("idle_time", now.Sub(lastPong)),
					)
					h.Unregister(conn)
				}
			}
		}
	}
}

// GetStats returns hub statistics
func (h *Hub) GetStats() HubStats {
	h.stats.mu.RLock()
	defer h.stats.mu.RUnlock()

	return HubStats{
		ConnectionsTotal:   h.stats.ConnectionsTotal,
		ConnectionsActive:  int64(h.registry.Count()),
		SnapshotsBroadcast: h.stats.SnapshotsBroadcast,
		MessagesSent:       h.stats.MessagesSent,
		MessagesFailed:     h.stats.MessagesFailed,
	}
}

func (h *Hub) incrementConnectionsTotal() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.ConnectionsTotal++
}

func (h *Hub) incrementSnapshotsBroadcast() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.SnapshotsBroadcast++
}

func (h *Hub) incrementMessagesSent() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.MessagesSent++
}

func (h *Hub) incrementMessagesFailed() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.MessagesFailed++
}
