package wsgateway

import (
	"sync"
)

// ConnectionRegistry manages all active WebSocket connections, indexed by
// list subscription and by presence room for targeted broadcasts
type ConnectionRegistry struct {
	connections map[string]*Connection            // connection_id -> connection
	byList      map[string]map[string]*Connection // list -> connection_id -> connection
	byRoom      map[string]map[string]*Connection // room_id -> connection_id -> connection
	mu          sync.RWMutex
}

// NewConnectionRegistry creates a new connection registry
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		connections: make(map[string]*Connection),
		byList:      make(map[string]map[string]*Connection),
		byRoom:      make(map[string]map[string]*Connection),
	}
}

// Add adds a connection to the registry
func (r *ConnectionRegistry) Add(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[conn.ID] = conn
}

// Remove removes a connection and all of its index entries
func (r *ConnectionRegistry) Remove(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[connectionID]; !exists {
		return
	}
	delete(r.connections, connectionID)

	for list, conns := range r.byList {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(r.byList, list)
		}
	}
	for room, conns := range r.byRoom {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(r.byRoom, room)
		}
	}
}

// IndexList records a connection's subscription to a list
func (r *ConnectionRegistry) IndexList(list string, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byList[list] == nil {
		r.byList[list] = make(map[string]*Connection)
	}
	r.byList[list][conn.ID] = conn
}

// UnindexList drops a connection's subscription to a list
func (r *ConnectionRegistry) UnindexList(list string, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conns, exists := r.byList[list]; exists {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(r.byList, list)
		}
	}
}

// IndexRoom records a connection's membership in a room
func (r *ConnectionRegistry) IndexRoom(roomID string, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byRoom[roomID] == nil {
		r.byRoom[roomID] = make(map[string]*Connection)
	}
	r.byRoom[roomID][conn.ID] = conn
}

// UnindexRoom drops a connection's membership in a room
func (r *ConnectionRegistry) UnindexRoom(roomID string, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conns, exists := r.byRoom[roomID]; exists {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(r.byRoom, roomID)
		}
	}
}

// Get retrieves a connection by ID
func (r *ConnectionRegistry) Get(connectionID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, exists := r.connections[connectionID]
	return conn, exists
}

// GetByList retrieves all connections subscribed to a list
func (r *ConnectionRegistry) GetByList(list string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, exists := r.byList[list]
	if !exists {
		return nil
	}
	connections := make([]*Connection, 0, len(conns))
	for _, conn := range conns {
		connections = append(connections, conn)
	}
	return connections
}

// GetByRoom retrieves all connections in a room
func (r *ConnectionRegistry) GetByRoom(roomID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, exists := r.byRoom[roomID]
	if !exists {
		return nil
	}
	connections := make([]*Connection, 0, len(conns))
	for _, conn := range conns {
		connections = append(connections, conn)
	}
	return connections
}

// GetAll retrieves all connections
func (r *ConnectionRegistry) GetAll() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connections := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		connections = append(connections, conn)
	}
	return connections
}

// Count returns the total number of connections
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// CountByList returns the number of subscribers for a list
func (r *ConnectionRegistry) CountByList(list string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byList[list])
}

// CountByRoom returns the number of connections in a room
func (r *ConnectionRegistry) CountByRoom(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byRoom[roomID])
}
