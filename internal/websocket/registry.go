package websocket

import (
	"log"
	"sync"

	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// Registry tracks authenticated connections and which session each one
// has joined. It holds no session state, only delivery lookups.
type Registry struct {
	mu                sync.RWMutex
	globalConnections map[string]interfaces.Connection            // userID -> Connection
	sessionMembers    map[string]map[string]interfaces.Connection // sessionID -> userID -> Connection
}

// NewRegistry creates a new connection registry
func NewRegistry() *Registry {
	return &Registry{
		globalConnections: make(map[string]interfaces.Connection),
		sessionMembers:    make(map[string]map[string]interfaces.Connection),
	}
}

// RegisterConnection makes conn the user's current connection. A previous
// connection for the same user is closed.
func (r *Registry) RegisterConnection(conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	if !conn.IsAuthenticated() {
		return ErrConnectionNotAuthenticated
	}

	userID := conn.GetUserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.globalConnections[userID]; exists && existing != conn {
		// closed outside the lock, its handler unregisters it
		go func() {
			if err := existing.Close(); err != nil {
				log.Printf("Failed to close replaced connection for %s: %v", userID, err)
			}
		}()
	}
	r.globalConnections[userID] = conn
	return nil
}

// UnregisterConnection removes conn from every map. Only the exact instance
// that is registered is removed, so a stale connection cannot evict its
// replacement.
func (r *Registry) UnregisterConnection(conn interfaces.Connection) {
	if conn == nil {
		return
	}
	userID := conn.GetUserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if registered, exists := r.globalConnections[userID]; exists && registered == conn {
		delete(r.globalConnections, userID)
	}
	r.removeMemberLocked(conn.GetSessionID(), userID, conn)
}

// BindSession routes sessionID's events to conn, moving it out of any
// session it was bound to before
func (r *Registry) BindSession(conn interfaces.Connection, sessionID string) error {
	if conn == nil {
		return ErrNilConnection
	}
	if sessionID == "" {
		return ErrEmptySessionID
	}
	userID := conn.GetUserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev := conn.GetSessionID(); prev != "" && prev != sessionID {
		r.removeMemberLocked(prev, userID, conn)
	}
	members := r.sessionMembers[sessionID]
	if members == nil {
		members = make(map[string]interfaces.Connection)
		r.sessionMembers[sessionID] = members
	}
	members[userID] = conn
	conn.SetSessionID(sessionID)
	return nil
}

// UnbindSession stops routing session events to conn
func (r *Registry) UnbindSession(conn interfaces.Connection) {
	if conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeMemberLocked(conn.GetSessionID(), conn.GetUserID(), conn)
	conn.SetSessionID("")
}

// ReleaseSession unbinds every connection of an ended session
func (r *Registry) ReleaseSession(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.sessionMembers[sessionID]
	for _, conn := range members {
		if conn.GetSessionID() == sessionID {
			conn.SetSessionID("")
		}
	}
	delete(r.sessionMembers, sessionID)
	return len(members)
}

func (r *Registry) removeMemberLocked(sessionID, userID string, conn interfaces.Connection) {
	members, exists := r.sessionMembers[sessionID]
	if !exists {
		return
	}
	if members[userID] == conn {
		delete(members, userID)
	}
	// Clean up empty maps to prevent memory leaks
	if len(members) == 0 {
		delete(r.sessionMembers, sessionID)
	}
}

// GetUserConnection returns the current connection for a user
func (r *Registry) GetUserConnection(userID string) (interfaces.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.globalConnections[userID]
	return conn, exists
}

// GetSessionConnection returns userID's connection bound to sessionID
func (r *Registry) GetSessionConnection(sessionID, userID string) (interfaces.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.sessionMembers[sessionID][userID]
	return conn, exists
}

// IsBound reports whether userID currently has a connection in sessionID
func (r *Registry) IsBound(sessionID, userID string) bool {
	_, ok := r.GetSessionConnection(sessionID, userID)
	return ok
}

// GetSessionConnections returns all connections bound to a session
func (r *Registry) GetSessionConnections(sessionID string) []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.sessionMembers[sessionID]
	connections := make([]interfaces.Connection, 0, len(members))
	for _, conn := range members {
		connections = append(connections, conn)
	}
	return connections
}

// GetSessionInstructors returns instructor connections bound to a session
func (r *Registry) GetSessionInstructors(sessionID string) []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var connections []interfaces.Connection
	for _, conn := range r.sessionMembers[sessionID] {
		if conn.GetRole() == types.RoleInstructor {
			connections = append(connections, conn)
		}
	}
	return connections
}

// GetStats returns registry statistics for monitoring and debugging
func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"total_connections": len(r.globalConnections),
		"active_sessions":   len(r.sessionMembers),
	}
}
