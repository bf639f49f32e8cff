// Package ws serves chat over WebSocket connections.
package ws

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// ConnManager tracks open chat connections so they can be closed on shutdown.
type ConnManager struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewConnManager creates a new connection manager.
func NewConnManager() *ConnManager {
	return &ConnManager{
		active: make(map[string]*websocket.Conn),
	}
}

// Register adds a connection under its id.
func (m *ConnManager) Register(connID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.active[connID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "connection replaced")
	}
	m.active[connID] = conn
	slog.Debug("Chat connection registered", "conn_id", connID)
}

// Unregister removes a connection if it is still the registered one.
func (m *ConnManager) Unregister(connID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.active[connID]; exists && current == conn {
		delete(m.active, connID)
		slog.Debug("Chat connection unregistered", "conn_id", connID)
	}
}

// Count returns the number of open connections.
func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// CloseAll closes every open connection.
func (m *ConnManager) CloseAll(reason string) {
	m.mu.Lock()
	conns := m.active
	m.active = make(map[string]*websocket.Conn)
	m.mu.Unlock()

	for id, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, reason)
		slog.Info("Chat connection closed", "conn_id", id, "reason", reason)
	}
}
