package gateway

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// ClientInfo holds information about a connected chat frontend
type ClientInfo struct {
	ConnectionID  string
	UserID        int64
	ChatID        int64
	ConnectedAt   time.Time
	LastHeardFrom time.Time
	Conn          net.Conn
	mu            sync.RWMutex
}

// UpdateLastHeardFrom updates the last activity timestamp
func (c *ClientInfo) UpdateLastHeardFrom() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastHeardFrom = time.Now()
}

// GetLastHeardFrom returns the last activity timestamp
func (c *ClientInfo) GetLastHeardFrom() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.LastHeardFrom
}

// Conns manages all active frontend connections
type Conns struct {
	clients  map[string]*ClientInfo // key: connection_id
	byChat   map[int64][]string     // key: chat_id, value: []connection_id
	mu       sync.RWMutex
	maxConns int
}

// NewConns creates a new connection registry
func NewConns(maxConnections int) *Conns {
	return &Conns{
		clients:  make(map[string]*ClientInfo),
		byChat:   make(map[int64][]string),
		maxConns: maxConnections,
	}
}

// Register adds a new identified connection
func (m *Conns) Register(connectionID string, userID, chatID int64, conn net.Conn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.clients) >= m.maxConns {
		return ErrMaxConnectionsReached
	}

	if _, exists := m.clients[connectionID]; exists {
		return fmt.Errorf("connection ID %s already registered", connectionID)
	}

	now := time.Now()
	clientInfo := &ClientInfo{
		ConnectionID:  connectionID,
		UserID:        userID,
		ChatID:        chatID,
		ConnectedAt:   now,
		LastHeardFrom: now,
		Conn:          conn,
	}

	m.clients[connectionID] = clientInfo
	m.byChat[chatID] = append(m.byChat[chatID], connectionID)

	return nil
}

// Unregister removes a connection
func (m *Conns) Unregister(connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, exists := m.clients[connectionID]
	if !exists {
		return fmt.Errorf("connection ID %s not found", connectionID)
	}

	chatID := client.ChatID
	if connIDs, ok := m.byChat[chatID]; ok {
		for i, id := range connIDs {
			if id == connectionID {
				m.byChat[chatID] = append(connIDs[:i], connIDs[i+1:]...)
				break
			}
		}
		if len(m.byChat[chatID]) == 0 {
			delete(m.byChat, chatID)
		}
	}

	delete(m.clients, connectionID)

	return nil
}

// Get retrieves client information by connection ID
func (m *Conns) Get(connectionID string) (*ClientInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	client, exists := m.clients[connectionID]
	return client, exists
}

// GetByChat retrieves all connection IDs serving a chat
func (m *Conns) GetByChat(chatID int64) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	connIDs := m.byChat[chatID]
	// Return a copy to avoid race conditions
	result := make([]string, len(connIDs))
	copy(result, connIDs)
	return result
}

// UpdateActivity updates the last heard from timestamp for a connection
func (m *Conns) UpdateActivity(connectionID string) error {
	m.mu.RLock()
	client, exists := m.clients[connectionID]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("connection ID %s not found", connectionID)
	}

	client.UpdateLastHeardFrom()
	return nil
}

// GetInactiveConnections returns connection IDs that have been silent
// longer than the timeout
func (m *Conns) GetInactiveConnections(timeout time.Duration) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var inactive []string

	for connID, client := range m.clients {
		lastHeard := client.GetLastHeardFrom()
		if now.Sub(lastHeard) > timeout {
			inactive = append(inactive, connID)
		}
	}

	return inactive
}

// Count returns the total number of active connections
func (m *Conns) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// GetAllConnections returns all connection IDs
func (m *Conns) GetAllConnections() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	connIDs := make([]string, 0, len(m.clients))
	for connID := range m.clients {
		connIDs = append(connIDs, connID)
	}
	return connIDs
}

// Stats returns statistics about the connection registry
func (m *Conns) Stats() ConnsStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return ConnsStats{
		TotalConnections: len(m.clients),
		UniqueChats:      len(m.byChat),
		MaxConnections:   m.maxConns,
	}
}

// ConnsStats contains statistics about the connection registry
type ConnsStats struct {
	TotalConnections int
	UniqueChats      int
	MaxConnections   int
}

var (
	ErrMaxConnectionsReached = &ConnectionError{"maximum connections reached"}
)

// ConnectionError represents a connection error
type ConnectionError struct {
	msg string
}

func (e *ConnectionError) Error() string {
	return e.msg
}
