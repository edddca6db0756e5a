package tcp

import (
	"log/slog"
	"sync"
	"time"

	"wmshub/internal/microservices/tcp/frame"
)

type ConnectionManager struct {
	clients map[string]*ClientConnection
	// map store all active client connections
	// key: client ID, value: ClientConnection pointer
	mu     sync.RWMutex // read-write mutex for concurrent access
	closed bool         // set by CloseAllConnections; later registrations are refused
	logger *slog.Logger
}

// constructor for ConnectionManager
func NewConnectionManager(logger *slog.Logger) *ConnectionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionManager{
		clients: make(map[string]*ClientConnection),
		logger:  logger,
	}
}

// AddConnection registers a client. It returns false once the manager has
// been shut down; the caller then owns closing the connection.
func (m *ConnectionManager) AddConnection(client *ClientConnection) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.clients[client.ID()] = client
	total := len(m.clients)
	m.mu.Unlock()

	m.logger.Info("client_added",
		"client_id", client.ID(),
		"remote_addr", client.RemoteAddr(),
		"active_clients", total,
	)
	return true
}

// RemoveConnection unregisters a client and reports whether it was still
// registered, so concurrent removals log only once.
func (m *ConnectionManager) RemoveConnection(client *ClientConnection) bool {
	m.mu.Lock()
	_, ok := m.clients[client.ID()]
	delete(m.clients, client.ID())
	total := len(m.clients)
	m.mu.Unlock()

	if ok {
		m.logger.Info("client_removed",
			"client_id", client.ID(),
			"connected_at", client.ConnectedAt(),
			"connected_for", time.Since(client.ConnectedAt()).Round(time.Millisecond),
			"active_clients", total,
		)
	}
	return ok
}

func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// snapshot copies the registry so sends happen without holding the lock.
func (m *ConnectionManager) snapshot() []*ClientConnection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ClientConnection, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, c)
	}
	return out
}

// method to close all connections
func (m *ConnectionManager) CloseAllConnections() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*ClientConnection)
	m.closed = true
	m.mu.Unlock()

	for id, client := range clients {
		client.Close()
		m.logger.Info("client_connection_closed",
			"client_id", id,
		)
	}
}

// Broadcast sends f to every registered client in parallel and returns how
// many accepted it. A client whose send fails is dropped and closed; the
// others are unaffected.
func (m *ConnectionManager) Broadcast(f frame.Frame) int {
	clients := m.snapshot()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
	)
	for _, c := range clients {
		wg.Add(1)
		go func(c *ClientConnection) {
			defer wg.Done()
			if err := c.Send(f); err != nil {
				m.logger.Warn("failed_to_send_broadcast",
					"client_id", c.ID(),
					"error", err.Error(),
				)
				m.RemoveConnection(c)
				c.Close()
				return
			}
			mu.Lock()
			delivered++
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return delivered
}
