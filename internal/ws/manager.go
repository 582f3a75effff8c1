package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/paulmach/orb"

	"campus-wayfinding/internal/directory"
	"campus-wayfinding/internal/navigation"
)

// Dependencies are shared by every client session.
type Dependencies struct {
	Provider   navigation.DirectionsProvider
	Directory  *directory.Directory
	Navigation navigation.Options
	// Fallback is used for buildings without any registered company.
	Fallback orb.Point
}

type Manager struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *slog.Logger
	deps       Dependencies
}

func NewManager(ctx context.Context, logger *slog.Logger, deps Dependencies) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
		deps:       deps,
	}
}

func (m *Manager) Start() {
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			if previous, ok := m.clients[client.ID]; ok {
				m.logger.Info("replacing client with duplicate ID", "clientID", client.ID)
				go m.forceDisconnect(previous)
			}
			m.clients[client.ID] = client
			m.mu.Unlock()
			m.logger.Info("client connected", "clientID", client.ID)
		case client := <-m.unregister:
			m.mu.Lock()
			if current, ok := m.clients[client.ID]; ok && current == client {
				delete(m.clients, client.ID)
			}
			m.mu.Unlock()
			client.closeSend()
			m.logger.Info("client disconnected", "clientID", client.ID)
		case message := <-m.broadcast:
			m.mu.RLock()
			for _, client := range m.clients {
				client.Send(message)
			}
			m.mu.RUnlock()
		case <-m.ctx.Done():
			return
		}
	}
}

// HandleNewConnection attaches a navigation session to an accepted websocket.
func (m *Manager) HandleNewConnection(id string, conn *websocket.Conn) {
	NewClient(id, conn, m).Start()
}

func (m *Manager) Broadcast(message Message) {
	select {
	case m.broadcast <- message:
	case <-m.ctx.Done():
	}
}

// NotifyDirectoryUpdated tells every client to refetch the company directory.
func (m *Manager) NotifyDirectoryUpdated() error {
	msg, err := NewMessage(TypeDirectoryUpdated, struct{}{})
	if err != nil {
		return err
	}
	m.Broadcast(msg)
	return nil
}

func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) forceDisconnect(c *Client) {
	c.Close()
}

func (m *Manager) Shutdown() {
	m.cancel()
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.mu.Unlock()
	for _, client := range clients {
		client.Close()
	}
}

func (m *Manager) resolveDestination(data destinationData) (orb.Point, error) {
	switch {
	case data.Coordinates != nil:
		return parseDestination(data.Coordinates)
	case data.Company != "":
		if m.deps.Directory == nil {
			return orb.Point{}, fmt.Errorf("%w: no directory loaded", navigation.ErrInvalidInput)
		}
		company, ok := m.deps.Directory.Lookup(data.Company)
		if !ok {
			return orb.Point{}, fmt.Errorf("%w: unknown company %q", navigation.ErrInvalidInput, data.Company)
		}
		return company.Point(), nil
	case data.Building != "":
		if m.deps.Directory == nil {
			return orb.Point{}, fmt.Errorf("%w: no directory loaded", navigation.ErrInvalidInput)
		}
		if company, ok := m.deps.Directory.LookupBuilding(data.Building); ok {
			return company.Point(), nil
		}
		if !m.deps.Directory.HasBuilding(data.Building) {
			return orb.Point{}, fmt.Errorf("%w: unknown building %q", navigation.ErrInvalidInput, data.Building)
		}
		m.logger.Debug("building has no company, using fallback location", "building", data.Building)
		return m.deps.Fallback, nil
	}
	return orb.Point{}, fmt.Errorf("%w: empty destination", navigation.ErrInvalidInput)
}
