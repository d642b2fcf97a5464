// Package stream pushes periodic GEX/DEX snapshots to websocket subscribers.
// Clients join groups named SYMBOL or SYMBOL/EXPIRY_INDEX.
package stream

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Hub manages websocket connections and group subscriptions.
type Hub struct {
	clients    map[*Client]bool
	groups     map[string]map[*Client]bool // group -> clients
	register   chan *Client
	unregister chan *Client
	validate   func(group string) error
	closed     chan struct{}
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewHub creates a hub; validate rejects group names clients may not join.
func NewHub(validate func(group string) error, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		groups:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		validate:   validate,
		closed:     make(chan struct{}),
		logger:     logger,
	}
}

// Run processes hub events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.closed)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("stream hub shutting down")
			h.shutdown()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.String("connID", client.connID))

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for group := range client.groups {
		if clients, ok := h.groups[group]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.groups, group)
			}
		}
	}
	client.close()
	h.logger.Debug("client unregistered", zap.String("connID", client.connID))
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.close()
		delete(h.clients, client)
	}
	h.groups = make(map[string]map[*Client]bool)
}

// JoinGroup adds a client to a group.
func (h *Hub) JoinGroup(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[client] {
		return
	}
	if h.groups[group] == nil {
		h.groups[group] = make(map[*Client]bool)
	}
	h.groups[group][client] = true
	client.groups[group] = true

	h.logger.Debug("client joined group", zap.String("connID", client.connID), zap.String("group", group))
}

// LeaveGroup removes a client from a group.
func (h *Hub) LeaveGroup(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.groups[group]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.groups, group)
		}
	}
	delete(client.groups, group)

	h.logger.Debug("client left group", zap.String("connID", client.connID), zap.String("group", group))
}

// ActiveGroups returns the groups with at least one subscriber, sorted.
func (h *Hub) ActiveGroups() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	groups := make([]string, 0, len(h.groups))
	for group, clients := range h.groups {
		if len(clients) > 0 {
			groups = append(groups, group)
		}
	}
	sort.Strings(groups)
	return groups
}

// Broadcast delivers a snapshot to every client in its group. Each client
// gets the frame of its negotiated protocol; frames are built lazily.
func (h *Hub) Broadcast(group string, frames *Frames) {
	h.mu.RLock()
	clients, ok := h.groups[group]
	if !ok {
		h.mu.RUnlock()
		return
	}
	clientList := make([]*Client, 0, len(clients))
	for client := range clients {
		clientList = append(clientList, client)
	}
	h.mu.RUnlock()

	for _, client := range clientList {
		msg, err := frames.For(client.protocol)
		if err != nil {
			h.logger.Warn("failed to encode snapshot", zap.String("group", group), zap.Error(err))
			continue
		}
		if !client.trySend(msg) {
			// Buffer full, schedule disconnect
			go func(c *Client) {
				select {
				case h.unregister <- c:
				case <-c.done:
				}
			}(client)
		}
	}
}
