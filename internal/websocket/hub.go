// Package websocket pushes data lifecycle events to connected UI clients:
// survey scan progress, source refreshes, and mapping changes. Clients
// receive full snapshots, never deltas.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"benchmd/internal/infrastructure"
	"benchmd/pkg/contracts/events"
)

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	logger *slog.Logger

	totalConnections int64
	messagesSent     int64

	quit    chan struct{}
	running bool
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.hub"))

	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger,
		quit:       make(chan struct{}),
	}
}

// Start starts the hub's main loop
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.totalConnections++
			h.mu.Unlock()

			ctx := clientContext(client)
			h.logger.InfoContext(ctx, "client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			h.sendConnected(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				count := len(h.clients)
				h.mu.Unlock()

				h.logger.InfoContext(clientContext(client), "client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			} else {
				h.mu.Unlock()
			}

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) sendConnected(client *Client) {
	msg := events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        uuid.New().String(),
			Type:      events.MessageTypeConnect,
			Timestamp: time.Now().UTC(),
			TraceID:   client.traceID,
		},
		Data: map[string]interface{}{
			"status":    "connected",
			"client_id": client.id,
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case client.send <- data:
	default:
		h.logger.WarnContext(clientContext(client), "connection message dropped, client buffer full",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) deliver(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	failCount := 0
	for _, client := range clients {
		select {
		case client.send <- message:
			h.mu.Lock()
			h.messagesSent++
			h.mu.Unlock()
		default:
			// Slow consumer. Drop the connection rather than block the hub.
			failCount++
			h.mu.Lock()
			close(client.send)
			delete(h.clients, client)
			h.mu.Unlock()

			h.logger.WarnContext(clientContext(client), "client send buffer full, disconnecting",
				slog.String("client_id", client.id))
		}
	}

	if failCount > 0 {
		h.logger.Warn("some clients failed to receive broadcast",
			slog.Int("client_count", len(clients)),
			slog.Int("fail_count", failCount))
	}
}

// BroadcastMessage marshals and broadcasts a typed message to all clients
func (h *Hub) BroadcastMessage(msgType events.MessageType, data interface{}, traceID string) {
	msg := events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        uuid.New().String(),
			Type:      msgType,
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("error marshaling broadcast message",
			slog.String("error", err.Error()),
			slog.String("message_type", string(msgType)))
		return
	}

	select {
	case h.broadcast <- payload:
	case <-h.quit:
	}
}

// BroadcastScanSnapshot pushes the full state of a running scan job
func (h *Hub) BroadcastScanSnapshot(snapshot events.ScanSnapshot, traceID string) {
	h.BroadcastMessage(events.MessageTypeScanSnapshot, snapshot, traceID)
}

// BroadcastDataRefreshed announces that a source's rows were replaced
func (h *Hub) BroadcastDataRefreshed(source, format string, rowCount int, fingerprint string) {
	h.BroadcastMessage(events.MessageTypeDataRefreshed, map[string]interface{}{
		"source":      source,
		"format":      format,
		"row_count":   rowCount,
		"fingerprint": fingerprint,
	}, "")
}

// BroadcastMappingChanged announces a mapping create, replace, or delete
func (h *Hub) BroadcastMappingChanged(mappingID, mappingType, standardizedName string, deleted bool) {
	h.BroadcastMessage(events.MessageTypeMappingChanged, map[string]interface{}{
		"mapping_id":        mappingID,
		"type":              mappingType,
		"standardized_name": standardizedName,
		"deleted":           deleted,
	}, "")
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns current hub counters
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]interface{}{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Stop gracefully stops the hub and closes all client connections
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func clientContext(client *Client) context.Context {
	ctx := context.Background()
	if client.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, client.traceID)
	}
	return ctx
}
