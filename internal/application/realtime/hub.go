// Package realtime fans order events out to connected POS terminals over
// server-sent events, with an optional bus for cross-instance delivery.
package realtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Event types pushed to terminals.
const (
	EventNewOrder          = "NEW_ORDER"
	EventOrderAccepted     = "ORDER_ACCEPTED"
	EventOrderRejected     = "ORDER_REJECTED"
	EventOrderStatusUpdate = "ORDER_STATUS_UPDATE"
)

// Event is one message pushed to every connected terminal.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus propagates events to other instances. Implementations must deliver
// received remote events back through Hub.Dispatch.
type Bus interface {
	Publish(ctx context.Context, event Event) error
}

// Client is one connected terminal. Its channel is buffered; a terminal that
// cannot keep up loses events rather than stalling the hub.
type Client struct {
	ID     string
	Events chan Event
}

// Hub tracks connected clients and broadcasts events to all of them.
type Hub struct {
	clients sync.Map
	nextID  atomic.Uint64
	bus     Bus
	logger  *zap.Logger
}

// NewHub creates a Hub without a bus; events stay within this instance.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger}
}

// AttachBus enables cross-instance propagation. Call before serving traffic.
func (h *Hub) AttachBus(bus Bus) {
	h.bus = bus
}

// Register adds a new client and returns it. The caller owns the connection
// lifecycle and must call Unregister when the terminal disconnects.
func (h *Hub) Register() *Client {
	client := &Client{
		ID:     h.clientID(),
		Events: make(chan Event, 100),
	}
	h.clients.Store(client.ID, client)
	h.logger.Info("Realtime client connected",
		zap.String("client_id", client.ID),
		zap.Int("client_count", h.ClientCount()))
	return client
}

// Unregister removes a client from delivery. The channel is never closed: a
// Dispatch racing the disconnect may still hold a reference from Range, and a
// send on a closed channel would panic the broadcasting request. The consumer
// ends on its own context; the unreferenced channel is garbage collected.
func (h *Hub) Unregister(client *Client) {
	if _, loaded := h.clients.LoadAndDelete(client.ID); loaded {
		h.logger.Info("Realtime client disconnected",
			zap.String("client_id", client.ID),
			zap.Int("client_count", h.ClientCount()))
	}
}

// Broadcast delivers the event to every local client and, when a bus is
// attached, to the other instances. A bus failure never fails the caller:
// local terminals already got the event.
func (h *Hub) Broadcast(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	h.Dispatch(event)

	if h.bus != nil {
		if err := h.bus.Publish(ctx, event); err != nil {
			h.logger.Warn("Failed to publish event to bus",
				zap.String("event_type", event.Type),
				zap.Error(err))
		}
	}
}

// Dispatch delivers the event to local clients only. The bus subscriber uses
// this for remote events to avoid re-publishing them.
func (h *Hub) Dispatch(event Event) {
	h.clients.Range(func(_, value any) bool {
		client := value.(*Client)
		select {
		case client.Events <- event:
		default:
			// Slow consumer: drop rather than block the broadcast.
			h.logger.Warn("Dropping event for slow client",
				zap.String("client_id", client.ID),
				zap.String("event_type", event.Type))
		}
		return true
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	count := 0
	h.clients.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

func (h *Hub) clientID() string {
	return fmt.Sprintf("client-%d-%d", time.Now().UnixNano(), h.nextID.Add(1))
}
