package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/application/realtime"
	"github.com/posbridge/backend/internal/interfaces/http/dto"
)

// StreamHandler serves the dashboard push channel over Server-Sent Events.
// Each connection registers a hub client and relays its events until the
// request context ends.
type StreamHandler struct {
	BaseHandler
	hub        *realtime.Hub
	logger     *zap.Logger
	heartbeat  time.Duration
	maxClients int
}

// StreamOption is a functional option for configuring the handler
type StreamOption func(*StreamHandler)

// WithStreamHeartbeat sets the keep-alive comment interval
func WithStreamHeartbeat(interval time.Duration) StreamOption {
	return func(h *StreamHandler) {
		h.heartbeat = interval
	}
}

// WithStreamMaxClients caps the number of concurrent SSE connections
func WithStreamMaxClients(max int) StreamOption {
	return func(h *StreamHandler) {
		h.maxClients = max
	}
}

// NewStreamHandler creates a new StreamHandler
func NewStreamHandler(hub *realtime.Hub, logger *zap.Logger, opts ...StreamOption) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &StreamHandler{
		hub:        hub,
		logger:     logger,
		heartbeat:  30 * time.Second,
		maxClients: 10000,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// RegisterRoutes registers the stream route
func (h *StreamHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/orders/stream", h.Stream)
}

// Stream establishes the SSE connection and relays order events.
func (h *StreamHandler) Stream(c *gin.Context) {
	if h.maxClients > 0 && h.hub.ClientCount() >= h.maxClients {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeInternal,
			"Maximum number of stream connections reached")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	client := h.hub.Register()
	defer h.hub.Unregister(client)

	h.logger.Info("Stream client connected", zap.String("client_id", client.ID))

	h.sendRaw(c.Writer, "connected",
		fmt.Sprintf(`{"client_id":"%s","timestamp":%d}`, client.ID, time.Now().Unix()))
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	reqCtx := c.Request.Context()

	for {
		select {
		case <-reqCtx.Done():
			h.logger.Info("Stream client disconnected", zap.String("client_id", client.ID))
			return
		case <-heartbeat.C:
			h.sendRaw(c.Writer, "heartbeat", fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()))
			c.Writer.Flush()
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			h.sendEvent(c.Writer, event)
			c.Writer.Flush()
		}
	}
}

// sendEvent writes one order event as an SSE message
func (h *StreamHandler) sendEvent(w io.Writer, event realtime.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal stream event", zap.Error(err))
		return
	}
	h.sendRaw(w, event.Type, string(data))
}

func (h *StreamHandler) sendRaw(w io.Writer, event, data string) {
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
