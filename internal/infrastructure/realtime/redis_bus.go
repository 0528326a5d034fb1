// Package realtime implements the Redis-backed event bus that propagates
// order events between instances.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apprealtime "github.com/posbridge/backend/internal/application/realtime"
	"github.com/posbridge/backend/internal/infrastructure/config"
)

const defaultCloseTimeout = 5 * time.Second

// envelope wraps an event with its origin instance so subscribers can skip
// their own publications.
type envelope struct {
	Origin string            `json:"origin"`
	Event  apprealtime.Event `json:"event"`
}

// RedisBus implements the hub's Bus over Redis Pub/Sub. Every instance
// publishes its events to one channel and relays everyone else's events to
// its local hub.
type RedisBus struct {
	client     *redis.Client
	ownsClient bool
	channel    string
	origin     string
	logger     *zap.Logger
	cancelFn   context.CancelFunc
	doneCh     chan struct{}
	doneOnce   sync.Once
	mu         sync.Mutex
	isRunning  bool
}

// RedisBusOption is a functional option for configuring the bus
type RedisBusOption func(*RedisBus)

// WithBusChannel sets the Pub/Sub channel name
func WithBusChannel(channel string) RedisBusOption {
	return func(b *RedisBus) {
		b.channel = channel
	}
}

// WithBusLogger sets the logger for the bus
func WithBusLogger(logger *zap.Logger) RedisBusOption {
	return func(b *RedisBus) {
		b.logger = logger
	}
}

// NewRedisBus creates a bus with its own Redis client and verifies the
// connection.
func NewRedisBus(cfg *config.RedisConfig, opts ...RedisBusOption) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	bus := newRedisBus(client, true, opts...)
	return bus, nil
}

// NewRedisBusWithClient creates a bus on a shared Redis client.
// Note: The caller retains ownership of the client and is responsible for closing it
func NewRedisBusWithClient(client *redis.Client, opts ...RedisBusOption) *RedisBus {
	return newRedisBus(client, false, opts...)
}

func newRedisBus(client *redis.Client, ownsClient bool, opts ...RedisBusOption) *RedisBus {
	bus := &RedisBus{
		client:     client,
		ownsClient: ownsClient,
		channel:    "posbridge:order-events",
		origin:     uuid.NewString(),
		logger:     zap.NewNop(),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

// Publish sends the event to every subscribed instance.
func (b *RedisBus) Publish(ctx context.Context, event apprealtime.Event) error {
	data, err := json.Marshal(envelope{Origin: b.origin, Event: event})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Published order event to bus",
		zap.String("event_type", event.Type),
		zap.String("channel", b.channel))
	return nil
}

// Subscribe relays remote events into the hub until the context is canceled.
// Events this instance published itself are skipped. Blocks; run in a
// goroutine.
func (b *RedisBus) Subscribe(ctx context.Context, hub *apprealtime.Hub) error {
	b.mu.Lock()
	if b.isRunning {
		b.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	b.isRunning = true
	b.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancelFn = cancel
	b.mu.Unlock()

	pubsub := b.client.Subscribe(subCtx, b.channel)
	defer pubsub.Close()

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(subCtx); err != nil {
		b.mu.Lock()
		b.isRunning = false
		b.mu.Unlock()
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}

	b.logger.Info("Subscribed to order event channel", zap.String("channel", b.channel))

	ch := pubsub.Channel()

	for {
		select {
		case <-subCtx.Done():
			b.logger.Info("Order event subscription stopped")
			b.mu.Lock()
			b.isRunning = false
			b.mu.Unlock()
			b.markDone()
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				b.logger.Warn("Order event channel closed")
				b.mu.Lock()
				b.isRunning = false
				b.mu.Unlock()
				b.markDone()
				return nil
			}

			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Error("Failed to unmarshal order event",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}
			if env.Origin == b.origin {
				// Our own publication echoed back
				continue
			}

			b.logger.Debug("Received remote order event",
				zap.String("event_type", env.Event.Type))
			hub.Dispatch(env.Event)
		}
	}
}

func (b *RedisBus) markDone() {
	b.doneOnce.Do(func() {
		close(b.doneCh)
	})
}

// Close stops the subscription and releases the client if the bus owns it.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	cancelFn := b.cancelFn
	b.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-b.doneCh:
		case <-time.After(defaultCloseTimeout):
			b.logger.Warn("Timeout waiting for subscription to stop")
		}
	}

	if b.ownsClient {
		return b.client.Close()
	}
	return nil
}

// Ensure RedisBus implements the hub's Bus interface
var _ apprealtime.Bus = (*RedisBus)(nil)
