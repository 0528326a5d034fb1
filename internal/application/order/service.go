package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/application/realtime"
	"github.com/posbridge/backend/internal/domain/order"
)

// Broadcaster pushes order events to connected terminals.
type Broadcaster interface {
	Broadcast(ctx context.Context, event realtime.Event)
}

// ValidationError carries the accumulated field errors of a rejected payload.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order validation failed with %d error(s)", len(e.Errors))
}

// IngestResult is the acknowledgment returned to the platform after a
// successful write.
type IngestResult struct {
	ID        uuid.UUID `json:"id"`
	Token     string    `json:"token"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service handles order ingestion from the delivery platform.
type Service struct {
	repo        order.Repository
	validator   *Validator
	transformer *Transformer
	hub         Broadcaster
	logger      *zap.Logger
}

// NewService creates the ingestion service.
func NewService(repo order.Repository, hub Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        repo,
		validator:   NewValidator(),
		transformer: NewTransformer(logger),
		hub:         hub,
		logger:      logger,
	}
}

// Ingest validates, transforms and persists one webhook payload, then
// notifies connected terminals. remoteID is the vendor identifier from the
// webhook path, used for correlation only.
func (s *Service) Ingest(ctx context.Context, remoteID string, raw map[string]any) (*IngestResult, error) {
	result := s.validator.Validate(raw)
	if !result.Valid {
		s.logger.Warn("Order payload failed validation",
			zap.String("remote_id", remoteID),
			zap.Int("error_count", len(result.Errors)))
		return nil, &ValidationError{Errors: result.Errors}
	}

	token, _ := raw["token"].(string)
	exists, err := s.repo.ExistsByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("checking for existing order: %w", err)
	}
	if exists {
		s.logger.Warn("Duplicate order token",
			zap.String("remote_id", remoteID),
			zap.String("token", token))
		return nil, order.ErrDuplicateOrder
	}

	o, err := s.transformer.Transform(raw)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}

	s.logger.Info("Order ingested",
		zap.String("remote_id", remoteID),
		zap.String("token", o.Token),
		zap.String("code", o.Code),
		zap.String("order_type", string(o.OrderType())),
		zap.Bool("test", o.Test))

	s.hub.Broadcast(ctx, realtime.Event{
		Type: realtime.EventNewOrder,
		Payload: map[string]any{
			"id":             o.ID,
			"token":          o.Token,
			"code":           o.Code,
			"createdAt":      o.PlacedAt,
			"expeditionType": o.ExpeditionType,
			"orderType":      o.OrderType(),
			"test":           o.Test,
		},
	})

	return &IngestResult{
		ID:        o.ID,
		Token:     o.Token,
		Code:      o.Code,
		CreatedAt: o.PlacedAt,
	}, nil
}

// Get returns the full order graph for a token.
func (s *Service) Get(ctx context.Context, token string) (*order.Order, error) {
	return s.repo.FindByToken(ctx, token)
}
