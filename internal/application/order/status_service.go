package order

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/application/realtime"
	"github.com/posbridge/backend/internal/domain/order"
	"github.com/posbridge/backend/internal/domain/shared"
)

// Status-path errors mapped to 4xx responses by the handlers.
var (
	ErrUnknownStatus = shared.NewDomainError("INVALID_INPUT", "Unknown order status")
	ErrNotDelivery   = shared.NewDomainError("INVALID_STATE", "Order is not a delivery order")
	ErrNoPreparedURL = shared.NewDomainError("INVALID_STATE", "Order has no prepared-callback URL")
)

// CallbackResult is the outcome of one outbound platform call.
type CallbackResult struct {
	Success    bool
	StatusCode int
	Body       string
	Err        string
}

// PlatformClient performs the outbound callbacks to the delivery platform.
// Implementations never propagate transport errors: failures come back in
// the result.
type PlatformClient interface {
	PutStatus(ctx context.Context, url string, body map[string]any) CallbackResult
	PostPrepared(ctx context.Context, url string) CallbackResult
}

// StatusResult reports what the status update did.
type StatusResult struct {
	Token             string       `json:"token"`
	Status            order.Status `json:"status"`
	CallbackAttempted bool         `json:"callbackAttempted"`
	CallbackDelivered bool         `json:"callbackDelivered"`
}

// StatusService relays POS-side status changes: callback to the platform
// where one is configured, persist the new status, notify terminals. The
// local write always wins; a failed callback is logged and nothing more.
type StatusService struct {
	repo     order.Repository
	platform PlatformClient
	hub      Broadcaster
	logger   *zap.Logger
}

// NewStatusService creates the status relay service.
func NewStatusService(repo order.Repository, platform PlatformClient, hub Broadcaster, logger *zap.Logger) *StatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusService{
		repo:     repo,
		platform: platform,
		hub:      hub,
		logger:   logger,
	}
}

// UpdateStatus applies a POS status change to the order identified by token.
// body is the raw inbound payload, forwarded verbatim on the callback PUT.
func (s *StatusService) UpdateStatus(ctx context.Context, token, keyword string, body map[string]any) (*StatusResult, error) {
	status, known := order.ParseStatus(keyword)
	if !known {
		return nil, ErrUnknownStatus
	}

	o, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{Token: o.Token, Status: status}

	if status.RequiresCallback() {
		url, ok := o.CallbackURL(status)
		if !ok {
			// No URL configured: update locally anyway.
			s.logger.Warn("No callback URL configured for status",
				zap.String("token", o.Token),
				zap.String("status", string(status)))
		} else {
			result.CallbackAttempted = true
			callback := s.platform.PutStatus(ctx, url, body)
			result.CallbackDelivered = callback.Success
			if !callback.Success {
				s.logger.Error("Status callback failed, updating locally anyway",
					zap.String("token", o.Token),
					zap.String("status", string(status)),
					zap.String("url", url),
					zap.Int("status_code", callback.StatusCode),
					zap.String("error", callback.Err))
			}
		}
	}

	if err := s.repo.UpdateStatus(ctx, o.Token, string(status)); err != nil {
		return nil, err
	}

	s.logger.Info("Order status updated",
		zap.String("token", o.Token),
		zap.String("status", string(status)))

	s.hub.Broadcast(ctx, realtime.Event{
		Type: statusEventType(status),
		Payload: map[string]any{
			"token":  o.Token,
			"code":   o.Code,
			"status": status,
		},
	})

	return result, nil
}

// MarkPrepared notifies the platform that a delivery order is ready for the
// courier and records the prepared status. The notification requires both a
// delivery order and a configured prepared-callback URL; a failed POST is
// logged but does not undo the local write.
func (s *StatusService) MarkPrepared(ctx context.Context, token string) (*StatusResult, error) {
	o, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if o.ExpeditionType != order.ExpeditionDelivery {
		return nil, ErrNotDelivery
	}
	url := o.Callbacks.OrderPrepared
	if url == "" {
		return nil, ErrNoPreparedURL
	}

	result := &StatusResult{
		Token:             o.Token,
		Status:            order.StatusPrepared,
		CallbackAttempted: true,
	}

	callback := s.platform.PostPrepared(ctx, url)
	result.CallbackDelivered = callback.Success
	if !callback.Success {
		s.logger.Error("Prepared callback failed, updating locally anyway",
			zap.String("token", o.Token),
			zap.String("url", url),
			zap.Int("status_code", callback.StatusCode),
			zap.String("error", callback.Err))
	}

	if err := s.repo.UpdateStatus(ctx, o.Token, string(order.StatusPrepared)); err != nil {
		return nil, err
	}

	s.logger.Info("Order marked prepared", zap.String("token", o.Token))

	s.hub.Broadcast(ctx, realtime.Event{
		Type: realtime.EventOrderStatusUpdate,
		Payload: map[string]any{
			"token":  o.Token,
			"code":   o.Code,
			"status": order.StatusPrepared,
		},
	})

	return result, nil
}

// POSStatusResult reports what the POS status write recorded.
type POSStatusResult struct {
	Token            string `json:"token"`
	POSStatus        string `json:"posStatus"`
	LastStatusUpdate string `json:"lastStatusUpdate"`
}

// UpdatePOSStatus records the POS-internal status in the order's parameter
// map. ref matches token, code or short code. This path never touches the
// order status, never calls out and never broadcasts.
func (s *StatusService) UpdatePOSStatus(ctx context.Context, ref, rawStatus, timestamp string) (*POSStatusResult, error) {
	o, err := s.repo.FindByReference(ctx, ref)
	if err != nil {
		return nil, err
	}

	mapped, known := order.MapPOSStatus(rawStatus)
	if !known {
		s.logger.Warn("Unrecognized POS status, storing verbatim",
			zap.String("token", o.Token),
			zap.String("pos_status", rawStatus))
	}

	if timestamp == "" {
		timestamp = time.Now().Format(time.RFC3339)
	}

	params := o.Parameters
	if params == nil {
		params = make(map[string]string, 2)
	}
	params[order.ParamPOSStatus] = mapped
	params[order.ParamLastStatusUpdate] = timestamp

	if err := s.repo.UpdateParameters(ctx, o.ID, params); err != nil {
		return nil, err
	}

	s.logger.Info("POS status recorded",
		zap.String("token", o.Token),
		zap.String("pos_status", mapped))

	return &POSStatusResult{
		Token:            o.Token,
		POSStatus:        mapped,
		LastStatusUpdate: timestamp,
	}, nil
}

func statusEventType(status order.Status) string {
	switch status {
	case order.StatusAccepted:
		return realtime.EventOrderAccepted
	case order.StatusRejected:
		return realtime.EventOrderRejected
	default:
		return realtime.EventOrderStatusUpdate
	}
}
