package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/posbridge/backend/internal/domain/shared"
)

// Sentinel errors surfaced by the repository.
var (
	ErrOrderNotFound  = shared.NewDomainError("NOT_FOUND", "Order not found")
	ErrDuplicateOrder = shared.NewDomainError("ALREADY_EXISTS", "Order already exists")
)

// Repository persists the order graph. Create writes the whole graph as one
// transaction; a duplicate token surfaces as ErrDuplicateOrder regardless of
// whether the pre-check or the unique index caught it.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	FindByToken(ctx context.Context, token string) (*Order, error)
	// FindByReference matches token, code or short code, first match wins.
	FindByReference(ctx context.Context, ref string) (*Order, error)
	ExistsByToken(ctx context.Context, token string) (bool, error)
	UpdateStatus(ctx context.Context, token string, status string) error
	UpdateParameters(ctx context.Context, id uuid.UUID, params map[string]string) error
}
