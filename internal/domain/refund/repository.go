package refund

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence port for refunds.
type Repository interface {
	Create(ctx context.Context, r *Refund) error

	FindByExternalID(ctx context.Context, externalID string) (*Refund, error)

	FindByGatewayTransactionID(ctx context.Context, transactionID string) (*Refund, error)

	ListByChargeID(ctx context.Context, chargeID uuid.UUID) ([]*Refund, error)

	// UpdateWithVersion persists the refund only if the stored version still
	// matches r.Version (compare-and-swap); errors.ErrConflict on a clash.
	UpdateWithVersion(ctx context.Context, r *Refund) error
}
