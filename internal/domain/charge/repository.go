package charge

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence port for charges and their event history.
type Repository interface {
	Create(ctx context.Context, c *Charge) error

	FindByID(ctx context.Context, id uuid.UUID) (*Charge, error)

	FindByExternalID(ctx context.Context, externalID string) (*Charge, error)

	// FindByGatewayTransactionID resolves the charge a gateway notification
	// refers to.
	FindByGatewayTransactionID(ctx context.Context, providerName, transactionID string) (*Charge, error)

	// UpdateWithVersion persists the charge only if the stored version still
	// matches c.Version (compare-and-swap). On success the stored and in-memory
	// version are incremented; on a clash it returns errors.ErrConflict.
	UpdateWithVersion(ctx context.Context, c *Charge) error

	// FindByStatus pages through charges currently in the given status.
	FindByStatus(ctx context.Context, status Status, limit, offset int) ([]*Charge, error)

	// FindCreatedBefore returns charges in any of the given statuses created
	// before the cutoff, for expiry sweeps.
	FindCreatedBefore(ctx context.Context, statuses []Status, cutoff time.Time, limit int) ([]*Charge, error)

	AppendEvent(ctx context.Context, e *Event) error

	Events(ctx context.Context, chargeID uuid.UUID) ([]*Event, error)
}
