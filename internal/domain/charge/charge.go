package charge

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohbadar/pay-connector/internal/domain/errors"
)

// Charge represents a single payment attempt from authorisation through
// capture or cancellation.
type Charge struct {
	ID                   uuid.UUID
	ExternalID           string
	Amount               int64 // minor units
	CorporateSurcharge   *int64
	Status               Status
	ProviderName         string
	GatewayTransactionID *string
	GatewayAccountID     uuid.UUID
	Description          string
	Reference            string
	DelayedCapture       bool
	Version              int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Event is one append-only row per status the charge has ever held.
type Event struct {
	ID        uuid.UUID
	ChargeID  uuid.UUID
	Status    Status
	CreatedAt time.Time
}

// New creates a charge in the created status with a fresh external id.
func New(gatewayAccountID uuid.UUID, providerName string, amount int64, description, reference string) (*Charge, error) {
	if amount <= 0 {
		return nil, errors.NewValidationError("amount", "must be greater than 0")
	}
	if providerName == "" {
		return nil, errors.NewValidationError("provider", "cannot be empty")
	}

	now := time.Now()
	return &Charge{
		ID:               uuid.New(),
		ExternalID:       newExternalID(),
		Amount:           amount,
		Status:           StatusCreated,
		ProviderName:     providerName,
		GatewayAccountID: gatewayAccountID,
		Description:      description,
		Reference:        reference,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// TotalAmount is the amount the gateway is asked to take, including any
// corporate surcharge.
func (c *Charge) TotalAmount() int64 {
	if c.CorporateSurcharge != nil {
		return c.Amount + *c.CorporateSurcharge
	}
	return c.Amount
}

// TransitionTo moves the charge along a legal edge of the transition graph.
func (c *Charge) TransitionTo(next Status) error {
	if !c.Status.CanTransitionTo(next) {
		return errors.NewDomainError(
			"illegal_state_transition",
			"cannot transition from "+string(c.Status)+" to "+string(next),
			errors.ErrIllegalStateTransition,
		)
	}
	c.Status = next
	c.UpdatedAt = time.Now()
	return nil
}

// SetGatewayTransactionID records the provider-assigned (or pre-generated)
// transaction id.
func (c *Charge) SetGatewayTransactionID(id string) {
	c.GatewayTransactionID = &id
}

// NewEvent builds the append-only history row for the charge's current status.
func (c *Charge) NewEvent() *Event {
	return &Event{
		ID:        uuid.New(),
		ChargeID:  c.ID,
		Status:    c.Status,
		CreatedAt: time.Now(),
	}
}

func newExternalID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
