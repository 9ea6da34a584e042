package refund

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohbadar/pay-connector/internal/domain/errors"
)

// Status represents the refund status in the state machine
type Status string

const (
	StatusCreated   Status = "created"
	StatusSubmitted Status = "submitted"
	StatusRefunded  Status = "refunded"
	StatusError     Status = "error"
)

var transitions = map[Status][]Status{
	StatusCreated:   {StatusSubmitted, StatusError},
	StatusSubmitted: {StatusRefunded, StatusError},
}

// Refund is a monetary reversal against a captured charge, partial or full.
type Refund struct {
	ID                   uuid.UUID
	ExternalID           string
	ChargeID             uuid.UUID
	Amount               int64 // minor units
	Status               Status
	GatewayTransactionID *string
	Version              int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// New creates a refund in the created status.
func New(chargeID uuid.UUID, amount int64) (*Refund, error) {
	if amount <= 0 {
		return nil, errors.NewValidationError("amount", "must be greater than 0")
	}
	now := time.Now()
	return &Refund{
		ID:         uuid.New(),
		ExternalID: strings.ReplaceAll(uuid.New().String(), "-", ""),
		ChargeID:   chargeID,
		Amount:     amount,
		Status:     StatusCreated,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// CanTransitionTo reports whether the graph has an edge from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// TransitionTo moves the refund along a legal edge of the transition graph.
func (r *Refund) TransitionTo(next Status) error {
	if !r.Status.CanTransitionTo(next) {
		return errors.NewDomainError(
			"illegal_state_transition",
			"cannot transition refund from "+string(r.Status)+" to "+string(next),
			errors.ErrIllegalStateTransition,
		)
	}
	r.Status = next
	r.UpdatedAt = time.Now()
	return nil
}

// SetGatewayTransactionID records the provider-assigned refund reference.
func (r *Refund) SetGatewayTransactionID(id string) {
	r.GatewayTransactionID = &id
}
