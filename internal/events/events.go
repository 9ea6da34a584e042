package events

import (
	"context"
	"time"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	"github.com/mohbadar/pay-connector/internal/domain/refund"
)

// Event types emitted downstream.
const (
	TypePaymentCreated         = "PAYMENT_CREATED"
	TypePaymentStateTransition = "PAYMENT_STATE_TRANSITION"
	TypeCaptureConfirmed       = "CAPTURE_CONFIRMED"
	TypeRefundStateTransition  = "REFUND_STATE_TRANSITION"
)

// Event is one domain event built from persisted state and handed to the
// publisher.
type Event struct {
	ResourceType       string
	ResourceExternalID string
	EventType          string
	Timestamp          time.Time
	Details            map[string]any
}

// Publisher hands events downstream. The retry queue assumes at-least-once
// from its side; no stronger guarantee is expected here.
type Publisher interface {
	Emit(ctx context.Context, e Event) error
}

// NewPaymentCreated builds the creation event for a charge.
func NewPaymentCreated(c *charge.Charge) Event {
	return Event{
		ResourceType:       "payment",
		ResourceExternalID: c.ExternalID,
		EventType:          TypePaymentCreated,
		Timestamp:          time.Now(),
		Details: map[string]any{
			"amount":          c.Amount,
			"total_amount":    c.TotalAmount(),
			"description":     c.Description,
			"reference":       c.Reference,
			"provider":        c.ProviderName,
			"delayed_capture": c.DelayedCapture,
		},
	}
}

// NewPaymentStateTransition builds the status event for a charge's current
// persisted status. A captured charge gets the dedicated confirmation type.
func NewPaymentStateTransition(c *charge.Charge) Event {
	eventType := TypePaymentStateTransition
	if c.Status == charge.StatusCaptured {
		eventType = TypeCaptureConfirmed
	}

	details := map[string]any{
		"status":          string(c.Status),
		"external_status": string(c.Status.External()),
		"amount":          c.Amount,
		"total_amount":    c.TotalAmount(),
		"provider":        c.ProviderName,
	}
	if c.GatewayTransactionID != nil {
		details["gateway_transaction_id"] = *c.GatewayTransactionID
	}

	return Event{
		ResourceType:       "payment",
		ResourceExternalID: c.ExternalID,
		EventType:          eventType,
		Timestamp:          time.Now(),
		Details:            details,
	}
}

// NewRefundStateTransition builds the status event for a refund's current
// persisted status.
func NewRefundStateTransition(r *refund.Refund, c *charge.Charge) Event {
	details := map[string]any{
		"status":             string(r.Status),
		"amount":             r.Amount,
		"charge_external_id": c.ExternalID,
	}
	if r.GatewayTransactionID != nil {
		details["gateway_transaction_id"] = *r.GatewayTransactionID
	}

	return Event{
		ResourceType:       "refund",
		ResourceExternalID: r.ExternalID,
		EventType:          TypeRefundStateTransition,
		Timestamp:          time.Now(),
		Details:            details,
	}
}
