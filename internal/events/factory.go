package events

import (
	"context"
	"fmt"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	"github.com/mohbadar/pay-connector/internal/domain/refund"
	"github.com/mohbadar/pay-connector/internal/queue"
)

// Factory builds domain events for a state-transition task from current
// persisted state, so a delayed attempt reflects what is true now, not what
// was true when the task was enqueued.
type Factory struct {
	charges charge.Repository
	refunds refund.Repository
}

func NewFactory(charges charge.Repository, refunds refund.Repository) *Factory {
	return &Factory{charges: charges, refunds: refunds}
}

// Create builds the event(s) for the task's subject.
func (f *Factory) Create(ctx context.Context, t queue.Task) ([]Event, error) {
	switch t.Kind {
	case queue.KindPaymentCreated:
		c, err := f.charges.FindByExternalID(ctx, t.SubjectExternalID)
		if err != nil {
			return nil, fmt.Errorf("build %s event: %w", t.Kind, err)
		}
		return []Event{NewPaymentCreated(c)}, nil

	case queue.KindPaymentStateTransition:
		c, err := f.charges.FindByExternalID(ctx, t.SubjectExternalID)
		if err != nil {
			return nil, fmt.Errorf("build %s event: %w", t.Kind, err)
		}
		return []Event{NewPaymentStateTransition(c)}, nil

	case queue.KindRefundStateTransition:
		r, err := f.refunds.FindByExternalID(ctx, t.SubjectExternalID)
		if err != nil {
			return nil, fmt.Errorf("build %s event: %w", t.Kind, err)
		}
		c, err := f.chargeByID(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("build %s event: %w", t.Kind, err)
		}
		return []Event{NewRefundStateTransition(r, c)}, nil

	default:
		return nil, fmt.Errorf("unknown task kind %q", t.Kind)
	}
}

func (f *Factory) chargeByID(ctx context.Context, r *refund.Refund) (*charge.Charge, error) {
	return f.charges.FindByID(ctx, r.ChargeID)
}
