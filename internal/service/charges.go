package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
	"github.com/mohbadar/pay-connector/internal/queue"
)

// CreateChargeParams are the caller-supplied fields for a new charge.
type CreateChargeParams struct {
	GatewayAccountID   uuid.UUID
	Amount             int64
	CorporateSurcharge *int64
	Description        string
	Reference          string
	DelayedCapture     bool
}

// ChargeService creates charges and serves reads over them.
type ChargeService struct {
	charges  charge.Repository
	accounts gatewayaccount.Repository
	tx       TransactionManager
	queue    *queue.Queue
	logger   zerolog.Logger
}

func NewChargeService(charges charge.Repository, accounts gatewayaccount.Repository, tx TransactionManager, q *queue.Queue, logger zerolog.Logger) *ChargeService {
	return &ChargeService{charges: charges, accounts: accounts, tx: tx, queue: q, logger: logger}
}

// Create persists a new charge in the created status and queues the creation
// event.
func (s *ChargeService) Create(ctx context.Context, params CreateChargeParams) (*charge.Charge, error) {
	account, err := s.accounts.FindByID(ctx, params.GatewayAccountID)
	if err != nil {
		return nil, err
	}

	c, err := charge.New(account.ID, account.ProviderName, params.Amount, params.Description, params.Reference)
	if err != nil {
		return nil, err
	}
	c.CorporateSurcharge = params.CorporateSurcharge
	c.DelayedCapture = params.DelayedCapture

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.charges.Create(txCtx, c); err != nil {
			return err
		}
		return s.charges.AppendEvent(txCtx, c.NewEvent())
	})
	if err != nil {
		return nil, err
	}

	s.queue.Offer(queue.NewTask(c.ExternalID, queue.KindPaymentCreated, queue.DefaultBaseDelay))

	s.logger.Info().
		Str("charge_external_id", c.ExternalID).
		Str("provider", c.ProviderName).
		Int64("amount", c.Amount).
		Msg("charge created")
	return c, nil
}

// MarkEnteringCardDetails records that the payer has reached the card details
// page, moving the charge out of created.
func (s *ChargeService) MarkEnteringCardDetails(ctx context.Context, externalID string) (*charge.Charge, error) {
	var out *charge.Charge
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := s.charges.FindByExternalID(txCtx, externalID)
		if err != nil {
			return err
		}
		if err := c.TransitionTo(charge.StatusEnteringCardDetails); err != nil {
			return err
		}
		if err := s.charges.UpdateWithVersion(txCtx, c); err != nil {
			return err
		}
		if err := s.charges.AppendEvent(txCtx, c.NewEvent()); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.queue.Offer(queue.NewTask(out.ExternalID, queue.KindPaymentStateTransition, queue.DefaultBaseDelay))
	return out, nil
}

// Get returns a charge by its external id.
func (s *ChargeService) Get(ctx context.Context, externalID string) (*charge.Charge, error) {
	return s.charges.FindByExternalID(ctx, externalID)
}

// Events returns the charge's full status history, oldest first.
func (s *ChargeService) Events(ctx context.Context, externalID string) ([]*charge.Event, error) {
	c, err := s.charges.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return s.charges.Events(ctx, c.ID)
}
