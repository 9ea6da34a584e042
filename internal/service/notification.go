package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	domainErrors "github.com/mohbadar/pay-connector/internal/domain/errors"
	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
	"github.com/mohbadar/pay-connector/internal/domain/refund"
	"github.com/mohbadar/pay-connector/internal/gateway"
	"github.com/mohbadar/pay-connector/internal/queue"
)

// resolvedNotification is one parsed notification matched to the charge or
// refund it refers to, with the interpreted status ready to apply.
type resolvedNotification struct {
	notification gateway.Notification
	charge       *charge.Charge
	refund       *refund.Refund
	status       gateway.NotificationStatus
}

// NotificationService ingests asynchronous status callbacks from payment
// providers. Authenticity is checked for the whole payload before any status
// inside it is applied.
type NotificationService struct {
	charges  charge.Repository
	refunds  refund.Repository
	accounts gatewayaccount.Repository
	registry *gateway.Registry
	pipeline *Pipeline
	tx       TransactionManager
	queue    *queue.Queue
	logger   zerolog.Logger
}

func NewNotificationService(
	charges charge.Repository,
	refunds refund.Repository,
	accounts gatewayaccount.Repository,
	registry *gateway.Registry,
	pipeline *Pipeline,
	tx TransactionManager,
	q *queue.Queue,
	logger zerolog.Logger,
) *NotificationService {
	return &NotificationService{
		charges:  charges,
		refunds:  refunds,
		accounts: accounts,
		registry: registry,
		pipeline: pipeline,
		tx:       tx,
		queue:    q,
		logger:   logger,
	}
}

// Handle parses, verifies and applies one provider callback payload. A payload
// that fails verification is rejected whole; notifications that refer to
// nothing we know, or carry statuses we ignore, are skipped individually.
func (s *NotificationService) Handle(ctx context.Context, providerName string, payload []byte, signature string) error {
	provider, _, err := s.registry.Get(providerName)
	if err != nil {
		return err
	}

	notifications, err := provider.ParseNotification(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", providerName).Msg("unparseable notification payload")
		return domainErrors.NewDomainError(
			"notification_rejected",
			"notification payload could not be parsed",
			domainErrors.ErrNotificationRejected,
		)
	}

	resolved, err := s.resolveAndVerify(ctx, provider, notifications, payload, signature)
	if err != nil {
		return err
	}

	for _, rn := range resolved {
		s.apply(ctx, provider, rn)
	}
	return nil
}

// resolveAndVerify matches every notification to its charge or refund and
// checks payload authenticity against each matched account before anything is
// applied.
func (s *NotificationService) resolveAndVerify(ctx context.Context, provider gateway.Provider, notifications []gateway.Notification, payload []byte, signature string) ([]resolvedNotification, error) {
	resolved := make([]resolvedNotification, 0, len(notifications))

	for _, n := range notifications {
		status, ok := provider.MapNotificationStatus(n.Status)
		if !ok {
			s.logger.Info().
				Str("provider", provider.Name()).
				Str("gateway_transaction_id", n.TransactionID).
				Str("status", n.Status).
				Msg("ignoring notification status")
			continue
		}

		rn := resolvedNotification{notification: n, status: status}
		var account *gatewayaccount.Account

		switch {
		case status.ChargeStatus != nil:
			c, err := s.charges.FindByGatewayTransactionID(ctx, provider.Name(), n.TransactionID)
			if err != nil {
				if errors.Is(err, domainErrors.ErrChargeNotFound) {
					s.logger.Warn().
						Str("provider", provider.Name()).
						Str("gateway_transaction_id", n.TransactionID).
						Msg("notification for unknown charge, skipping")
					continue
				}
				return nil, err
			}
			rn.charge = c
			if account, err = s.accounts.FindByID(ctx, c.GatewayAccountID); err != nil {
				return nil, err
			}

		case status.RefundStatus != nil:
			r, err := s.refunds.FindByGatewayTransactionID(ctx, n.TransactionID)
			if err != nil {
				if errors.Is(err, domainErrors.ErrRefundNotFound) {
					s.logger.Warn().
						Str("provider", provider.Name()).
						Str("gateway_transaction_id", n.TransactionID).
						Msg("notification for unknown refund, skipping")
					continue
				}
				return nil, err
			}
			rn.refund = r
			c, err := s.charges.FindByID(ctx, r.ChargeID)
			if err != nil {
				return nil, err
			}
			if account, err = s.accounts.FindByID(ctx, c.GatewayAccountID); err != nil {
				return nil, err
			}
		}

		if !provider.VerifyNotification(payload, signature, *account) {
			s.logger.Warn().
				Str("provider", provider.Name()).
				Str("gateway_transaction_id", n.TransactionID).
				Msg("notification failed verification, rejecting payload")
			return nil, domainErrors.NewDomainError(
				"notification_rejected",
				"notification payload failed verification",
				domainErrors.ErrNotificationRejected,
			)
		}

		resolved = append(resolved, rn)
	}

	return resolved, nil
}

// apply writes one verified notification's status. Illegal transitions are
// skipped, not errors: providers replay and reorder callbacks freely.
func (s *NotificationService) apply(ctx context.Context, provider gateway.Provider, rn resolvedNotification) {
	switch {
	case rn.charge != nil:
		s.applyChargeStatus(ctx, provider, rn.charge.ExternalID, *rn.status.ChargeStatus, rn.notification)
	case rn.refund != nil:
		s.applyRefundStatus(ctx, provider, rn.refund.ExternalID, *rn.status.RefundStatus, rn.notification)
	}
}

func (s *NotificationService) applyChargeStatus(ctx context.Context, provider gateway.Provider, chargeExternalID string, next charge.Status, n gateway.Notification) {
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := s.charges.FindByExternalID(txCtx, chargeExternalID)
		if err != nil {
			return err
		}
		if !c.Status.CanTransitionTo(next) {
			s.logger.Info().
				Str("provider", provider.Name()).
				Str("charge_external_id", chargeExternalID).
				Str("from", string(c.Status)).
				Str("to", string(next)).
				Msg("notification transition not legal from current status, skipping")
			return nil
		}
		if err := c.TransitionTo(next); err != nil {
			return err
		}
		return s.pipeline.PersistChargeStatus(txCtx, c)
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("provider", provider.Name()).
			Str("charge_external_id", chargeExternalID).
			Msg("failed to apply charge notification")
		return
	}

	s.logger.Info().
		Str("provider", provider.Name()).
		Str("charge_external_id", chargeExternalID).
		Str("status", string(next)).
		Str("gateway_transaction_id", n.TransactionID).
		Msg("charge notification applied")
}

func (s *NotificationService) applyRefundStatus(ctx context.Context, provider gateway.Provider, refundExternalID string, next refund.Status, n gateway.Notification) {
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		r, err := s.refunds.FindByExternalID(txCtx, refundExternalID)
		if err != nil {
			return err
		}
		if !r.Status.CanTransitionTo(next) {
			s.logger.Info().
				Str("provider", provider.Name()).
				Str("refund_external_id", refundExternalID).
				Str("from", string(r.Status)).
				Str("to", string(next)).
				Msg("notification transition not legal from current status, skipping")
			return nil
		}
		if err := r.TransitionTo(next); err != nil {
			return err
		}
		if err := s.refunds.UpdateWithVersion(txCtx, r); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("provider", provider.Name()).
			Str("refund_external_id", refundExternalID).
			Msg("failed to apply refund notification")
		return
	}

	s.queue.Offer(queue.NewTask(refundExternalID, queue.KindRefundStateTransition, queue.DefaultBaseDelay))
	s.logger.Info().
		Str("provider", provider.Name()).
		Str("refund_external_id", refundExternalID).
		Str("status", string(next)).
		Str("gateway_transaction_id", n.TransactionID).
		Msg("refund notification applied")
}
