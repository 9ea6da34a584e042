package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	domainErrors "github.com/mohbadar/pay-connector/internal/domain/errors"
	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
	"github.com/mohbadar/pay-connector/internal/domain/refund"
	"github.com/mohbadar/pay-connector/internal/gateway"
	"github.com/mohbadar/pay-connector/internal/infrastructure/observability"
	"github.com/mohbadar/pay-connector/internal/queue"
)

// RefundResult is what a refund attempt hands back to the caller.
type RefundResult struct {
	Refund        *refund.Refund
	GatewayResult gateway.Result
}

// RefundService reverses captured charges, fully or partially.
type RefundService struct {
	charges  charge.Repository
	refunds  refund.Repository
	accounts gatewayaccount.Repository
	registry *gateway.Registry
	tx       TransactionManager
	queue    *queue.Queue
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

func NewRefundService(
	charges charge.Repository,
	refunds refund.Repository,
	accounts gatewayaccount.Repository,
	registry *gateway.Registry,
	tx TransactionManager,
	q *queue.Queue,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *RefundService {
	return &RefundService{
		charges:  charges,
		refunds:  refunds,
		accounts: accounts,
		registry: registry,
		tx:       tx,
		queue:    q,
		logger:   logger,
		metrics:  metrics,
	}
}

// Refund creates and submits a refund against a charge. clientAvailable is
// the refundable amount the caller believed it saw; a mismatch with the
// current amount means the caller acted on stale state and is rejected.
func (s *RefundService) Refund(ctx context.Context, chargeExternalID string, amount, clientAvailable int64) (*RefundResult, error) {
	var (
		r *refund.Refund
		c *charge.Charge
	)

	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		c, err = s.charges.FindByExternalID(txCtx, chargeExternalID)
		if err != nil {
			return err
		}
		existing, err := s.refunds.ListByChargeID(txCtx, c.ID)
		if err != nil {
			return err
		}

		switch refund.CalculateAvailability(c, existing) {
		case refund.AvailabilityPending:
			return domainErrors.NewDomainError(
				"refund_not_available",
				fmt.Sprintf("charge %s is not ready for refunds", chargeExternalID),
				domainErrors.ErrRefundNotAvailable,
			)
		case refund.AvailabilityUnavailable:
			return domainErrors.NewDomainError(
				"refund_not_available",
				fmt.Sprintf("charge %s cannot be refunded", chargeExternalID),
				domainErrors.ErrRefundNotAvailable,
			)
		}

		available := refund.AmountAvailable(c, existing)
		if clientAvailable != available {
			return domainErrors.NewDomainError(
				"refund_amount_mismatch",
				fmt.Sprintf("refundable amount is %d, caller expected %d", available, clientAvailable),
				domainErrors.ErrRefundAmountMismatch,
			)
		}
		if amount > available {
			return domainErrors.NewDomainError(
				"refund_amount_exceeded",
				fmt.Sprintf("requested %d exceeds refundable amount %d", amount, available),
				domainErrors.ErrRefundAmountExceeded,
			)
		}

		r, err = refund.New(c.ID, amount)
		if err != nil {
			return err
		}
		if err := s.refunds.Create(txCtx, r); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.offerTask(r)

	return s.submit(ctx, c, r)
}

// submit moves the refund to submitted, performs the gateway call and applies
// the outcome.
func (s *RefundService) submit(ctx context.Context, c *charge.Charge, r *refund.Refund) (*RefundResult, error) {
	provider, breaker, err := s.registry.Get(c.ProviderName)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.FindByID(ctx, c.GatewayAccountID)
	if err != nil {
		return nil, err
	}

	if err := r.TransitionTo(refund.StatusSubmitted); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, r); err != nil {
		return nil, err
	}

	result := s.callGateway(ctx, breaker, provider, c, r, *account)

	final := refund.StatusError
	if result.Success {
		final = refund.StatusRefunded
	}
	if err := r.TransitionTo(final); err != nil {
		return nil, err
	}
	if result.TransactionID != "" {
		r.SetGatewayTransactionID(result.TransactionID)
	}
	if err := s.persist(ctx, r); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OperationsTotal.WithLabelValues("refund", string(r.Status)).Inc()
	}
	s.logger.Info().
		Str("charge_external_id", c.ExternalID).
		Str("refund_external_id", r.ExternalID).
		Int64("amount", r.Amount).
		Str("status", string(r.Status)).
		Msg("refund processed")

	return &RefundResult{Refund: r, GatewayResult: result}, nil
}

// callGateway performs the refund round-trip behind the provider's breaker,
// counting only transport-level failures against it.
func (s *RefundService) callGateway(ctx context.Context, breaker *gobreaker.CircuitBreaker[gateway.Result], provider gateway.Provider, c *charge.Charge, r *refund.Refund, account gatewayaccount.Account) gateway.Result {
	result, err := breaker.Execute(func() (gateway.Result, error) {
		res, err := provider.Refund(ctx, gateway.RefundRequest{
			ChargeExternalID: c.ExternalID,
			RefundExternalID: r.ExternalID,
			TransactionID:    transactionID(c),
			Amount:           r.Amount,
			Account:          account,
		})
		if err != nil {
			return res, err
		}
		if res.Error != nil && (res.Error.Type == gateway.ErrorConnectionTimeout || res.Error.Type == gateway.ErrorUnexpectedHTTPStatus) {
			return res, res.Error
		}
		return res, nil
	})
	if err == nil {
		return result
	}

	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return gateway.Result{Error: gwErr}
	}
	return gateway.ErrorResult(gateway.ErrorGeneric, err.Error())
}

// Get returns a refund by its external id.
func (s *RefundService) Get(ctx context.Context, refundExternalID string) (*refund.Refund, error) {
	return s.refunds.FindByExternalID(ctx, refundExternalID)
}

// Availability reports the charge's refund availability bucket and the amount
// still refundable.
func (s *RefundService) Availability(ctx context.Context, chargeExternalID string) (refund.Availability, int64, error) {
	c, err := s.charges.FindByExternalID(ctx, chargeExternalID)
	if err != nil {
		return "", 0, err
	}
	existing, err := s.refunds.ListByChargeID(ctx, c.ID)
	if err != nil {
		return "", 0, err
	}
	return refund.CalculateAvailability(c, existing), refund.AmountAvailable(c, existing), nil
}

func (s *RefundService) persist(ctx context.Context, r *refund.Refund) error {
	if err := s.refunds.UpdateWithVersion(ctx, r); err != nil {
		return err
	}
	s.offerTask(r)
	return nil
}

func (s *RefundService) offerTask(r *refund.Refund) {
	s.queue.Offer(queue.NewTask(r.ExternalID, queue.KindRefundStateTransition, queue.DefaultBaseDelay))
}
