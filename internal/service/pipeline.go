package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	domainErrors "github.com/mohbadar/pay-connector/internal/domain/errors"
	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
	"github.com/mohbadar/pay-connector/internal/executor"
	"github.com/mohbadar/pay-connector/internal/gateway"
	"github.com/mohbadar/pay-connector/internal/infrastructure/observability"
	"github.com/mohbadar/pay-connector/internal/queue"
)

// TransactionManager is the application-layer port for transaction
// management.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OperationType identifies a charge operation kind.
type OperationType string

const (
	OpAuthorisation    OperationType = "authorisation"
	OpAuthorisation3DS OperationType = "authorisation_3ds"
	OpCapture          OperationType = "capture"
	OpCancel           OperationType = "cancel"
	OpExpiry           OperationType = "expiry"
)

// operationConfig declares, per operation kind, where it may legally start,
// the interim status set before the gateway call, and how a gateway result
// maps to a final status.
type operationConfig struct {
	Type          OperationType
	LegalStates   []charge.Status
	InterimStatus charge.Status
	FinalStatus   func(gateway.Result) charge.Status

	// PreHook runs inside the pre-operation transaction, after the interim
	// transition and before the persist.
	PreHook func(c *charge.Charge, p gateway.Provider)
}

// OperationResult is what a completed operation hands back to the caller.
// The gateway result is included even when the provider reported failure.
type OperationResult struct {
	Charge        *charge.Charge
	GatewayResult gateway.Result
}

// gatewayCall performs the provider round-trip for one operation.
type gatewayCall func(ctx context.Context, c *charge.Charge, account gatewayaccount.Account, provider gateway.Provider) (gateway.Result, error)

// Pipeline implements the transactional pre-operation / operation /
// post-operation protocol shared by every charge operation.
type Pipeline struct {
	charges   charge.Repository
	accounts  gatewayaccount.Repository
	registry  *gateway.Registry
	tx        TransactionManager
	queue     *queue.Queue
	executor  *executor.Executor
	logger    zerolog.Logger
	metrics   *observability.Metrics
	baseDelay time.Duration
}

func NewPipeline(
	charges charge.Repository,
	accounts gatewayaccount.Repository,
	registry *gateway.Registry,
	tx TransactionManager,
	q *queue.Queue,
	exec *executor.Executor,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Pipeline {
	return &Pipeline{
		charges:   charges,
		accounts:  accounts,
		registry:  registry,
		tx:        tx,
		queue:     q,
		executor:  exec,
		logger:    logger,
		metrics:   metrics,
		baseDelay: queue.DefaultBaseDelay,
	}
}

// Execute runs the three-phase protocol for one charge operation. The
// caller's wait is bounded by the executor; the work itself is not cancelled
// if the caller stops waiting.
func (p *Pipeline) Execute(ctx context.Context, chargeExternalID string, cfg operationConfig, call gatewayCall) (*OperationResult, error) {
	c, err := p.charges.FindByExternalID(ctx, chargeExternalID)
	if err != nil {
		return nil, err
	}

	provider, breaker, err := p.registry.Get(c.ProviderName)
	if err != nil {
		return nil, err
	}
	account, err := p.accounts.FindByID(ctx, c.GatewayAccountID)
	if err != nil {
		return nil, err
	}

	// The work must outlive the caller's wait.
	workCtx := context.WithoutCancel(ctx)

	work := func() (any, error) {
		cur, err := p.preOperation(workCtx, chargeExternalID, cfg, provider)
		if err != nil {
			return nil, err
		}

		result := p.operate(workCtx, cfg, breaker, func() (gateway.Result, error) {
			return call(workCtx, cur, *account, provider)
		})

		final, err := p.postOperation(workCtx, chargeExternalID, cfg, result)
		if err != nil {
			return nil, err
		}
		return &OperationResult{Charge: final, GatewayResult: result}, nil
	}

	status, value, err := p.executor.Execute(ctx, work)
	switch status {
	case executor.Completed:
		res := value.(*OperationResult)
		if p.metrics != nil {
			p.metrics.OperationsTotal.WithLabelValues(string(cfg.Type), string(res.Charge.Status)).Inc()
		}
		return res, nil
	case executor.InProgress:
		return nil, domainErrors.NewDomainError(
			"operation_in_progress",
			fmt.Sprintf("%s already in progress for charge %s", cfg.Type, chargeExternalID),
			domainErrors.ErrOperationInProgress,
		)
	default:
		if err == nil {
			err = domainErrors.ErrInternal
		}
		return nil, err
	}
}

// preOperation verifies the charge may start this operation and persists the
// interim status under optimistic concurrency. A concurrent writer surfaces
// as errors.ErrConflict, or as errors.ErrOperationInProgress once its interim
// status has landed.
func (p *Pipeline) preOperation(ctx context.Context, chargeExternalID string, cfg operationConfig, provider gateway.Provider) (*charge.Charge, error) {
	var out *charge.Charge
	err := p.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := p.charges.FindByExternalID(txCtx, chargeExternalID)
		if err != nil {
			return err
		}

		// A charge already sitting in this operation's interim status has a
		// concurrent attempt mid-flight; the loser of the race sees a
		// conflict, not an illegal state.
		if c.Status == cfg.InterimStatus {
			if p.metrics != nil {
				p.metrics.OperationErrors.WithLabelValues(string(cfg.Type), "in_progress").Inc()
			}
			return domainErrors.NewDomainError(
				"operation_in_progress",
				fmt.Sprintf("%s already in progress for charge %s", cfg.Type, chargeExternalID),
				domainErrors.ErrOperationInProgress,
			)
		}

		if !statusIn(c.Status, cfg.LegalStates) {
			if p.metrics != nil {
				p.metrics.OperationErrors.WithLabelValues(string(cfg.Type), "illegal_state").Inc()
			}
			return domainErrors.NewDomainError(
				"illegal_state",
				fmt.Sprintf("%s is not allowed from status %s", cfg.Type, c.Status),
				domainErrors.ErrOperationIllegal,
			)
		}

		if err := c.TransitionTo(cfg.InterimStatus); err != nil {
			return err
		}
		if cfg.PreHook != nil {
			cfg.PreHook(c, provider)
		}
		if err := p.PersistChargeStatus(txCtx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("charge_external_id", chargeExternalID).
		Str("operation", string(cfg.Type)).
		Str("status", string(out.Status)).
		Msg("pre-operation complete")
	return out, nil
}

// operate performs the gateway round-trip outside any transaction, behind
// the provider's circuit breaker. Transport-level failures count against the
// breaker; provider-reported declines do not.
func (p *Pipeline) operate(ctx context.Context, cfg operationConfig, breaker *gobreaker.CircuitBreaker[gateway.Result], call func() (gateway.Result, error)) gateway.Result {
	result, err := breaker.Execute(func() (gateway.Result, error) {
		r, err := call()
		if err != nil {
			return r, err
		}
		if r.Error != nil && (r.Error.Type == gateway.ErrorConnectionTimeout || r.Error.Type == gateway.ErrorUnexpectedHTTPStatus) {
			return r, r.Error
		}
		return r, nil
	})
	if err == nil {
		return result
	}

	var gwErr *gateway.Error
	switch {
	case errors.As(err, &gwErr):
		return gateway.Result{Error: gwErr}
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		p.logger.Warn().Str("operation", string(cfg.Type)).Msg("circuit breaker open, skipping gateway call")
		return gateway.ErrorResult(gateway.ErrorGeneric, "circuit breaker open: "+err.Error())
	default:
		// Programmer/config error from the adapter; fold it into the result
		// so the charge still reaches an error status.
		return gateway.ErrorResult(gateway.ErrorGeneric, err.Error())
	}
}

// postOperation reloads the charge, applies the gateway result to a final
// status and persists it with a fresh event and state-transition task.
func (p *Pipeline) postOperation(ctx context.Context, chargeExternalID string, cfg operationConfig, result gateway.Result) (*charge.Charge, error) {
	var out *charge.Charge
	err := p.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := p.charges.FindByExternalID(txCtx, chargeExternalID)
		if err != nil {
			return err
		}

		final := cfg.FinalStatus(result)
		if err := c.TransitionTo(final); err != nil {
			return err
		}
		if result.TransactionID != "" {
			c.SetGatewayTransactionID(result.TransactionID)
		}
		if err := p.PersistChargeStatus(txCtx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := p.logger.Info().
		Str("charge_external_id", chargeExternalID).
		Str("operation", string(cfg.Type)).
		Str("status", string(out.Status))
	if out.GatewayTransactionID != nil {
		log = log.Str("gateway_transaction_id", *out.GatewayTransactionID)
	}
	log.Msg("gateway response applied")
	return out, nil
}

// PersistChargeStatus is the single write path for charge status: a
// compare-and-swap update, an appended history event and a queued
// state-transition task.
func (p *Pipeline) PersistChargeStatus(ctx context.Context, c *charge.Charge) error {
	if err := p.charges.UpdateWithVersion(ctx, c); err != nil {
		return err
	}
	if err := p.charges.AppendEvent(ctx, c.NewEvent()); err != nil {
		return err
	}
	p.queue.Offer(queue.NewTask(c.ExternalID, queue.KindPaymentStateTransition, p.baseDelay))
	return nil
}

func statusIn(s charge.Status, set []charge.Status) bool {
	for _, allowed := range set {
		if s == allowed {
			return true
		}
	}
	return false
}
