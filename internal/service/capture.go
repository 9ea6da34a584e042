package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
	"github.com/mohbadar/pay-connector/internal/gateway"
	"github.com/mohbadar/pay-connector/internal/infrastructure/observability"
)

// CaptureService settles authorised charges, either immediately on request or
// asynchronously via the background capture process.
type CaptureService struct {
	pipeline *Pipeline
	charges  charge.Repository
	tx       TransactionManager
	logger   zerolog.Logger
}

func NewCaptureService(pipeline *Pipeline, charges charge.Repository, tx TransactionManager, logger zerolog.Logger) *CaptureService {
	return &CaptureService{pipeline: pipeline, charges: charges, tx: tx, logger: logger}
}

// Capture runs a synchronous gateway capture for a charge that has been
// authorised, approved, or is due a retry.
func (s *CaptureService) Capture(ctx context.Context, chargeExternalID string) (*OperationResult, error) {
	cfg := operationConfig{
		Type: OpCapture,
		LegalStates: []charge.Status{
			charge.StatusAuthorisationSuccess,
			charge.StatusAwaitingCaptureRequest,
			charge.StatusCaptureApproved,
			charge.StatusCaptureApprovedRetry,
		},
		InterimStatus: charge.StatusCaptureReady,
		FinalStatus:   captureFinalStatus,
	}

	return s.pipeline.Execute(ctx, chargeExternalID, cfg, func(ctx context.Context, c *charge.Charge, account gatewayaccount.Account, provider gateway.Provider) (gateway.Result, error) {
		return provider.Capture(ctx, gateway.CaptureRequest{
			ChargeExternalID: c.ExternalID,
			TransactionID:    transactionID(c),
			Amount:           c.TotalAmount(),
			Account:          account,
		})
	})
}

// Approve marks an authorised charge for asynchronous capture. The background
// capture process performs the gateway call later.
func (s *CaptureService) Approve(ctx context.Context, chargeExternalID string) (*charge.Charge, error) {
	var out *charge.Charge
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := s.charges.FindByExternalID(txCtx, chargeExternalID)
		if err != nil {
			return err
		}
		if err := c.TransitionTo(charge.StatusCaptureApproved); err != nil {
			return err
		}
		if err := s.pipeline.PersistChargeStatus(txCtx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func captureFinalStatus(r gateway.Result) charge.Status {
	switch {
	case r.Error != nil:
		return charge.StatusCaptureApprovedRetry
	case r.Success && r.CaptureState == gateway.CaptureSubmitted:
		return charge.StatusCaptureSubmitted
	case r.Success:
		return charge.StatusCaptured
	default:
		return charge.StatusCaptureError
	}
}

// CaptureProcess is the background loop draining charges approved for capture,
// including those parked for retry after a gateway failure.
type CaptureProcess struct {
	capture    *CaptureService
	charges    charge.Repository
	pipeline   *Pipeline
	tx         TransactionManager
	logger     zerolog.Logger
	metrics    *observability.Metrics
	interval   time.Duration
	batchSize  int
	maxRetries int
}

func NewCaptureProcess(capture *CaptureService, charges charge.Repository, pipeline *Pipeline, tx TransactionManager, logger zerolog.Logger, metrics *observability.Metrics, interval time.Duration, batchSize, maxRetries int) *CaptureProcess {
	return &CaptureProcess{
		capture:    capture,
		charges:    charges,
		pipeline:   pipeline,
		tx:         tx,
		logger:     logger,
		metrics:    metrics,
		interval:   interval,
		batchSize:  batchSize,
		maxRetries: maxRetries,
	}
}

// Run sweeps capture-approved charges on a fixed interval until ctx is done.
func (p *CaptureProcess) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce drains one batch of charges in capture-approved and
// capture-approved-retry.
func (p *CaptureProcess) RunOnce(ctx context.Context) {
	if p.metrics != nil {
		p.metrics.CaptureBatchesTotal.Inc()
	}
	for _, status := range []charge.Status{charge.StatusCaptureApproved, charge.StatusCaptureApprovedRetry} {
		batch, err := p.charges.FindByStatus(ctx, status, p.batchSize, 0)
		if err != nil {
			p.logger.Error().Err(err).Str("status", string(status)).Msg("failed to load capture batch")
			continue
		}
		for _, c := range batch {
			p.captureOne(ctx, c)
		}
	}
}

func (p *CaptureProcess) captureOne(ctx context.Context, c *charge.Charge) {
	if c.Status == charge.StatusCaptureApprovedRetry {
		exceeded, err := p.retriesExceeded(ctx, c)
		if err != nil {
			p.logger.Error().Err(err).Str("charge_external_id", c.ExternalID).Msg("failed to count capture retries")
			return
		}
		if exceeded {
			p.markCaptureError(ctx, c)
			return
		}
	}

	_, err := p.capture.Capture(ctx, c.ExternalID)
	if err != nil {
		// Conflicts and in-progress races resolve themselves on the next sweep.
		p.logger.Warn().Err(err).Str("charge_external_id", c.ExternalID).Msg("background capture attempt failed")
	}
}

// retriesExceeded counts how many times the charge has been parked for a
// capture retry.
func (p *CaptureProcess) retriesExceeded(ctx context.Context, c *charge.Charge) (bool, error) {
	events, err := p.charges.Events(ctx, c.ID)
	if err != nil {
		return false, err
	}
	retries := 0
	for _, e := range events {
		if e.Status == charge.StatusCaptureApprovedRetry {
			retries++
		}
	}
	return retries >= p.maxRetries, nil
}

func (p *CaptureProcess) markCaptureError(ctx context.Context, c *charge.Charge) {
	err := p.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		cur, err := p.charges.FindByExternalID(txCtx, c.ExternalID)
		if err != nil {
			return err
		}
		if err := cur.TransitionTo(charge.StatusCaptureError); err != nil {
			return err
		}
		return p.pipeline.PersistChargeStatus(txCtx, cur)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error().Err(err).Str("charge_external_id", c.ExternalID).Msg("failed to mark capture error")
		return
	}
	p.logger.Error().
		Str("charge_external_id", c.ExternalID).
		Int("max_retries", p.maxRetries).
		Msg("capture abandoned after exhausting retries")
}
