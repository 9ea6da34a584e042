package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	"github.com/mohbadar/pay-connector/internal/infrastructure/observability"
)

// Statuses an abandoned charge can expire from without a gateway call.
var expireWithoutGateway = []charge.Status{
	charge.StatusCreated,
	charge.StatusEnteringCardDetails,
	charge.StatusAuthorisation3DSRequired,
}

// ExpiryProcess sweeps abandoned charges past their age threshold into the
// expired status, releasing any reserved funds through the gateway first.
type ExpiryProcess struct {
	charges   charge.Repository
	cancel    *CancelService
	pipeline  *Pipeline
	tx        TransactionManager
	logger    zerolog.Logger
	metrics   *observability.Metrics
	interval  time.Duration
	threshold time.Duration
	batchSize int
}

func NewExpiryProcess(charges charge.Repository, cancel *CancelService, pipeline *Pipeline, tx TransactionManager, logger zerolog.Logger, metrics *observability.Metrics, interval, threshold time.Duration, batchSize int) *ExpiryProcess {
	return &ExpiryProcess{
		charges:   charges,
		cancel:    cancel,
		pipeline:  pipeline,
		tx:        tx,
		logger:    logger,
		metrics:   metrics,
		interval:  interval,
		threshold: threshold,
		batchSize: batchSize,
	}
}

// Run sweeps on a fixed interval until ctx is done.
func (p *ExpiryProcess) Run(ctx context.Context) error {
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

// RunOnce expires one batch of charges older than the threshold.
func (p *ExpiryProcess) RunOnce(ctx context.Context) {
	cutoff := time.Now().Add(-p.threshold)

	p.expireLocally(ctx, cutoff)
	p.expireAuthorised(ctx, cutoff)
}

// expireLocally handles charges where no funds are held: a straight status
// write, no gateway involved.
func (p *ExpiryProcess) expireLocally(ctx context.Context, cutoff time.Time) {
	batch, err := p.charges.FindCreatedBefore(ctx, expireWithoutGateway, cutoff, p.batchSize)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to load expirable charges")
		return
	}

	for _, c := range batch {
		err := p.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			cur, err := p.charges.FindByExternalID(txCtx, c.ExternalID)
			if err != nil {
				return err
			}
			if !statusIn(cur.Status, expireWithoutGateway) {
				return nil
			}
			if err := cur.TransitionTo(charge.StatusExpired); err != nil {
				return err
			}
			return p.pipeline.PersistChargeStatus(txCtx, cur)
		})
		if err != nil {
			p.logger.Warn().Err(err).Str("charge_external_id", c.ExternalID).Msg("failed to expire charge")
			continue
		}
		if p.metrics != nil {
			p.metrics.ChargesExpiredTotal.Inc()
		}
		p.logger.Info().Str("charge_external_id", c.ExternalID).Msg("charge expired")
	}
}

// expireAuthorised handles charges holding an authorisation: the gateway is
// asked to release the funds before the charge lands on expired.
func (p *ExpiryProcess) expireAuthorised(ctx context.Context, cutoff time.Time) {
	batch, err := p.charges.FindCreatedBefore(ctx, cancelWithGateway, cutoff, p.batchSize)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to load expirable authorised charges")
		return
	}

	for _, c := range batch {
		res, err := p.cancel.cancelWithGateway(ctx, c.ExternalID, charge.StatusExpired)
		if err != nil {
			p.logger.Warn().Err(err).Str("charge_external_id", c.ExternalID).Msg("failed to expire authorised charge")
			continue
		}
		if res.Charge.Status == charge.StatusExpired && p.metrics != nil {
			p.metrics.ChargesExpiredTotal.Inc()
		}
		p.logger.Info().
			Str("charge_external_id", c.ExternalID).
			Str("status", string(res.Charge.Status)).
			Msg("authorised charge expiry attempted")
	}
}
