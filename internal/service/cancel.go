package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	domainErrors "github.com/mohbadar/pay-connector/internal/domain/errors"
	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
	"github.com/mohbadar/pay-connector/internal/gateway"
)

// Statuses a charge may be cancelled from without involving the gateway: no
// funds have been reserved yet.
var cancelWithoutGateway = []charge.Status{
	charge.StatusCreated,
	charge.StatusEnteringCardDetails,
	charge.StatusAuthorisation3DSRequired,
}

// Statuses where the gateway holds an authorisation that must be voided.
var cancelWithGateway = []charge.Status{
	charge.StatusAuthorisationSuccess,
	charge.StatusAwaitingCaptureRequest,
}

// CancelService voids charges before capture.
type CancelService struct {
	pipeline *Pipeline
	charges  charge.Repository
	tx       TransactionManager
	logger   zerolog.Logger
}

func NewCancelService(pipeline *Pipeline, charges charge.Repository, tx TransactionManager, logger zerolog.Logger) *CancelService {
	return &CancelService{pipeline: pipeline, charges: charges, tx: tx, logger: logger}
}

// Cancel voids a charge. Before authorisation the cancellation is purely
// local; once funds are reserved the gateway is asked to release them.
func (s *CancelService) Cancel(ctx context.Context, chargeExternalID string) (*charge.Charge, error) {
	c, err := s.charges.FindByExternalID(ctx, chargeExternalID)
	if err != nil {
		return nil, err
	}

	switch {
	case statusIn(c.Status, cancelWithoutGateway):
		return s.cancelLocally(ctx, chargeExternalID)
	case statusIn(c.Status, cancelWithGateway):
		res, err := s.cancelWithGateway(ctx, chargeExternalID, charge.StatusCancelled)
		if err != nil {
			return nil, err
		}
		return res.Charge, nil
	default:
		return nil, domainErrors.NewDomainError(
			"illegal_state",
			fmt.Sprintf("cancel is not allowed from status %s", c.Status),
			domainErrors.ErrOperationIllegal,
		)
	}
}

func (s *CancelService) cancelLocally(ctx context.Context, chargeExternalID string) (*charge.Charge, error) {
	var out *charge.Charge
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := s.charges.FindByExternalID(txCtx, chargeExternalID)
		if err != nil {
			return err
		}
		if !statusIn(c.Status, cancelWithoutGateway) {
			return domainErrors.NewDomainError(
				"illegal_state",
				fmt.Sprintf("cancel is not allowed from status %s", c.Status),
				domainErrors.ErrOperationIllegal,
			)
		}
		if err := c.TransitionTo(charge.StatusCancelled); err != nil {
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

	s.logger.Info().Str("charge_external_id", chargeExternalID).Msg("charge cancelled before authorisation")
	return out, nil
}

// cancelWithGateway voids an authorisation through the pipeline. The success
// status is parameterised so expiry sweeps can land on expired instead of
// cancelled.
func (s *CancelService) cancelWithGateway(ctx context.Context, chargeExternalID string, successStatus charge.Status) (*OperationResult, error) {
	opType := OpCancel
	if successStatus == charge.StatusExpired {
		opType = OpExpiry
	}

	cfg := operationConfig{
		Type:          opType,
		LegalStates:   cancelWithGateway,
		InterimStatus: charge.StatusCancelReady,
		FinalStatus: func(r gateway.Result) charge.Status {
			if r.Success {
				return successStatus
			}
			return charge.StatusCancelError
		},
	}

	return s.pipeline.Execute(ctx, chargeExternalID, cfg, func(ctx context.Context, c *charge.Charge, account gatewayaccount.Account, provider gateway.Provider) (gateway.Result, error) {
		return provider.Cancel(ctx, gateway.CancelRequest{
			ChargeExternalID: c.ExternalID,
			TransactionID:    transactionID(c),
			Account:          account,
		})
	})
}
