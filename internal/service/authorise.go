package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	domainErrors "github.com/mohbadar/pay-connector/internal/domain/errors"
	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
	"github.com/mohbadar/pay-connector/internal/gateway"
)

// AuthoriseService runs card and 3DS authorisations through the operation
// pipeline.
type AuthoriseService struct {
	pipeline *Pipeline
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewAuthoriseService(pipeline *Pipeline, logger zerolog.Logger) *AuthoriseService {
	return &AuthoriseService{
		pipeline: pipeline,
		validate: validator.New(),
		logger:   logger,
	}
}

// Authorise submits card details for a charge awaiting them. The charge moves
// through AUTHORISATION READY and lands on a final status derived from the
// gateway result.
func (s *AuthoriseService) Authorise(ctx context.Context, chargeExternalID string, card gateway.Card) (*OperationResult, error) {
	if err := s.validate.Struct(card); err != nil {
		return nil, domainErrors.NewDomainError("invalid_card", "card details failed validation: "+err.Error(), domainErrors.ErrValidationFailed)
	}

	cfg := operationConfig{
		Type:          OpAuthorisation,
		LegalStates:   []charge.Status{charge.StatusEnteringCardDetails},
		InterimStatus: charge.StatusAuthorisationReady,
		FinalStatus:   authorisationFinalStatus,
		PreHook: func(c *charge.Charge, p gateway.Provider) {
			if id, ok := p.GenerateTransactionID(); ok {
				c.SetGatewayTransactionID(id)
			}
		},
	}

	return s.pipeline.Execute(ctx, chargeExternalID, cfg, func(ctx context.Context, c *charge.Charge, account gatewayaccount.Account, provider gateway.Provider) (gateway.Result, error) {
		return provider.Authorise(ctx, gateway.AuthoriseRequest{
			ChargeExternalID: c.ExternalID,
			TransactionID:    transactionID(c),
			Amount:           c.TotalAmount(),
			Description:      c.Description,
			Card:             card,
			Account:          account,
		})
	})
}

// Authorise3DS resumes an authorisation parked on a 3DS challenge with the
// issuer's authentication response.
func (s *AuthoriseService) Authorise3DS(ctx context.Context, chargeExternalID, paRes string) (*OperationResult, error) {
	if paRes == "" {
		return nil, domainErrors.NewValidationError("pa_response", "cannot be empty")
	}

	cfg := operationConfig{
		Type:          OpAuthorisation3DS,
		LegalStates:   []charge.Status{charge.StatusAuthorisation3DSRequired},
		InterimStatus: charge.StatusAuthorisation3DSReady,
		FinalStatus:   authorisationFinalStatus,
	}

	return s.pipeline.Execute(ctx, chargeExternalID, cfg, func(ctx context.Context, c *charge.Charge, account gatewayaccount.Account, provider gateway.Provider) (gateway.Result, error) {
		return provider.Authorise3DS(ctx, gateway.Auth3DSRequest{
			ChargeExternalID: c.ExternalID,
			TransactionID:    transactionID(c),
			PaRes:            paRes,
			Account:          account,
		})
	})
}

func authorisationFinalStatus(r gateway.Result) charge.Status {
	switch {
	case r.Error != nil:
		return charge.StatusAuthorisationError
	case r.Requires3DS:
		return charge.StatusAuthorisation3DSRequired
	case r.Success:
		return charge.StatusAuthorisationSuccess
	default:
		return charge.StatusAuthorisationRejected
	}
}

func transactionID(c *charge.Charge) string {
	if c.GatewayTransactionID != nil {
		return *c.GatewayTransactionID
	}
	return ""
}
