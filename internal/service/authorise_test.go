package service_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	domainErrors "github.com/mohbadar/pay-connector/internal/domain/errors"
	"github.com/mohbadar/pay-connector/internal/gateway"
	"github.com/mohbadar/pay-connector/internal/service"
)

func TestAuthoriseSuccess(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(5000, charge.StatusEnteringCardDetails)

	e.provider.GenerateTransactionIDFunc = func() (string, bool) { return "3014644340", true }
	e.provider.AuthoriseFunc = func(ctx context.Context, req gateway.AuthoriseRequest) (gateway.Result, error) {
		assert.Equal(t, "3014644340", req.TransactionID)
		assert.Equal(t, int64(5000), req.Amount)
		return gateway.Result{Success: true, TransactionID: req.TransactionID}, nil
	}

	svc := service.NewAuthoriseService(e.pipeline, zerolog.Nop())
	res, err := svc.Authorise(context.Background(), c.ExternalID, validCard())
	require.NoError(t, err)
	assert.Equal(t, charge.StatusAuthorisationSuccess, res.Charge.Status)
	require.NotNil(t, res.Charge.GatewayTransactionID)
	assert.Equal(t, "3014644340", *res.Charge.GatewayTransactionID)

	// Interim and final statuses are both recorded in the history and each
	// persisted status queues an event task.
	events, err := e.charges.Events(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, charge.StatusAuthorisationReady, events[0].Status)
	assert.Equal(t, charge.StatusAuthorisationSuccess, events[1].Status)
	assert.Equal(t, 2, e.queue.Len())
}

func TestAuthoriseDeclined(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(5000, charge.StatusEnteringCardDetails)

	e.provider.AuthoriseFunc = func(ctx context.Context, req gateway.AuthoriseRequest) (gateway.Result, error) {
		return gateway.Result{Success: false, TransactionID: "tx-declined"}, nil
	}

	svc := service.NewAuthoriseService(e.pipeline, zerolog.Nop())
	res, err := svc.Authorise(context.Background(), c.ExternalID, validCard())
	require.NoError(t, err)
	assert.Equal(t, charge.StatusAuthorisationRejected, res.Charge.Status)
}

func TestAuthoriseGatewayError(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(5000, charge.StatusEnteringCardDetails)

	e.provider.AuthoriseFunc = func(ctx context.Context, req gateway.AuthoriseRequest) (gateway.Result, error) {
		return gateway.ErrorResult(gateway.ErrorConnectionTimeout, "read timeout"), nil
	}

	svc := service.NewAuthoriseService(e.pipeline, zerolog.Nop())
	res, err := svc.Authorise(context.Background(), c.ExternalID, validCard())
	require.NoError(t, err)
	assert.Equal(t, charge.StatusAuthorisationError, res.Charge.Status)
	require.NotNil(t, res.GatewayResult.Error)
	assert.Equal(t, gateway.ErrorConnectionTimeout, res.GatewayResult.Error.Type)
}

func TestAuthoriseInvalidCard(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(5000, charge.StatusEnteringCardDetails)

	called := false
	e.provider.AuthoriseFunc = func(ctx context.Context, req gateway.AuthoriseRequest) (gateway.Result, error) {
		called = true
		return gateway.Result{}, nil
	}

	svc := service.NewAuthoriseService(e.pipeline, zerolog.Nop())
	card := validCard()
	card.Number = "not-a-pan"
	_, err := svc.Authorise(context.Background(), c.ExternalID, card)
	assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)
	assert.False(t, called)

	// The charge was never touched.
	cur, err := e.charges.FindByExternalID(context.Background(), c.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, charge.StatusEnteringCardDetails, cur.Status)
}

func TestAuthoriseIllegalFromCreated(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(5000, charge.StatusCreated)

	called := false
	e.provider.AuthoriseFunc = func(ctx context.Context, req gateway.AuthoriseRequest) (gateway.Result, error) {
		called = true
		return gateway.Result{}, nil
	}

	svc := service.NewAuthoriseService(e.pipeline, zerolog.Nop())
	_, err := svc.Authorise(context.Background(), c.ExternalID, validCard())
	assert.ErrorIs(t, err, domainErrors.ErrOperationIllegal)
	assert.False(t, called)

	cur, err := e.charges.FindByExternalID(context.Background(), c.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, charge.StatusCreated, cur.Status)
	assert.Equal(t, 1, cur.Version)
}

func TestAuthorise3DSFlow(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(5000, charge.StatusEnteringCardDetails)

	e.provider.AuthoriseFunc = func(ctx context.Context, req gateway.AuthoriseRequest) (gateway.Result, error) {
		return gateway.Result{Requires3DS: true, TransactionID: "tx-3ds"}, nil
	}

	svc := service.NewAuthoriseService(e.pipeline, zerolog.Nop())
	res, err := svc.Authorise(context.Background(), c.ExternalID, validCard())
	require.NoError(t, err)
	assert.Equal(t, charge.StatusAuthorisation3DSRequired, res.Charge.Status)

	e.provider.Authorise3DSFunc = func(ctx context.Context, req gateway.Auth3DSRequest) (gateway.Result, error) {
		assert.Equal(t, "tx-3ds", req.TransactionID)
		assert.Equal(t, "pa-response", req.PaRes)
		return gateway.Result{Success: true, TransactionID: req.TransactionID}, nil
	}

	res, err = svc.Authorise3DS(context.Background(), c.ExternalID, "pa-response")
	require.NoError(t, err)
	assert.Equal(t, charge.StatusAuthorisationSuccess, res.Charge.Status)
}

func TestAuthorise3DSEmptyPaResponse(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(5000, charge.StatusAuthorisation3DSRequired)

	svc := service.NewAuthoriseService(e.pipeline, zerolog.Nop())
	_, err := svc.Authorise3DS(context.Background(), c.ExternalID, "")
	assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)
}
