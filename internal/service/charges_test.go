package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	domainErrors "github.com/mohbadar/pay-connector/internal/domain/errors"
	"github.com/mohbadar/pay-connector/internal/service"
	"github.com/mohbadar/pay-connector/internal/testutil"
)

func newChargeService(e *env) *service.ChargeService {
	return service.NewChargeService(e.charges, e.accounts, testutil.NopTxManager{}, e.queue, zerolog.Nop())
}

func TestCreateCharge(t *testing.T) {
	e := newEnv(t)
	svc := newChargeService(e)

	surcharge := int64(150)
	c, err := svc.Create(context.Background(), service.CreateChargeParams{
		GatewayAccountID:   e.account.ID,
		Amount:             6234,
		CorporateSurcharge: &surcharge,
		Description:        "licence renewal",
		Reference:          "ref-42",
	})
	require.NoError(t, err)
	assert.Equal(t, charge.StatusCreated, c.Status)
	assert.Equal(t, "stub", c.ProviderName)
	assert.Equal(t, int64(6384), c.TotalAmount())
	assert.Len(t, c.ExternalID, 32)

	events, err := e.charges.Events(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, charge.StatusCreated, events[0].Status)
	assert.Equal(t, 1, e.queue.Len())
}

func TestCreateChargeUnknownAccount(t *testing.T) {
	e := newEnv(t)
	svc := newChargeService(e)

	_, err := svc.Create(context.Background(), service.CreateChargeParams{
		GatewayAccountID: uuid.New(),
		Amount:           100,
	})
	assert.ErrorIs(t, err, domainErrors.ErrGatewayAccountNotFound)
}

func TestCreateChargeInvalidAmount(t *testing.T) {
	e := newEnv(t)
	svc := newChargeService(e)

	_, err := svc.Create(context.Background(), service.CreateChargeParams{
		GatewayAccountID: e.account.ID,
		Amount:           0,
	})
	assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)
}

func TestMarkEnteringCardDetails(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(5000, charge.StatusCreated)

	svc := newChargeService(e)
	out, err := svc.MarkEnteringCardDetails(context.Background(), c.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, charge.StatusEnteringCardDetails, out.Status)
	assert.Equal(t, 1, e.queue.Len())
}

func TestMarkEnteringCardDetailsIllegalFromTerminal(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(5000, charge.StatusCaptured)

	svc := newChargeService(e)
	_, err := svc.MarkEnteringCardDetails(context.Background(), c.ExternalID)
	assert.ErrorIs(t, err, domainErrors.ErrIllegalStateTransition)
}

func TestGetAndEvents(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(5000, charge.StatusCreated)
	require.NoError(t, e.charges.AppendEvent(context.Background(), c.NewEvent()))

	svc := newChargeService(e)
	got, err := svc.Get(context.Background(), c.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	events, err := svc.Events(context.Background(), c.ExternalID)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domainErrors.ErrChargeNotFound)
}
