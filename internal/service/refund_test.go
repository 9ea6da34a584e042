package service_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	domainErrors "github.com/mohbadar/pay-connector/internal/domain/errors"
	"github.com/mohbadar/pay-connector/internal/domain/refund"
	"github.com/mohbadar/pay-connector/internal/gateway"
	"github.com/mohbadar/pay-connector/internal/service"
	"github.com/mohbadar/pay-connector/internal/testutil"
)

func newRefundService(e *env) *service.RefundService {
	return service.NewRefundService(e.charges, e.refunds, e.accounts, e.registry, testutil.NopTxManager{}, e.queue, zerolog.Nop(), nil)
}

func TestRefundPartialThenFull(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(100, charge.StatusCaptured)
	c.SetGatewayTransactionID("gw-1")
	e.charges.Seed(c)

	svc := newRefundService(e)

	res, err := svc.Refund(context.Background(), c.ExternalID, 50, 100)
	require.NoError(t, err)
	assert.Equal(t, refund.StatusRefunded, res.Refund.Status)
	require.NotNil(t, res.Refund.GatewayTransactionID)

	res, err = svc.Refund(context.Background(), c.ExternalID, 50, 50)
	require.NoError(t, err)
	assert.Equal(t, refund.StatusRefunded, res.Refund.Status)

	bucket, available, err := svc.Availability(context.Background(), c.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, refund.AvailabilityFull, bucket)
	assert.Equal(t, int64(0), available)
}

func TestRefundStaleCallerRejected(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(100, charge.StatusCaptured)
	e.charges.Seed(c)
	refunded := testutil.NewTestRefund(c, 100, refund.StatusRefunded)
	e.refunds.Seed(refunded)

	svc := newRefundService(e)

	// The caller still believes the full amount is refundable.
	_, err := svc.Refund(context.Background(), c.ExternalID, 50, 100)
	assert.ErrorIs(t, err, domainErrors.ErrRefundAmountMismatch)
}

func TestRefundAmountExceeded(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(100, charge.StatusCaptured)

	svc := newRefundService(e)
	_, err := svc.Refund(context.Background(), c.ExternalID, 150, 100)
	assert.ErrorIs(t, err, domainErrors.ErrRefundAmountExceeded)
}

func TestRefundNotAvailableBeforeCapture(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(100, charge.StatusCreated)

	svc := newRefundService(e)
	_, err := svc.Refund(context.Background(), c.ExternalID, 50, 100)
	assert.ErrorIs(t, err, domainErrors.ErrRefundNotAvailable)
}

func TestRefundGatewayFailure(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(100, charge.StatusCaptured)

	e.provider.RefundFunc = func(ctx context.Context, req gateway.RefundRequest) (gateway.Result, error) {
		return gateway.ErrorResult(gateway.ErrorConnectionTimeout, "read timeout"), nil
	}

	svc := newRefundService(e)
	res, err := svc.Refund(context.Background(), c.ExternalID, 50, 100)
	require.NoError(t, err)
	assert.Equal(t, refund.StatusError, res.Refund.Status)
	require.NotNil(t, res.GatewayResult.Error)
	assert.Equal(t, gateway.ErrorConnectionTimeout, res.GatewayResult.Error.Type)

	// A failed refund does not reduce the refundable amount.
	_, available, err := svc.Availability(context.Background(), c.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), available)
}

func TestRefundQueuesStateTransitionTasks(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(100, charge.StatusCaptured)

	svc := newRefundService(e)
	_, err := svc.Refund(context.Background(), c.ExternalID, 50, 100)
	require.NoError(t, err)

	// Created, submitted and refunded each queue a task.
	assert.Equal(t, 3, e.queue.Len())
}
