package service_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	domainErrors "github.com/mohbadar/pay-connector/internal/domain/errors"
	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
	"github.com/mohbadar/pay-connector/internal/domain/refund"
	"github.com/mohbadar/pay-connector/internal/gateway"
	"github.com/mohbadar/pay-connector/internal/service"
	"github.com/mohbadar/pay-connector/internal/testutil"
)

func newNotificationService(e *env) *service.NotificationService {
	return service.NewNotificationService(e.charges, e.refunds, e.accounts, e.registry, e.pipeline, testutil.NopTxManager{}, e.queue, zerolog.Nop())
}

// captureNotification makes the stub provider report a single CAPTURED event
// for the given gateway transaction id.
func captureNotification(e *env, txID string) {
	e.provider.ParseNotificationFunc = func(payload []byte) ([]gateway.Notification, error) {
		return []gateway.Notification{{TransactionID: txID, Status: "CAPTURED"}}, nil
	}
	e.provider.MapNotificationStatusFunc = func(status string) (gateway.NotificationStatus, bool) {
		if status == "CAPTURED" {
			s := charge.StatusCaptured
			return gateway.NotificationStatus{ChargeStatus: &s}, true
		}
		return gateway.NotificationStatus{}, false
	}
}

func TestHandleAppliesChargeNotification(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(5000, charge.StatusCaptureSubmitted)
	c.SetGatewayTransactionID("gw-1")
	e.charges.Seed(c)
	captureNotification(e, "gw-1")

	svc := newNotificationService(e)
	err := svc.Handle(context.Background(), "stub", []byte("payload"), "sig")
	require.NoError(t, err)

	cur, err := e.charges.FindByExternalID(context.Background(), c.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, charge.StatusCaptured, cur.Status)
}

func TestHandleSkipsIllegalTransition(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(5000, charge.StatusCreated)
	c.SetGatewayTransactionID("gw-1")
	e.charges.Seed(c)
	captureNotification(e, "gw-1")

	svc := newNotificationService(e)
	// Providers replay and reorder callbacks; an out-of-order status is not an
	// error, it is ignored.
	err := svc.Handle(context.Background(), "stub", []byte("payload"), "sig")
	require.NoError(t, err)

	cur, err := e.charges.FindByExternalID(context.Background(), c.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, charge.StatusCreated, cur.Status)
}

func TestHandleRejectsUnverifiedPayload(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(5000, charge.StatusCaptureSubmitted)
	c.SetGatewayTransactionID("gw-1")
	e.charges.Seed(c)
	captureNotification(e, "gw-1")
	e.provider.VerifyNotificationFunc = func(payload []byte, signature string, account gatewayaccount.Account) bool {
		return false
	}

	svc := newNotificationService(e)
	err := svc.Handle(context.Background(), "stub", []byte("payload"), "bad-sig")
	assert.ErrorIs(t, err, domainErrors.ErrNotificationRejected)

	// Nothing was applied.
	cur, err := e.charges.FindByExternalID(context.Background(), c.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, charge.StatusCaptureSubmitted, cur.Status)
}

func TestHandleRejectsUnparseablePayload(t *testing.T) {
	e := newEnv(t)
	e.provider.ParseNotificationFunc = func(payload []byte) ([]gateway.Notification, error) {
		return nil, assert.AnError
	}

	svc := newNotificationService(e)
	err := svc.Handle(context.Background(), "stub", []byte("garbage"), "")
	assert.ErrorIs(t, err, domainErrors.ErrNotificationRejected)
}

func TestHandleSkipsUnknownCharge(t *testing.T) {
	e := newEnv(t)
	captureNotification(e, "nobody-home")

	svc := newNotificationService(e)
	err := svc.Handle(context.Background(), "stub", []byte("payload"), "sig")
	assert.NoError(t, err)
}

func TestHandleSkipsIgnoredStatus(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(5000, charge.StatusCaptureSubmitted)
	c.SetGatewayTransactionID("gw-1")
	e.charges.Seed(c)

	e.provider.ParseNotificationFunc = func(payload []byte) ([]gateway.Notification, error) {
		return []gateway.Notification{{TransactionID: "gw-1", Status: "SENT_FOR_AUTHORISATION"}}, nil
	}

	svc := newNotificationService(e)
	err := svc.Handle(context.Background(), "stub", []byte("payload"), "sig")
	require.NoError(t, err)

	cur, err := e.charges.FindByExternalID(context.Background(), c.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, charge.StatusCaptureSubmitted, cur.Status)
}

func TestHandleAppliesRefundNotification(t *testing.T) {
	e := newEnv(t)
	c := e.seedCharge(5000, charge.StatusCaptured)
	e.charges.Seed(c)
	r := testutil.NewTestRefund(c, 1000, refund.StatusSubmitted)
	r.SetGatewayTransactionID("gw-refund-1")
	e.refunds.Seed(r)

	e.provider.ParseNotificationFunc = func(payload []byte) ([]gateway.Notification, error) {
		return []gateway.Notification{{TransactionID: "gw-refund-1", Status: "REFUNDED"}}, nil
	}
	e.provider.MapNotificationStatusFunc = func(status string) (gateway.NotificationStatus, bool) {
		s := refund.StatusRefunded
		return gateway.NotificationStatus{RefundStatus: &s}, true
	}

	svc := newNotificationService(e)
	err := svc.Handle(context.Background(), "stub", []byte("payload"), "sig")
	require.NoError(t, err)

	cur, err := e.refunds.FindByExternalID(context.Background(), r.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, refund.StatusRefunded, cur.Status)
	assert.Equal(t, 1, e.queue.Len())
}
