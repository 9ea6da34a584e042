package refund

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
)

func testCharge(status charge.Status, amount int64) *charge.Charge {
	return &charge.Charge{ID: uuid.New(), Amount: amount, Status: status}
}

func TestAmountRefunded(t *testing.T) {
	refunds := []*Refund{
		{Amount: 30, Status: StatusRefunded},
		{Amount: 20, Status: StatusSubmitted},
		{Amount: 10, Status: StatusCreated},
		{Amount: 40, Status: StatusError},
	}
	// In-flight refunds count; only errored ones do not.
	assert.Equal(t, int64(60), AmountRefunded(refunds))
	assert.Equal(t, int64(0), AmountRefunded(nil))
}

func TestAmountAvailable(t *testing.T) {
	c := testCharge(charge.StatusCaptured, 100)

	assert.Equal(t, int64(100), AmountAvailable(c, nil))
	assert.Equal(t, int64(40), AmountAvailable(c, []*Refund{{Amount: 60, Status: StatusRefunded}}))
	assert.Equal(t, int64(0), AmountAvailable(c, []*Refund{{Amount: 100, Status: StatusRefunded}}))

	// Surcharge is refundable too.
	surcharge := int64(50)
	c.CorporateSurcharge = &surcharge
	assert.Equal(t, int64(150), AmountAvailable(c, nil))

	// Never negative, even if history over-counts.
	assert.Equal(t, int64(0), AmountAvailable(c, []*Refund{{Amount: 200, Status: StatusRefunded}}))
}

func TestCalculateAvailability(t *testing.T) {
	tests := []struct {
		name    string
		status  charge.Status
		refunds []*Refund
		want    Availability
	}{
		{"created is pending", charge.StatusCreated, nil, AvailabilityPending},
		{"entering card details is pending", charge.StatusEnteringCardDetails, nil, AvailabilityPending},
		{"authorisation success is pending", charge.StatusAuthorisationSuccess, nil, AvailabilityPending},
		{"captured is available", charge.StatusCaptured, nil, AvailabilityAvailable},
		{"captured partially refunded is available", charge.StatusCaptured, []*Refund{{Amount: 40, Status: StatusRefunded}}, AvailabilityAvailable},
		{"captured fully refunded is full", charge.StatusCaptured, []*Refund{{Amount: 100, Status: StatusRefunded}}, AvailabilityFull},
		{"rejected is unavailable", charge.StatusAuthorisationRejected, nil, AvailabilityUnavailable},
		{"expired is unavailable", charge.StatusExpired, nil, AvailabilityUnavailable},
		{"cancelled is unavailable", charge.StatusCancelled, nil, AvailabilityUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testCharge(tt.status, 100)
			assert.Equal(t, tt.want, CalculateAvailability(c, tt.refunds))
		})
	}
}

func TestRefundTransitions(t *testing.T) {
	r := &Refund{Status: StatusCreated}
	assert.NoError(t, r.TransitionTo(StatusSubmitted))
	assert.NoError(t, r.TransitionTo(StatusRefunded))
	assert.Error(t, r.TransitionTo(StatusError))
	assert.True(t, StatusRefunded.IsTerminal())
	assert.True(t, StatusError.IsTerminal())
}
