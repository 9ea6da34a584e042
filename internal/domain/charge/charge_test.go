package charge

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/mohbadar/pay-connector/internal/domain/errors"
)

func TestNew(t *testing.T) {
	accountID := uuid.New()

	c, err := New(accountID, "sandbox", 6234, "A Payment", "ref-7")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, c.Status)
	assert.Equal(t, int64(6234), c.Amount)
	assert.Equal(t, 1, c.Version)
	assert.Len(t, c.ExternalID, 32)

	_, err = New(accountID, "sandbox", 0, "", "")
	assert.Error(t, err)

	_, err = New(accountID, "", 100, "", "")
	assert.Error(t, err)
}

func TestTotalAmount(t *testing.T) {
	c := &Charge{Amount: 6234}
	assert.Equal(t, int64(6234), c.TotalAmount())

	surcharge := int64(150)
	c.CorporateSurcharge = &surcharge
	assert.Equal(t, int64(6384), c.TotalAmount())
}

func TestTransitionTo(t *testing.T) {
	c := &Charge{Status: StatusCreated}

	require.NoError(t, c.TransitionTo(StatusEnteringCardDetails))
	assert.Equal(t, StatusEnteringCardDetails, c.Status)

	err := c.TransitionTo(StatusCaptured)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainErrors.ErrIllegalStateTransition))
	// The charge is untouched after a refused transition.
	assert.Equal(t, StatusEnteringCardDetails, c.Status)
}

func TestNewEvent(t *testing.T) {
	c := &Charge{ID: uuid.New(), Status: StatusAuthorisationSuccess}
	e := c.NewEvent()
	assert.Equal(t, c.ID, e.ChargeID)
	assert.Equal(t, StatusAuthorisationSuccess, e.Status)
	assert.False(t, e.CreatedAt.IsZero())
}
