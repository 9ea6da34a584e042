package charge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"created to entering card details", StatusCreated, StatusEnteringCardDetails, true},
		{"created to expired", StatusCreated, StatusExpired, true},
		{"created to captured is illegal", StatusCreated, StatusCaptured, false},
		{"entering card details to authorisation ready", StatusEnteringCardDetails, StatusAuthorisationReady, true},
		{"authorisation ready to success", StatusAuthorisationReady, StatusAuthorisationSuccess, true},
		{"authorisation ready to 3ds required", StatusAuthorisationReady, StatusAuthorisation3DSRequired, true},
		{"authorisation success to capture ready", StatusAuthorisationSuccess, StatusCaptureReady, true},
		{"capture ready to captured", StatusCaptureReady, StatusCaptured, true},
		{"capture ready to retry", StatusCaptureReady, StatusCaptureApprovedRetry, true},
		{"capture submitted to captured", StatusCaptureSubmitted, StatusCaptured, true},
		{"captured is terminal", StatusCaptured, StatusCaptureReady, false},
		{"rejected is terminal", StatusAuthorisationRejected, StatusAuthorisationReady, false},
		{"cancel ready to expired", StatusCancelReady, StatusExpired, true},
		{"no backwards edge", StatusAuthorisationSuccess, StatusEnteringCardDetails, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

// Every status must project onto an external bucket. A missing entry would
// silently surface as "error" to paying users.
func TestExternalProjectionIsTotal(t *testing.T) {
	for _, s := range AllStatuses() {
		_, ok := externalStatuses[s]
		assert.True(t, ok, "status %s has no external projection", s)
	}
	for from, nexts := range transitions {
		_, ok := externalStatuses[from]
		assert.True(t, ok, "status %s has no external projection", from)
		for _, next := range nexts {
			_, ok := externalStatuses[next]
			assert.True(t, ok, "status %s has no external projection", next)
		}
	}
}

func TestExternalProjection(t *testing.T) {
	assert.Equal(t, ExternalCreated, StatusCreated.External())
	assert.Equal(t, ExternalStarted, StatusEnteringCardDetails.External())
	assert.Equal(t, ExternalSubmitted, StatusAuthorisationSuccess.External())
	assert.Equal(t, ExternalSuccess, StatusCaptured.External())
	assert.Equal(t, ExternalFailed, StatusAuthorisationRejected.External())
	assert.Equal(t, ExternalFailed, StatusExpired.External())
	assert.Equal(t, ExternalCancelled, StatusCancelled.External())
	assert.Equal(t, ExternalError, StatusCaptureError.External())

	// Unknown statuses fall into the error bucket rather than panicking.
	assert.Equal(t, ExternalError, Status("bogus").External())
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusCaptured.IsTerminal())
	assert.True(t, StatusAuthorisationRejected.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
	assert.False(t, StatusCreated.IsTerminal())
	assert.False(t, StatusCaptureReady.IsTerminal())
}
