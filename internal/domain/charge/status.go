package charge

// Status represents the internal charge status in the state machine
type Status string

const (
	StatusUndefined           Status = "undefined"
	StatusCreated             Status = "created"
	StatusEnteringCardDetails Status = "entering_card_details"

	StatusAuthorisationReady       Status = "authorisation_ready"
	StatusAuthorisation3DSRequired Status = "authorisation_3ds_required"
	StatusAuthorisation3DSReady    Status = "authorisation_3ds_ready"
	StatusAuthorisationSubmitted   Status = "authorisation_submitted"
	StatusAuthorisationSuccess     Status = "authorisation_success"
	StatusAuthorisationRejected    Status = "authorisation_rejected"
	StatusAuthorisationError       Status = "authorisation_error"

	StatusAwaitingCaptureRequest Status = "awaiting_capture_request"
	StatusCaptureApproved        Status = "capture_approved"
	StatusCaptureApprovedRetry   Status = "capture_approved_retry"
	StatusCaptureReady           Status = "capture_ready"
	StatusCaptureSubmitted       Status = "capture_submitted"
	StatusCaptured               Status = "captured"
	StatusCaptureError           Status = "capture_error"

	StatusCancelReady Status = "cancel_ready"
	StatusCancelled   Status = "cancelled"
	StatusCancelError Status = "cancel_error"

	StatusExpired Status = "expired"
)

// ExternalStatus is the coarse public-facing status vocabulary. Many internal
// statuses project onto each bucket.
type ExternalStatus string

const (
	ExternalCreated   ExternalStatus = "created"
	ExternalStarted   ExternalStatus = "started"
	ExternalSubmitted ExternalStatus = "submitted"
	ExternalSuccess   ExternalStatus = "success"
	ExternalFailed    ExternalStatus = "failed"
	ExternalCancelled ExternalStatus = "cancelled"
	ExternalError     ExternalStatus = "error"
)

// transitions is the legal-transition graph. A status not present here is
// terminal.
var transitions = map[Status][]Status{
	StatusUndefined: {StatusCreated},
	StatusCreated:   {StatusEnteringCardDetails, StatusExpired, StatusCancelled},
	StatusEnteringCardDetails: {
		StatusAuthorisationReady,
		StatusExpired,
		StatusCancelled,
	},
	StatusAuthorisationReady: {
		StatusAuthorisationSuccess,
		StatusAuthorisationRejected,
		StatusAuthorisationError,
		StatusAuthorisation3DSRequired,
		StatusAuthorisationSubmitted,
	},
	StatusAuthorisation3DSRequired: {
		StatusAuthorisation3DSReady,
		StatusExpired,
		StatusCancelled,
	},
	StatusAuthorisation3DSReady: {
		StatusAuthorisationSuccess,
		StatusAuthorisationRejected,
		StatusAuthorisationError,
		StatusAuthorisation3DSRequired,
	},
	StatusAuthorisationSubmitted: {
		StatusAuthorisationSuccess,
		StatusAuthorisationRejected,
		StatusAuthorisationError,
	},
	StatusAuthorisationSuccess: {
		StatusCaptureApproved,
		StatusCaptureReady,
		StatusAwaitingCaptureRequest,
		StatusCancelReady,
		StatusExpired,
	},
	StatusAwaitingCaptureRequest: {
		StatusCaptureApproved,
		StatusCaptureReady,
		StatusCancelReady,
		StatusExpired,
	},
	StatusCaptureApproved:      {StatusCaptureReady, StatusCaptureError},
	StatusCaptureApprovedRetry: {StatusCaptureReady, StatusCaptureError},
	StatusCaptureReady: {
		StatusCaptured,
		StatusCaptureSubmitted,
		StatusCaptureApprovedRetry,
		StatusCaptureError,
	},
	StatusCaptureSubmitted: {StatusCaptured},
	StatusCancelReady:      {StatusCancelled, StatusCancelError, StatusExpired},
}

// externalStatuses projects every internal status onto exactly one external
// bucket.
var externalStatuses = map[Status]ExternalStatus{
	StatusUndefined:           ExternalError,
	StatusCreated:             ExternalCreated,
	StatusEnteringCardDetails: ExternalStarted,

	StatusAuthorisationReady:       ExternalStarted,
	StatusAuthorisation3DSRequired: ExternalStarted,
	StatusAuthorisation3DSReady:    ExternalStarted,
	StatusAuthorisationSubmitted:   ExternalSubmitted,
	StatusAuthorisationSuccess:     ExternalSubmitted,
	StatusAuthorisationRejected:    ExternalFailed,
	StatusAuthorisationError:       ExternalError,

	StatusAwaitingCaptureRequest: ExternalSubmitted,
	StatusCaptureApproved:        ExternalSubmitted,
	StatusCaptureApprovedRetry:   ExternalSubmitted,
	StatusCaptureReady:           ExternalSubmitted,
	StatusCaptureSubmitted:       ExternalSubmitted,
	StatusCaptured:               ExternalSuccess,
	StatusCaptureError:           ExternalError,

	StatusCancelReady: ExternalSubmitted,
	StatusCancelled:   ExternalCancelled,
	StatusCancelError: ExternalError,

	StatusExpired: ExternalFailed,
}

// CanTransitionTo reports whether the graph has an edge from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// External projects the internal status onto its external bucket. The
// projection is total; unknown statuses fall into the error bucket.
func (s Status) External() ExternalStatus {
	if ext, ok := externalStatuses[s]; ok {
		return ext
	}
	return ExternalError
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// AllStatuses returns every status known to the state machine.
func AllStatuses() []Status {
	statuses := make([]Status, 0, len(externalStatuses))
	for s := range externalStatuses {
		statuses = append(statuses, s)
	}
	return statuses
}
