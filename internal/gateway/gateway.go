package gateway

import (
	"context"
	"time"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
	"github.com/mohbadar/pay-connector/internal/domain/refund"
)

// ErrorType classifies how a gateway round-trip went wrong.
type ErrorType string

const (
	ErrorConnectionTimeout    ErrorType = "connection_timeout"
	ErrorUnexpectedHTTPStatus ErrorType = "unexpected_http_status"
	ErrorUnparseableResponse  ErrorType = "unparseable_response"
	ErrorGeneric              ErrorType = "generic_gateway_error"
)

// Error is a gateway-reported or transport failure. It travels as data inside
// a Result, never as a Go error out of an adapter.
type Error struct {
	Type    ErrorType
	Message string
}

func (e *Error) Error() string {
	return string(e.Type) + ": " + e.Message
}

// CaptureState distinguishes providers that settle immediately from those
// that confirm asynchronously via notification.
type CaptureState string

const (
	CaptureComplete  CaptureState = "complete"
	CaptureSubmitted CaptureState = "submitted"
)

// Result is the normalized outcome of any gateway operation.
//
// Success=false with a nil Error means the provider processed the request and
// declined it; a non-nil Error means the round-trip itself failed.
type Result struct {
	Success       bool
	TransactionID string
	Requires3DS   bool
	CaptureState  CaptureState
	Error         *Error
}

// ErrorResult builds a failed Result carrying a classified gateway error.
func ErrorResult(t ErrorType, message string) Result {
	return Result{Error: &Error{Type: t, Message: message}}
}

// Card carries the card details submitted for authorisation. Validation
// happens before the pipeline is entered.
type Card struct {
	Number     string `validate:"required,numeric,min=12,max=19"`
	Holder     string `validate:"required"`
	CVC        string `validate:"required,numeric,min=3,max=4"`
	ExpiryDate string `validate:"required,len=5"` // MM/YY
	Brand      string `validate:"required"`
}

// AuthoriseRequest asks the provider to reserve funds against a card.
type AuthoriseRequest struct {
	ChargeExternalID string
	TransactionID    string // pre-generated, if the provider supports it
	Amount           int64
	Description      string
	Card             Card
	Account          gatewayaccount.Account
}

// Auth3DSRequest continues an authorisation after a 3DS challenge.
type Auth3DSRequest struct {
	ChargeExternalID string
	TransactionID    string
	PaRes            string
	Account          gatewayaccount.Account
}

// CaptureRequest settles previously authorised funds.
type CaptureRequest struct {
	ChargeExternalID string
	TransactionID    string
	Amount           int64
	Account          gatewayaccount.Account
}

// RefundRequest reverses part or all of a captured charge.
type RefundRequest struct {
	ChargeExternalID string
	RefundExternalID string
	TransactionID    string
	Amount           int64
	Account          gatewayaccount.Account
}

// CancelRequest voids an authorisation.
type CancelRequest struct {
	ChargeExternalID string
	TransactionID    string
	Account          gatewayaccount.Account
}

// Notification is one status event parsed out of a provider callback payload.
type Notification struct {
	TransactionID string
	Reference     string
	Status        string
	EventTime     time.Time
}

// NotificationStatus is the provider status string interpreted into the
// domain. Exactly one of the fields is set.
type NotificationStatus struct {
	ChargeStatus *charge.Status
	RefundStatus *refund.Status
}

// Provider is the capability surface implemented once per payment gateway.
//
// Operations return a Result even on provider-reported failure; the error
// return is reserved for programmer/config errors such as an operation the
// provider does not support at all.
type Provider interface {
	Name() string

	Authorise(ctx context.Context, req AuthoriseRequest) (Result, error)
	Authorise3DS(ctx context.Context, req Auth3DSRequest) (Result, error)
	Capture(ctx context.Context, req CaptureRequest) (Result, error)
	Refund(ctx context.Context, req RefundRequest) (Result, error)
	Cancel(ctx context.Context, req CancelRequest) (Result, error)

	// GenerateTransactionID pre-generates a gateway transaction id before
	// authorisation, for providers that work that way.
	GenerateTransactionID() (string, bool)

	// ParseNotification decodes a raw callback payload into ordered status
	// events.
	ParseNotification(payload []byte) ([]Notification, error)

	// VerifyNotification checks payload authenticity against the account's
	// credentials. It must pass before any status from the payload is applied.
	VerifyNotification(payload []byte, signature string, account gatewayaccount.Account) bool

	// SignatureHeader names the request header carrying the callback
	// signature, empty for providers that authenticate the payload body
	// itself.
	SignatureHeader() string

	// MapNotificationStatus interprets a provider status string; ok is false
	// for statuses the connector ignores.
	MapNotificationStatus(status string) (NotificationStatus, bool)
}
