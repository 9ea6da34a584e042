package errors

import (
	"errors"
	"fmt"
)

var (
	// Charge errors
	ErrChargeNotFound         = errors.New("charge not found")
	ErrIllegalStateTransition = errors.New("illegal state transition")
	ErrOperationIllegal       = errors.New("operation illegal from current status")
	ErrConflict               = errors.New("optimistic lock conflict")
	ErrOperationInProgress    = errors.New("operation already in progress")

	// Refund errors
	ErrRefundNotFound       = errors.New("refund not found")
	ErrRefundNotAvailable   = errors.New("refund not available for charge")
	ErrRefundAmountMismatch = errors.New("refund amount available mismatch")
	ErrRefundAmountExceeded = errors.New("refund amount exceeds amount available")

	// Gateway account errors
	ErrGatewayAccountNotFound = errors.New("gateway account not found")

	// Provider errors
	ErrProviderNotFound      = errors.New("payment provider not found")
	ErrOperationNotSupported = errors.New("operation not supported by provider")
	ErrNotificationRejected  = errors.New("notification failed authenticity check")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")

	// Internal errors
	ErrInternal = errors.New("internal error")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
