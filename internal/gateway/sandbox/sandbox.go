// Package sandbox is an in-process gateway simulation. Recognizable card
// numbers map deterministically to authorisation outcomes; no network call is
// ever made.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
	"github.com/mohbadar/pay-connector/internal/domain/refund"
	"github.com/mohbadar/pay-connector/internal/gateway"
)

const ProviderName = "sandbox"

type cardOutcome int

const (
	outcomeAuthorised cardOutcome = iota
	outcomeDeclined
	outcomeError
	outcome3DSRequired
)

// cardTable maps fake card numbers to deterministic outcomes.
var cardTable = map[string]cardOutcome{
	"4444333322221111":    outcomeAuthorised,
	"4242424242424242":    outcomeAuthorised,
	"4917610000000000003": outcomeAuthorised,

	"4000000000000002": outcomeDeclined, // generic decline
	"4000000000000069": outcomeDeclined, // expired card
	"4000000000000127": outcomeDeclined, // incorrect cvc

	"4000000000000119": outcomeError, // processing error at the gateway

	"4000000000003063": outcome3DSRequired,
}

// Provider simulates a payment gateway in process.
type Provider struct {
	generateTransactionID func() string
}

type Option func(*Provider)

// WithTransactionIDGenerator overrides how gateway transaction ids are made.
func WithTransactionIDGenerator(fn func() string) Option {
	return func(p *Provider) { p.generateTransactionID = fn }
}

func New(opts ...Option) *Provider {
	p := &Provider{
		generateTransactionID: func() string {
			return strings.ReplaceAll(uuid.New().String(), "-", "")
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) SignatureHeader() string { return "" }

func (p *Provider) Authorise(ctx context.Context, req gateway.AuthoriseRequest) (gateway.Result, error) {
	outcome, known := cardTable[req.Card.Number]
	if !known {
		return gateway.Result{}, nil // unrecognised card: declined
	}

	switch outcome {
	case outcomeAuthorised:
		return gateway.Result{Success: true, TransactionID: p.transactionID(req.TransactionID)}, nil
	case outcome3DSRequired:
		return gateway.Result{Requires3DS: true, TransactionID: p.transactionID(req.TransactionID)}, nil
	case outcomeError:
		return gateway.ErrorResult(gateway.ErrorGeneric, "simulated gateway processing error"), nil
	default:
		return gateway.Result{}, nil
	}
}

func (p *Provider) Authorise3DS(ctx context.Context, req gateway.Auth3DSRequest) (gateway.Result, error) {
	if req.PaRes == "" {
		return gateway.Result{TransactionID: req.TransactionID}, nil
	}
	return gateway.Result{Success: true, TransactionID: p.transactionID(req.TransactionID)}, nil
}

func (p *Provider) Capture(ctx context.Context, req gateway.CaptureRequest) (gateway.Result, error) {
	return gateway.Result{
		Success:       true,
		TransactionID: req.TransactionID,
		CaptureState:  gateway.CaptureComplete,
	}, nil
}

func (p *Provider) Refund(ctx context.Context, req gateway.RefundRequest) (gateway.Result, error) {
	return gateway.Result{
		Success:       true,
		TransactionID: fmt.Sprintf("%s-refund", req.TransactionID),
	}, nil
}

func (p *Provider) Cancel(ctx context.Context, req gateway.CancelRequest) (gateway.Result, error) {
	return gateway.Result{Success: true, TransactionID: req.TransactionID}, nil
}

func (p *Provider) GenerateTransactionID() (string, bool) {
	return p.generateTransactionID(), true
}

// notificationPayload is the sandbox's own callback format, used in tests and
// local runs.
type notificationPayload struct {
	TransactionID string    `json:"transaction_id"`
	Reference     string    `json:"reference"`
	Status        string    `json:"status"`
	EventTime     time.Time `json:"event_time"`
}

func (p *Provider) ParseNotification(payload []byte) ([]gateway.Notification, error) {
	var n notificationPayload
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("parse sandbox notification: %w", err)
	}
	return []gateway.Notification{{
		TransactionID: n.TransactionID,
		Reference:     n.Reference,
		Status:        n.Status,
		EventTime:     n.EventTime,
	}}, nil
}

func (p *Provider) VerifyNotification(payload []byte, signature string, account gatewayaccount.Account) bool {
	// The sandbox never leaves the process; there is nothing to verify.
	return true
}

func (p *Provider) MapNotificationStatus(status string) (gateway.NotificationStatus, bool) {
	switch status {
	case "CAPTURED":
		s := charge.StatusCaptured
		return gateway.NotificationStatus{ChargeStatus: &s}, true
	case "REFUNDED":
		s := refund.StatusRefunded
		return gateway.NotificationStatus{RefundStatus: &s}, true
	default:
		return gateway.NotificationStatus{}, false
	}
}

func (p *Provider) transactionID(existing string) string {
	if existing != "" {
		return existing
	}
	return p.generateTransactionID()
}
