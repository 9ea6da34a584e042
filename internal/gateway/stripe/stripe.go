// Package stripe implements the Stripe protocol: JSON over HTTPS with bearer
// credentials. Capturing a platform-collected charge needs a follow-up
// transfer to move funds to the connected account.
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	domainErrors "github.com/mohbadar/pay-connector/internal/domain/errors"
	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
	"github.com/mohbadar/pay-connector/internal/domain/refund"
	"github.com/mohbadar/pay-connector/internal/gateway"
)

const ProviderName = "stripe"

// Provider talks to Stripe over the shared transport client. The platform
// secret key authenticates every call; connected accounts are addressed via
// the gateway account's credentials.
type Provider struct {
	client    *gateway.Client
	baseURL   string
	secretKey string
}

func New(client *gateway.Client, baseURL, secretKey string) *Provider {
	return &Provider{client: client, baseURL: strings.TrimRight(baseURL, "/"), secretKey: secretKey}
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) SignatureHeader() string { return "Stripe-Signature" }

type stripeCharge struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Destination   string `json:"destination"`
	TransferGroup string `json:"transfer_group"`
}

type stripeTransfer struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Destination string `json:"destination"`
}

type stripeRefund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type stripeError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) Authorise(ctx context.Context, req gateway.AuthoriseRequest) (gateway.Result, error) {
	month, year := splitExpiry(req.Card.ExpiryDate)
	body := map[string]any{
		"amount":      req.Amount,
		"currency":    "gbp",
		"capture":     false,
		"description": req.Description,
		"card": map[string]any{
			"number":    req.Card.Number,
			"exp_month": month,
			"exp_year":  year,
			"cvc":       req.Card.CVC,
			"name":      req.Card.Holder,
		},
		"transfer_group": req.ChargeExternalID,
	}

	resp, gwErr := p.post(ctx, "authorise", "/v1/charges", body)
	if gwErr != nil {
		return gateway.Result{Error: gwErr}, nil
	}

	var c stripeCharge
	if res, ok := p.interpret(resp, &c); !ok {
		return res, nil
	}
	if c.Status == "failed" {
		return gateway.Result{TransactionID: c.ID}, nil
	}
	return gateway.Result{Success: true, TransactionID: c.ID}, nil
}

func (p *Provider) Authorise3DS(ctx context.Context, req gateway.Auth3DSRequest) (gateway.Result, error) {
	return gateway.Result{}, fmt.Errorf("stripe: authorise 3ds: %w", domainErrors.ErrOperationNotSupported)
}

func (p *Provider) Capture(ctx context.Context, req gateway.CaptureRequest) (gateway.Result, error) {
	resp, gwErr := p.post(ctx, "capture", "/v1/charges/"+req.TransactionID+"/capture", map[string]any{})
	if gwErr != nil {
		return gateway.Result{Error: gwErr}, nil
	}

	var c stripeCharge
	if res, ok := p.interpret(resp, &c); !ok {
		return res, nil
	}

	// A platform-collected charge needs its funds moved on to the connected
	// account with a follow-up transfer.
	if destination := req.Account.Credentials[gatewayaccount.CredentialStripeAccount]; destination != "" {
		transferBody := map[string]any{
			"amount":         req.Amount,
			"currency":       "gbp",
			"destination":    destination,
			"transfer_group": req.ChargeExternalID,
		}
		transferResp, gwErr := p.post(ctx, "transfer", "/v1/transfers", transferBody)
		if gwErr != nil {
			return gateway.Result{Error: gwErr}, nil
		}
		var t stripeTransfer
		if res, ok := p.interpret(transferResp, &t); !ok {
			return res, nil
		}
	}

	return gateway.Result{
		Success:       true,
		TransactionID: c.ID,
		CaptureState:  gateway.CaptureComplete,
	}, nil
}

func (p *Provider) Refund(ctx context.Context, req gateway.RefundRequest) (gateway.Result, error) {
	body := map[string]any{
		"charge": req.TransactionID,
		"amount": req.Amount,
	}
	resp, gwErr := p.post(ctx, "refund", "/v1/refunds", body)
	if gwErr != nil {
		return gateway.Result{Error: gwErr}, nil
	}

	var r stripeRefund
	if res, ok := p.interpret(resp, &r); !ok {
		return res, nil
	}
	return gateway.Result{Success: true, TransactionID: r.ID}, nil
}

func (p *Provider) Cancel(ctx context.Context, req gateway.CancelRequest) (gateway.Result, error) {
	// Stripe voids an uncaptured charge by refunding it in full.
	body := map[string]any{"charge": req.TransactionID}
	resp, gwErr := p.post(ctx, "cancel", "/v1/refunds", body)
	if gwErr != nil {
		return gateway.Result{Error: gwErr}, nil
	}

	var r stripeRefund
	if res, ok := p.interpret(resp, &r); !ok {
		return res, nil
	}
	return gateway.Result{Success: true, TransactionID: req.TransactionID}, nil
}

// GenerateTransactionID returns false: Stripe assigns charge ids itself.
func (p *Provider) GenerateTransactionID() (string, bool) {
	return "", false
}

type webhookEvent struct {
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object stripeCharge `json:"object"`
	} `json:"data"`
}

func (p *Provider) ParseNotification(payload []byte) ([]gateway.Notification, error) {
	var ev webhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("parse stripe notification: %w", err)
	}
	return []gateway.Notification{{
		TransactionID: ev.Data.Object.ID,
		Reference:     ev.Data.Object.TransferGroup,
		Status:        ev.Type,
		EventTime:     time.Unix(ev.Created, 0),
	}}, nil
}

// VerifyNotification recomputes the HMAC-SHA256 of the payload with the
// account's webhook secret and compares it against the v1 component of the
// signature header.
func (p *Provider) VerifyNotification(payload []byte, signature string, account gatewayaccount.Account) bool {
	secret := account.Credentials[gatewayaccount.CredentialWebhookSecret]
	if secret == "" {
		return false
	}

	received := signature
	for _, part := range strings.Split(signature, ",") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(part), "v1="); ok {
			received = v
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(received)), []byte(expected))
}

func (p *Provider) MapNotificationStatus(status string) (gateway.NotificationStatus, bool) {
	switch status {
	case "charge.captured":
		s := charge.StatusCaptured
		return gateway.NotificationStatus{ChargeStatus: &s}, true
	case "charge.refunded":
		s := refund.StatusRefunded
		return gateway.NotificationStatus{RefundStatus: &s}, true
	default:
		return gateway.NotificationStatus{}, false
	}
}

func (p *Provider) post(ctx context.Context, operation, path string, body map[string]any) (*gateway.Response, *gateway.Error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &gateway.Error{Type: gateway.ErrorGeneric, Message: "marshal request: " + err.Error()}
	}
	headers := map[string]string{"Authorization": "Bearer " + p.secretKey}
	return p.client.Post(ctx, ProviderName, operation, p.baseURL+path, "application/json", payload, headers)
}

// interpret decodes a Stripe response into out. On a failure status or an
// undecodable body it returns the normalized error result and ok=false.
func (p *Provider) interpret(resp *gateway.Response, out any) (gateway.Result, bool) {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return gateway.ErrorResult(gateway.ErrorUnparseableResponse, err.Error()), false
		}
		return gateway.Result{}, true
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var e stripeError
		if err := json.Unmarshal(resp.Body, &e); err != nil {
			return gateway.ErrorResult(gateway.ErrorUnparseableResponse, err.Error()), false
		}
		return gateway.ErrorResult(gateway.ErrorGeneric,
			fmt.Sprintf("stripe error %s: %s", e.Error.Code, e.Error.Message)), false
	default:
		return gateway.ErrorResult(gateway.ErrorUnexpectedHTTPStatus,
			fmt.Sprintf("unexpected HTTP status %d from stripe", resp.StatusCode)), false
	}
}

func splitExpiry(expiry string) (month, year string) {
	parts := strings.SplitN(expiry, "/", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], "20" + parts[1]
}
