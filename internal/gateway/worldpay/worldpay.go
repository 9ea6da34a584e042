// Package worldpay implements the Worldpay XML protocol: DTD-declared order
// submissions over basic-auth HTTP, with success or failure carried in the
// reply's ok/error elements.
package worldpay

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
	"github.com/mohbadar/pay-connector/internal/domain/refund"
	"github.com/mohbadar/pay-connector/internal/gateway"
)

const (
	ProviderName = "worldpay"

	doctype = `<!DOCTYPE paymentService PUBLIC "-//WorldPay//DTD WorldPay PaymentService v1//EN" "http://dtd.worldpay.com/paymentService_v1.dtd">`

	lastEventAuthorised = "AUTHORISED"
	lastEventRefused    = "REFUSED"
	lastEventCaptured   = "CAPTURED"
	lastEventRefunded   = "REFUNDED"
	lastEventCancelled  = "CANCELLED"
)

// Provider talks to Worldpay over the shared transport client.
type Provider struct {
	client *gateway.Client
	url    string
}

func New(client *gateway.Client, url string) *Provider {
	return &Provider{client: client, url: url}
}

func (p *Provider) Name() string { return ProviderName }

// Worldpay authenticates notifications by origin, not by header signature.
func (p *Provider) SignatureHeader() string { return "" }

func (p *Provider) Authorise(ctx context.Context, req gateway.AuthoriseRequest) (gateway.Result, error) {
	month, year := splitExpiry(req.Card.ExpiryDate)
	order := paymentService{
		Version:      "1.4",
		MerchantCode: req.Account.Credentials[gatewayaccount.CredentialMerchantID],
		Submit: &submit{Order: &order{
			OrderCode:   req.TransactionID,
			Description: req.Description,
			Amount:      &amount{Value: strconv.FormatInt(req.Amount, 10), CurrencyCode: "GBP", Exponent: "2"},
			PaymentDetails: &paymentDetails{CardSSL: &cardSSL{
				CardNumber:  req.Card.Number,
				ExpiryMonth: month,
				ExpiryYear:  year,
				CardHolder:  req.Card.Holder,
				CVC:         req.Card.CVC,
			}},
		}},
	}

	return p.send(ctx, "authorise", order, req.Account, func(r reply) gateway.Result {
		if r.OrderStatus == nil || r.OrderStatus.Payment == nil {
			return gateway.ErrorResult(gateway.ErrorUnparseableResponse, "worldpay reply missing order status")
		}
		if r.OrderStatus.Request3DSecure != nil {
			return gateway.Result{Requires3DS: true, TransactionID: r.OrderStatus.OrderCode}
		}
		switch r.OrderStatus.Payment.LastEvent {
		case lastEventAuthorised:
			return gateway.Result{Success: true, TransactionID: r.OrderStatus.OrderCode}
		case lastEventRefused:
			return gateway.Result{TransactionID: r.OrderStatus.OrderCode}
		default:
			return gateway.ErrorResult(gateway.ErrorGeneric,
				"unexpected last event "+r.OrderStatus.Payment.LastEvent)
		}
	})
}

func (p *Provider) Authorise3DS(ctx context.Context, req gateway.Auth3DSRequest) (gateway.Result, error) {
	order := paymentService{
		Version:      "1.4",
		MerchantCode: req.Account.Credentials[gatewayaccount.CredentialMerchantID],
		Submit: &submit{Order: &order{
			OrderCode:    req.TransactionID,
			Info3DSecure: &info3DSecure{PaResponse: req.PaRes},
		}},
	}

	return p.send(ctx, "authorise_3ds", order, req.Account, func(r reply) gateway.Result {
		if r.OrderStatus == nil || r.OrderStatus.Payment == nil {
			return gateway.ErrorResult(gateway.ErrorUnparseableResponse, "worldpay reply missing order status")
		}
		if r.OrderStatus.Payment.LastEvent == lastEventAuthorised {
			return gateway.Result{Success: true, TransactionID: r.OrderStatus.OrderCode}
		}
		return gateway.Result{TransactionID: r.OrderStatus.OrderCode}
	})
}

func (p *Provider) Capture(ctx context.Context, req gateway.CaptureRequest) (gateway.Result, error) {
	order := paymentService{
		Version:      "1.4",
		MerchantCode: req.Account.Credentials[gatewayaccount.CredentialMerchantID],
		Modify: &modify{OrderModification: &orderModification{
			OrderCode: req.TransactionID,
			Capture: &capture{
				Amount: &amount{Value: strconv.FormatInt(req.Amount, 10), CurrencyCode: "GBP", Exponent: "2"},
			},
		}},
	}

	return p.send(ctx, "capture", order, req.Account, func(r reply) gateway.Result {
		if r.Ok == nil || r.Ok.CaptureReceived == nil {
			return gateway.ErrorResult(gateway.ErrorGeneric, "worldpay capture not acknowledged")
		}
		// Worldpay settles asynchronously; the notification confirms.
		return gateway.Result{
			Success:       true,
			TransactionID: r.Ok.CaptureReceived.OrderCode,
			CaptureState:  gateway.CaptureSubmitted,
		}
	})
}

func (p *Provider) Refund(ctx context.Context, req gateway.RefundRequest) (gateway.Result, error) {
	order := paymentService{
		Version:      "1.4",
		MerchantCode: req.Account.Credentials[gatewayaccount.CredentialMerchantID],
		Modify: &modify{OrderModification: &orderModification{
			OrderCode: req.TransactionID,
			Refund: &refundElement{
				Reference: req.RefundExternalID,
				Amount:    &amount{Value: strconv.FormatInt(req.Amount, 10), CurrencyCode: "GBP", Exponent: "2"},
			},
		}},
	}

	return p.send(ctx, "refund", order, req.Account, func(r reply) gateway.Result {
		if r.Ok == nil || r.Ok.RefundReceived == nil {
			return gateway.ErrorResult(gateway.ErrorGeneric, "worldpay refund not acknowledged")
		}
		return gateway.Result{Success: true, TransactionID: r.Ok.RefundReceived.OrderCode}
	})
}

func (p *Provider) Cancel(ctx context.Context, req gateway.CancelRequest) (gateway.Result, error) {
	order := paymentService{
		Version:      "1.4",
		MerchantCode: req.Account.Credentials[gatewayaccount.CredentialMerchantID],
		Modify: &modify{OrderModification: &orderModification{
			OrderCode: req.TransactionID,
			Cancel:    &cancelElement{},
		}},
	}

	return p.send(ctx, "cancel", order, req.Account, func(r reply) gateway.Result {
		if r.Ok == nil || r.Ok.CancelReceived == nil {
			return gateway.ErrorResult(gateway.ErrorGeneric, "worldpay cancel not acknowledged")
		}
		return gateway.Result{Success: true, TransactionID: r.Ok.CancelReceived.OrderCode}
	})
}

// GenerateTransactionID pre-generates the order code submitted with the
// authorisation.
func (p *Provider) GenerateTransactionID() (string, bool) {
	return uuid.New().String(), true
}

func (p *Provider) ParseNotification(payload []byte) ([]gateway.Notification, error) {
	var n notify
	if err := xml.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("parse worldpay notification: %w", err)
	}
	if n.Notify == nil {
		return nil, fmt.Errorf("worldpay notification missing notify element")
	}

	notifications := make([]gateway.Notification, 0, len(n.Notify.OrderStatusEvents))
	for _, ev := range n.Notify.OrderStatusEvents {
		status := ""
		if ev.Payment != nil {
			status = ev.Payment.LastEvent
		}
		notifications = append(notifications, gateway.Notification{
			TransactionID: ev.OrderCode,
			Reference:     ev.OrderCode,
			Status:        status,
			EventTime:     ev.bookingDate(),
		})
	}
	return notifications, nil
}

// VerifyNotification: Worldpay does not sign notification bodies; authenticity
// relies on the transport restrictions around the notification endpoint.
func (p *Provider) VerifyNotification(payload []byte, signature string, account gatewayaccount.Account) bool {
	var n notify
	return xml.Unmarshal(payload, &n) == nil && n.Notify != nil
}

func (p *Provider) MapNotificationStatus(status string) (gateway.NotificationStatus, bool) {
	switch status {
	case lastEventCaptured:
		s := charge.StatusCaptured
		return gateway.NotificationStatus{ChargeStatus: &s}, true
	case lastEventCancelled:
		s := charge.StatusCancelled
		return gateway.NotificationStatus{ChargeStatus: &s}, true
	case lastEventRefunded:
		s := refund.StatusRefunded
		return gateway.NotificationStatus{RefundStatus: &s}, true
	default:
		return gateway.NotificationStatus{}, false
	}
}

func (p *Provider) send(ctx context.Context, operation string, order paymentService, account gatewayaccount.Account, interpret func(reply) gateway.Result) (gateway.Result, error) {
	body, err := xml.Marshal(order)
	if err != nil {
		return gateway.Result{}, fmt.Errorf("worldpay: marshal %s order: %w", operation, err)
	}
	payload := []byte(xml.Header + doctype + "\n" + string(body))

	creds := account.Credentials[gatewayaccount.CredentialUsername] + ":" + account.Credentials[gatewayaccount.CredentialPassword]
	headers := map[string]string{
		"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(creds)),
	}

	resp, gwErr := p.client.Post(ctx, ProviderName, operation, p.url, "application/xml", payload, headers)
	if gwErr != nil {
		return gateway.Result{Error: gwErr}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return gateway.ErrorResult(gateway.ErrorUnexpectedHTTPStatus,
			fmt.Sprintf("unexpected HTTP status %d from worldpay", resp.StatusCode)), nil
	}

	var ps responseService
	if err := xml.Unmarshal(resp.Body, &ps); err != nil {
		return gateway.ErrorResult(gateway.ErrorUnparseableResponse, err.Error()), nil
	}
	if ps.Reply == nil {
		return gateway.ErrorResult(gateway.ErrorUnparseableResponse, "worldpay response missing reply element"), nil
	}
	if ps.Reply.Error != nil {
		return gateway.ErrorResult(gateway.ErrorGeneric,
			fmt.Sprintf("worldpay error %s: %s", ps.Reply.Error.Code, strings.TrimSpace(ps.Reply.Error.Message))), nil
	}
	return interpret(*ps.Reply), nil
}

func splitExpiry(expiry string) (month, year string) {
	parts := strings.SplitN(expiry, "/", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], "20" + parts[1]
}
