// Package epdq implements the ePDQ DirectLink protocol: form-url-encoded
// requests signed with a SHASIGN over sorted parameters, XML ncresponse
// replies.
package epdq

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	domainErrors "github.com/mohbadar/pay-connector/internal/domain/errors"
	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
	"github.com/mohbadar/pay-connector/internal/domain/refund"
	"github.com/mohbadar/pay-connector/internal/gateway"
)

const (
	ProviderName = "epdq"

	routeNewOrder         = "orderdirect.asp"
	routeMaintenanceOrder = "maintenancedirect.asp"

	shaSignField = "SHASIGN"

	// ncresponse STATUS values
	statusAuthorised      = "5"
	statusDeclined        = "2"
	statusCapturePending  = "91"
	statusCaptured        = "9"
	statusRefundPending   = "81"
	statusRefunded        = "8"
	statusVoidPending     = "61"
	statusVoided          = "6"
)

// Provider talks to ePDQ over the shared transport client.
type Provider struct {
	client  *gateway.Client
	baseURL string
}

func New(client *gateway.Client, baseURL string) *Provider {
	return &Provider{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *Provider) Name() string { return ProviderName }

// ePDQ carries the SHASIGN inside the payload, not in a header.
func (p *Provider) SignatureHeader() string { return "" }

// ncresponse is the XML reply for both order and maintenance requests.
type ncresponse struct {
	XMLName     xml.Name `xml:"ncresponse"`
	PayID       string   `xml:"PAYID,attr"`
	Status      string   `xml:"STATUS,attr"`
	NCError     string   `xml:"NCERROR,attr"`
	NCErrorPlus string   `xml:"NCERRORPLUS,attr"`
}

func (p *Provider) Authorise(ctx context.Context, req gateway.AuthoriseRequest) (gateway.Result, error) {
	params := p.baseParams(req.Account)
	params.Set("ORDERID", req.ChargeExternalID)
	params.Set("AMOUNT", strconv.FormatInt(req.Amount, 10))
	params.Set("CURRENCY", "GBP")
	params.Set("OPERATION", "RES")
	params.Set("CARDNO", req.Card.Number)
	params.Set("CN", req.Card.Holder)
	params.Set("ED", strings.ReplaceAll(req.Card.ExpiryDate, "/", ""))
	params.Set("CVC", req.Card.CVC)
	params.Set("COM", req.Description)

	return p.send(ctx, "authorise", routeNewOrder, params, req.Account, func(r ncresponse) gateway.Result {
		switch r.Status {
		case statusAuthorised:
			return gateway.Result{Success: true, TransactionID: r.PayID}
		case statusDeclined:
			return gateway.Result{TransactionID: r.PayID}
		default:
			return gateway.ErrorResult(gateway.ErrorGeneric,
				fmt.Sprintf("ePDQ status %s, error %s: %s", r.Status, r.NCError, r.NCErrorPlus))
		}
	})
}

func (p *Provider) Authorise3DS(ctx context.Context, req gateway.Auth3DSRequest) (gateway.Result, error) {
	return gateway.Result{}, fmt.Errorf("epdq: authorise 3ds: %w", domainErrors.ErrOperationNotSupported)
}

func (p *Provider) Capture(ctx context.Context, req gateway.CaptureRequest) (gateway.Result, error) {
	params := p.maintenanceParams(req.Account, req.TransactionID, "SAS")
	params.Set("AMOUNT", strconv.FormatInt(req.Amount, 10))

	return p.send(ctx, "capture", routeMaintenanceOrder, params, req.Account, func(r ncresponse) gateway.Result {
		switch r.Status {
		case statusCapturePending, statusCaptured:
			return gateway.Result{Success: true, TransactionID: r.PayID, CaptureState: gateway.CaptureSubmitted}
		default:
			return gateway.ErrorResult(gateway.ErrorGeneric,
				fmt.Sprintf("ePDQ capture status %s, error %s", r.Status, r.NCError))
		}
	})
}

func (p *Provider) Refund(ctx context.Context, req gateway.RefundRequest) (gateway.Result, error) {
	params := p.maintenanceParams(req.Account, req.TransactionID, "RFD")
	params.Set("AMOUNT", strconv.FormatInt(req.Amount, 10))

	return p.send(ctx, "refund", routeMaintenanceOrder, params, req.Account, func(r ncresponse) gateway.Result {
		switch r.Status {
		case statusRefundPending, statusRefunded:
			return gateway.Result{Success: true, TransactionID: r.PayID}
		default:
			return gateway.ErrorResult(gateway.ErrorGeneric,
				fmt.Sprintf("ePDQ refund status %s, error %s", r.Status, r.NCError))
		}
	})
}

func (p *Provider) Cancel(ctx context.Context, req gateway.CancelRequest) (gateway.Result, error) {
	params := p.maintenanceParams(req.Account, req.TransactionID, "DES")

	return p.send(ctx, "cancel", routeMaintenanceOrder, params, req.Account, func(r ncresponse) gateway.Result {
		switch r.Status {
		case statusVoidPending, statusVoided:
			return gateway.Result{Success: true, TransactionID: r.PayID}
		default:
			return gateway.ErrorResult(gateway.ErrorGeneric,
				fmt.Sprintf("ePDQ cancel status %s, error %s", r.Status, r.NCError))
		}
	})
}

// GenerateTransactionID returns false: ePDQ assigns the PAYID itself.
func (p *Provider) GenerateTransactionID() (string, bool) {
	return "", false
}

func (p *Provider) ParseNotification(payload []byte) ([]gateway.Notification, error) {
	params, err := url.ParseQuery(string(payload))
	if err != nil {
		return nil, fmt.Errorf("parse epdq notification: %w", err)
	}

	eventTime := time.Now()
	if trxDate := params.Get("TRXDATE"); trxDate != "" {
		if t, err := time.Parse("01/02/06", trxDate); err == nil {
			eventTime = t
		}
	}

	return []gateway.Notification{{
		TransactionID: params.Get("PAYID"),
		Reference:     params.Get("orderID"),
		Status:        params.Get("STATUS"),
		EventTime:     eventTime,
	}}, nil
}

func (p *Provider) VerifyNotification(payload []byte, signature string, account gatewayaccount.Account) bool {
	params, err := url.ParseQuery(string(payload))
	if err != nil {
		return false
	}
	return VerifySignature(params, account.Credentials[gatewayaccount.CredentialShaPassphrase])
}

func (p *Provider) MapNotificationStatus(status string) (gateway.NotificationStatus, bool) {
	switch status {
	case statusCaptured:
		s := charge.StatusCaptured
		return gateway.NotificationStatus{ChargeStatus: &s}, true
	case statusRefunded:
		s := refund.StatusRefunded
		return gateway.NotificationStatus{RefundStatus: &s}, true
	default:
		return gateway.NotificationStatus{}, false
	}
}

func (p *Provider) baseParams(account gatewayaccount.Account) url.Values {
	params := url.Values{}
	params.Set("PSPID", account.Credentials[gatewayaccount.CredentialMerchantID])
	params.Set("USERID", account.Credentials[gatewayaccount.CredentialUsername])
	params.Set("PSWD", account.Credentials[gatewayaccount.CredentialPassword])
	return params
}

func (p *Provider) maintenanceParams(account gatewayaccount.Account, payID, operation string) url.Values {
	params := p.baseParams(account)
	params.Set("PAYID", payID)
	params.Set("OPERATION", operation)
	return params
}

func (p *Provider) send(ctx context.Context, operation, route string, params url.Values, account gatewayaccount.Account, interpret func(ncresponse) gateway.Result) (gateway.Result, error) {
	params.Set(shaSignField, Sign(params, account.Credentials[gatewayaccount.CredentialShaPassphrase]))

	resp, gwErr := p.client.Post(ctx, ProviderName, operation, p.baseURL+"/"+route,
		"application/x-www-form-urlencoded", []byte(params.Encode()), nil)
	if gwErr != nil {
		return gateway.Result{Error: gwErr}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return gateway.ErrorResult(gateway.ErrorUnexpectedHTTPStatus,
			fmt.Sprintf("unexpected HTTP status %d from ePDQ", resp.StatusCode)), nil
	}

	var r ncresponse
	if err := xml.Unmarshal(resp.Body, &r); err != nil {
		return gateway.ErrorResult(gateway.ErrorUnparseableResponse, err.Error()), nil
	}
	return interpret(r), nil
}
