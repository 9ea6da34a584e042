package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
	"github.com/mohbadar/pay-connector/internal/gateway"
)

func newProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := gateway.NewClient(5*time.Second, zerolog.Nop(), nil)
	return New(client, srv.URL, "sk_test_secret")
}

func TestAuthorise(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.Write([]byte(`{"id":"ch_123","status":"succeeded"}`))
	})

	res, err := p.Authorise(context.Background(), gateway.AuthoriseRequest{
		ChargeExternalID: "ext-1",
		Amount:           2500,
		Card:             gateway.Card{Number: "4242424242424242", Holder: "J Doe", CVC: "123", ExpiryDate: "01/28", Brand: "visa"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ch_123", res.TransactionID)

	assert.Equal(t, "/v1/charges", gotPath)
	assert.Equal(t, "Bearer sk_test_secret", gotAuth)
	// Funds are reserved only; capture is a separate call.
	assert.Equal(t, false, gotBody["capture"])
	assert.Equal(t, "ext-1", gotBody["transfer_group"])
}

func TestAuthoriseCardError(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"code":"card_declined","message":"Your card was declined."}}`))
	})

	res, err := p.Authorise(context.Background(), gateway.AuthoriseRequest{Amount: 2500})
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, gateway.ErrorGeneric, res.Error.Type)
	assert.Contains(t, res.Error.Message, "card_declined")
}

func TestCaptureWithTransfer(t *testing.T) {
	var paths []string
	var transferBody map[string]any
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/v1/charges/ch_123/capture":
			w.Write([]byte(`{"id":"ch_123","status":"succeeded"}`))
		case "/v1/transfers":
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &transferBody)
			w.Write([]byte(`{"id":"tr_1","amount":2500,"destination":"acct_9"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	account := gatewayaccount.Account{Credentials: map[string]string{
		gatewayaccount.CredentialStripeAccount: "acct_9",
	}}
	res, err := p.Capture(context.Background(), gateway.CaptureRequest{
		ChargeExternalID: "ext-1",
		TransactionID:    "ch_123",
		Amount:           2500,
		Account:          account,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, gateway.CaptureComplete, res.CaptureState)

	require.Equal(t, []string{"/v1/charges/ch_123/capture", "/v1/transfers"}, paths)
	assert.Equal(t, "acct_9", transferBody["destination"])
	assert.Equal(t, "ext-1", transferBody["transfer_group"])
}

func TestCaptureWithoutConnectedAccountSkipsTransfer(t *testing.T) {
	var paths []string
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte(`{"id":"ch_123","status":"succeeded"}`))
	})

	res, err := p.Capture(context.Background(), gateway.CaptureRequest{TransactionID: "ch_123", Amount: 2500})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"/v1/charges/ch_123/capture"}, paths)
}

func TestUnexpectedHTTPStatus(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	res, err := p.Refund(context.Background(), gateway.RefundRequest{TransactionID: "ch_123", Amount: 100})
	require.NoError(t, err)
	require.NotNil(t, res.Error)
	assert.Equal(t, gateway.ErrorUnexpectedHTTPStatus, res.Error.Type)
}

func TestSignatureHeader(t *testing.T) {
	p := New(nil, "", "")
	assert.Equal(t, "Stripe-Signature", p.SignatureHeader())
}

func TestVerifyNotification(t *testing.T) {
	p := New(nil, "", "")
	payload := []byte(`{"type":"charge.captured"}`)
	account := gatewayaccount.Account{Credentials: map[string]string{
		gatewayaccount.CredentialWebhookSecret: "whsec_test",
	}}

	mac := hmac.New(sha256.New, []byte("whsec_test"))
	mac.Write(payload)
	sig := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, p.VerifyNotification(payload, sig, account))
	assert.True(t, p.VerifyNotification(payload, "t=12345,v1="+sig, account))
	assert.False(t, p.VerifyNotification(payload, "v1=deadbeef", account))
	assert.False(t, p.VerifyNotification(payload, sig, gatewayaccount.Account{Credentials: map[string]string{}}))
}

func TestParseNotification(t *testing.T) {
	p := New(nil, "", "")
	notifications, err := p.ParseNotification([]byte(`{"type":"charge.captured","created":1700000000,"data":{"object":{"id":"ch_123","transfer_group":"ext-1"}}}`))
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "ch_123", notifications[0].TransactionID)
	assert.Equal(t, "charge.captured", notifications[0].Status)

	_, err = p.ParseNotification([]byte("not json"))
	assert.Error(t, err)
}
