package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohbadar/pay-connector/internal/infrastructure/observability"
)

const tracerName = "pay-connector/gateway"

// Response is the raw outcome of one HTTP round-trip to a provider.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client is the shared HTTP transport for the wire adapters. It classifies
// connection failures and records a span and metrics per round-trip.
type Client struct {
	http    *http.Client
	logger  zerolog.Logger
	tracer  trace.Tracer
	metrics *observability.Metrics
}

// NewClient creates a gateway transport client with the given overall
// round-trip timeout.
func NewClient(timeout time.Duration, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
		metrics: metrics,
	}
}

// Post sends body to url and returns the raw response. A transport-level
// failure comes back as a classified *Error; HTTP status handling is left to
// the adapter, since providers disagree on what a non-2xx means.
func (c *Client) Post(ctx context.Context, provider, operation, url, contentType string, body []byte, headers map[string]string) (*Response, *Error) {
	ctx, span := c.tracer.Start(ctx, "gateway."+operation,
		trace.WithAttributes(
			attribute.String("gateway.provider", provider),
			attribute.String("gateway.operation", operation),
		))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Type: ErrorGeneric, Message: "build request: " + err.Error()}
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		gwErr := classifyTransportError(err)
		c.observe(provider, operation, string(gwErr.Type), elapsed)
		c.logger.Warn().
			Str("provider", provider).
			Str("operation", operation).
			Str("error_type", string(gwErr.Type)).
			Err(err).
			Msg("gateway request failed")
		return nil, gwErr
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		gwErr := &Error{Type: ErrorUnparseableResponse, Message: "read response: " + err.Error()}
		c.observe(provider, operation, string(gwErr.Type), elapsed)
		return nil, gwErr
	}

	c.observe(provider, operation, "ok", elapsed)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	return &Response{StatusCode: resp.StatusCode, Body: payload}, nil
}

func (c *Client) observe(provider, operation, result string, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.GatewayOperationsTotal.WithLabelValues(provider, operation, result).Inc()
	c.metrics.GatewayOperationDuration.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}

func classifyTransportError(err error) *Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Type: ErrorConnectionTimeout, Message: err.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Type: ErrorConnectionTimeout, Message: err.Error()}
	}
	return &Error{Type: ErrorGeneric, Message: err.Error()}
}
