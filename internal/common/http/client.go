// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "visa-portal/internal/common/errors"
	"visa-portal/internal/common/metrics"
)

const maxErrorBody = 512

// CallObserver receives one record per completed backend call.
type CallObserver interface {
	RecordBackendCall(ctx context.Context, endpoint string, duration time.Duration, status string)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
	observer   CallObserver
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tracer: otel.Tracer("visa-portal/backend"),
	}
}

// WithObserver attaches an observer and returns the client.
func (c *Client) WithObserver(o CallObserver) *Client {
	c.observer = o
	return c
}

// Request describes one JSON call against the backend. Body is JSON encoded unless
// RawBody is set, in which case ContentType must describe it.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Token       string
	Body        interface{}
	RawBody     io.Reader
	ContentType string
	// Endpoint is the metric and span label; defaults to Path.
	Endpoint string
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// DoJSON sends r and decodes a 2xx JSON body into out (out may be nil).
func (c *Client) DoJSON(ctx context.Context, r Request, out interface{}) error {
	endpoint := r.Endpoint
	if endpoint == "" {
		endpoint = r.Path
	}

	ctx, span := c.tracer.Start(ctx, r.Method+" "+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("backend.endpoint", endpoint),
		))
	defer span.End()

	start := time.Now()
	status, err := c.do(ctx, r, endpoint, out)
	duration := time.Since(start)

	statusLabel := "error"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
	metrics.BackendRequests.WithLabelValues(endpoint, statusLabel).Inc()
	metrics.BackendRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	if c.observer != nil {
		c.observer.RecordBackendCall(ctx, endpoint, duration, statusLabel)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) do(ctx context.Context, r Request, endpoint string, out interface{}) (int, error) {
	target := c.baseURL + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	body := r.RawBody
	contentType := r.ContentType
	if body == nil && r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return 0, apperrors.NewValidationError(fmt.Sprintf("encode request body: %v", err))
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return 0, apperrors.NewBackendUnavailableError(endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, apperrors.NewBackendUnavailableError(endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return resp.StatusCode, apperrors.NewBackendUnauthorizedError(endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, apperrors.NewBackendRequestFailedError(endpoint, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return resp.StatusCode, apperrors.NewBackendRequestFailedError(endpoint, resp.StatusCode, fmt.Sprintf("decode response: %v", err))
	}
	return resp.StatusCode, nil
}
