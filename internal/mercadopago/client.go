// Package mercadopago is a minimal client for the Mercado Pago checkout
// preferences API.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const PreferencesPath = "/checkout/preferences"

var providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "voucher_provider_requests_total",
	Help: "Outbound Mercado Pago calls, labeled by outcome",
}, []string{"outcome"})

// Client creates checkout preferences. It is safe for concurrent use.
type Client struct {
	cfg config
}

func NewClient(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if _, err := joinURL(cfg.baseURL, PreferencesPath); err != nil {
		return nil, err
	}
	return &Client{cfg: cfg}, nil
}

// Configured reports whether an access token is set.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.accessToken != ""
}

// CreatePreference creates a checkout preference and returns the narrowed
// provider response. Non-2xx responses come back as *APIError.
func (c *Client) CreatePreference(ctx context.Context, req *PreferenceRequest) (*PreferenceResponse, error) {
	if c == nil {
		return nil, errors.New("client is nil")
	}
	if !c.Configured() {
		return nil, ErrNoAccessToken
	}
	if req == nil {
		return nil, errors.New("preference request is nil")
	}

	var out PreferenceResponse
	if err := c.post(ctx, PreferencesPath, req, &out); err != nil {
		return nil, err
	}
	return c.narrow(&out), nil
}

// narrow drops checkout URLs that are not absolute http(s) URLs.
func (c *Client) narrow(resp *PreferenceResponse) *PreferenceResponse {
	if resp.InitPoint != "" && !isCheckoutURL(resp.InitPoint) {
		c.cfg.logger.Warn("discarding malformed init_point", zap.String("preference_id", resp.ID))
		resp.InitPoint = ""
	}
	if resp.SandboxInitPoint != "" && !isCheckoutURL(resp.SandboxInitPoint) {
		c.cfg.logger.Warn("discarding malformed sandbox_init_point", zap.String("preference_id", resp.ID))
		resp.SandboxInitPoint = ""
	}
	return resp
}

func isCheckoutURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

// post sends body to endpoint and decodes the JSON object answer into out.
// Transient failures are retried only when WithRetry raised the attempt count.
func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	target, err := joinURL(c.cfg.baseURL, endpoint)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", endpoint, err)
	}

	wait := c.cfg.retryWait
	for attempt := 1; ; attempt++ {
		err := c.postOnce(ctx, target, endpoint, payload, out)
		if err == nil {
			providerRequestsTotal.WithLabelValues("ok").Inc()
			return nil
		}

		if attempt >= c.cfg.retryAttempts || !isRetryable(err) {
			outcome := "transport_error"
			if IsAPIError(err) {
				outcome = "api_error"
			}
			providerRequestsTotal.WithLabelValues(outcome).Inc()
			c.cfg.logger.Error("mercadopago request failed",
				zap.String("endpoint", endpoint), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}

		c.cfg.logger.Warn("mercadopago request retry",
			zap.String("endpoint", endpoint), zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			wait *= 2
		}
	}
}

func (c *Client) postOnce(ctx context.Context, target, endpoint string, payload []byte, out any) error {
	requestID := uuid.NewString()
	tags := map[string]string{"endpoint": endpoint}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.accessToken)
	req.Header.Set("X-Request-Id", requestID)

	c.recordRequest(ctx, requestID, payload, tags)

	resp, err := c.cfg.httpClient.Do(req)
	if err != nil {
		c.recordError(ctx, requestID, err, tags)
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordError(ctx, requestID, err, tags)
		return fmt.Errorf("read response body: %w", err)
	}
	c.recordResponse(ctx, requestID, raw, tags)

	c.cfg.logger.Debug("mercadopago response received",
		zap.String("request_id", requestID), zap.Int("status", resp.StatusCode), zap.Int("response_bytes", len(raw)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: raw}
		c.recordError(ctx, requestID, apiErr, tags)
		return apiErr
	}

	// A null or non-object success body carries no preference.
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		decErr := fmt.Errorf("decode json response: expected an object, got %q", truncate(trimmed, 32))
		c.recordError(ctx, requestID, decErr, tags)
		return decErr
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		decErr := fmt.Errorf("decode json response: %w", err)
		c.recordError(ctx, requestID, decErr, tags)
		return decErr
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ae *APIError
	if errors.As(err, &ae) {
		// 5xx and rate limiting
		return ae.StatusCode == http.StatusTooManyRequests || (ae.StatusCode >= 500 && ae.StatusCode != http.StatusNotImplemented)
	}
	// http.Client.Do wraps every transport failure in *url.Error.
	var ue *url.Error
	return errors.As(err, &ue)
}

func joinURL(base string, p string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid base url %q: not absolute", base)
	}
	u.Path = path.Join(u.Path, p)
	return u.String(), nil
}

func (c *Client) recordRequest(ctx context.Context, requestID string, body []byte, tags map[string]string) {
	if c.cfg.recorder == nil {
		return
	}
	if err := c.cfg.recorder.RecordRequest(ctx, nil, requestID, body, tags); err != nil {
		c.cfg.logger.Warn("cannot record request", zap.Error(err))
	}
}

func (c *Client) recordResponse(ctx context.Context, requestID string, body []byte, tags map[string]string) {
	if c.cfg.recorder == nil {
		return
	}
	if err := c.cfg.recorder.RecordResponse(ctx, nil, requestID, body, tags); err != nil {
		c.cfg.logger.Warn("cannot record response", zap.Error(err))
	}
}

func (c *Client) recordError(ctx context.Context, requestID string, err error, tags map[string]string) {
	if c.cfg.recorder == nil {
		return
	}
	if recErr := c.cfg.recorder.RecordError(ctx, nil, requestID, err, tags); recErr != nil {
		c.cfg.logger.Warn("cannot record error", zap.Error(recErr))
	}
}
