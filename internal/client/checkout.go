// Package client is the buyer-side caller of POST /api/checkout. It mirrors
// what the storefront page does: track a loading flag and the last error,
// pick the redirect URL and hand it to an Opener.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/punchamoorthee/voucherfront/internal/domain"
	"go.uber.org/zap"
)

// Messages shown to the buyer. The storefront page uses the same texts.
const (
	MsgStartFailed       = "could not start the payment"
	MsgNoPaymentURL      = "no payment URL received"
	MsgServerUnreachable = "error connecting to the server"
	MsgOpenFailed        = "could not open the payment page"
)

// ErrNoPaymentURL is returned when the server answered 200 without any
// redirect URL.
var ErrNoPaymentURL = errors.New(MsgNoPaymentURL)

// Opener navigates the buyer to the checkout page in a new browsing context.
type Opener interface {
	Open(url string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(url string) error

func (f OpenerFunc) Open(url string) error { return f(url) }

type Option func(*CheckoutClient)

func WithHTTPClient(c *http.Client) Option {
	return func(cc *CheckoutClient) {
		if c != nil {
			cc.httpClient = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(cc *CheckoutClient) {
		if l != nil {
			cc.logger = l
		}
	}
}

// CheckoutClient is safe for concurrent use. Loading covers every attempt in
// flight; LastError describes the attempt that finished last.
type CheckoutClient struct {
	baseURL    string
	opener     Opener
	httpClient *http.Client
	logger     *zap.Logger

	mu       sync.Mutex
	inFlight int
	lastErr  string
}

func New(baseURL string, opener Opener, opts ...Option) *CheckoutClient {
	c := &CheckoutClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		opener:     opener,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Loading reports whether any checkout attempt is in flight.
func (c *CheckoutClient) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight > 0
}

// LastError returns the message of the last failed attempt, or "".
func (c *CheckoutClient) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// DismissError clears the inline error message.
func (c *CheckoutClient) DismissError() {
	c.setError("")
}

// Checkout requests a session for voucherID and opens the chosen URL. It
// never retries; the buyer has to start again.
func (c *CheckoutClient) Checkout(ctx context.Context, voucherID string) (string, error) {
	c.mu.Lock()
	c.inFlight++
	c.lastErr = ""
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	res, err := c.createSession(ctx, voucherID)
	if err != nil {
		return "", err
	}

	url := res.RedirectURL()
	if url == "" {
		c.setError(MsgNoPaymentURL)
		return "", ErrNoPaymentURL
	}

	if c.opener != nil {
		if err := c.opener.Open(url); err != nil {
			c.logger.Error("cannot open checkout url", zap.Error(err))
			c.setError(MsgOpenFailed)
			return "", fmt.Errorf("open checkout url: %w", err)
		}
	}
	return url, nil
}

func (c *CheckoutClient) createSession(ctx context.Context, voucherID string) (*domain.CheckoutResult, error) {
	body, err := json.Marshal(domain.CheckoutRequest{ID: voucherID})
	if err != nil {
		c.setError(MsgServerUnreachable)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/checkout", bytes.NewReader(body))
	if err != nil {
		c.setError(MsgServerUnreachable)
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("checkout request failed", zap.Error(err))
		c.setError(MsgServerUnreachable)
		return nil, fmt.Errorf("%s: %w", MsgServerUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.setError(MsgServerUnreachable)
		return nil, fmt.Errorf("%s: %w", MsgServerUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(raw)
		if msg == "" {
			msg = MsgStartFailed
		}
		c.setError(msg)
		return nil, errors.New(msg)
	}

	var res domain.CheckoutResult
	if err := json.Unmarshal(raw, &res); err != nil {
		c.setError(MsgServerUnreachable)
		return nil, fmt.Errorf("%s: decode response: %w", MsgServerUnreachable, err)
	}
	return &res, nil
}

func (c *CheckoutClient) setError(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
}
