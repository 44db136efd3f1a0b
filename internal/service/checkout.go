package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/punchamoorthee/voucherfront/internal/domain"
	"github.com/punchamoorthee/voucherfront/internal/mercadopago"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured  = errors.New("payment provider is not configured")
	ErrInvalidVoucher = errors.New("invalid voucher")
)

const (
	upstreamFallbackMessage   = "could not create the payment preference"
	upstreamConnectionMessage = "error connecting to the payment provider"
)

// UpstreamError reports a failed provider call. Message is safe to show to
// the buyer: it is the provider's own error text when there was one.
type UpstreamError struct {
	Message    string
	StatusCode int // 0 for transport failures
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Message)
	}
	return "upstream: " + e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// PaymentProvider creates provider-hosted checkout sessions.
type PaymentProvider interface {
	Configured() bool
	CreatePreference(ctx context.Context, req *mercadopago.PreferenceRequest) (*mercadopago.PreferenceResponse, error)
}

// Catalog resolves voucher identifiers.
type Catalog interface {
	Lookup(id string) (domain.Voucher, bool)
}

type CheckoutService struct {
	catalog  Catalog
	provider PaymentProvider
	currency string
	backURLs mercadopago.BackURLs
	logger   *zap.Logger
}

// NewCheckoutService wires the session flow. publicBaseURL is where the
// provider sends the buyer back to (the /checkout/{status} pages).
func NewCheckoutService(catalog Catalog, provider PaymentProvider, currency, publicBaseURL string, logger *zap.Logger) *CheckoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(publicBaseURL, "/")
	return &CheckoutService{
		catalog:  catalog,
		provider: provider,
		currency: currency,
		backURLs: mercadopago.BackURLs{
			Success: base + "/checkout/" + string(domain.CheckoutSuccess),
			Pending: base + "/checkout/" + string(domain.CheckoutPending),
			Failure: base + "/checkout/" + string(domain.CheckoutFailure),
		},
		logger: logger,
	}
}

// CreateCheckoutSession validates the voucher, creates a provider preference
// and returns its redirect URLs. Every call reaches the provider; identical
// calls are not deduplicated.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, voucherID string) (*domain.CheckoutResult, error) {
	// 1. Credentials
	if s.provider == nil || !s.provider.Configured() {
		return nil, ErrNotConfigured
	}

	// 2. Catalog lookup
	voucher, ok := s.catalog.Lookup(voucherID)
	if !ok {
		return nil, ErrInvalidVoucher
	}

	// 3. Preference
	pref := s.buildPreference(voucher)

	// 4. Provider call
	resp, err := s.provider.CreatePreference(ctx, pref)
	if err != nil {
		return nil, s.upstreamError(voucher.ID, err)
	}

	s.logger.Info("checkout session created",
		zap.String("voucher_id", voucher.ID),
		zap.String("preference_id", resp.ID),
		zap.Bool("has_init_point", resp.InitPoint != ""),
		zap.Bool("has_sandbox_init_point", resp.SandboxInitPoint != ""))

	return &domain.CheckoutResult{
		InitPoint:        resp.InitPoint,
		SandboxInitPoint: resp.SandboxInitPoint,
	}, nil
}

func (s *CheckoutService) buildPreference(v domain.Voucher) *mercadopago.PreferenceRequest {
	return &mercadopago.PreferenceRequest{
		Items: []mercadopago.Item{{
			ID:          v.ID,
			Title:       v.Title,
			Description: v.Description,
			Quantity:    1,
			UnitPrice:   v.Amount,
			CurrencyID:  s.currency,
		}},
		BackURLs: s.backURLs,
	}
}

func (s *CheckoutService) upstreamError(voucherID string, err error) error {
	var apiErr *mercadopago.APIError
	if errors.As(err, &apiErr) {
		msg := string(apiErr.Body)
		if msg == "" {
			msg = upstreamFallbackMessage
		}
		s.logger.Warn("payment provider rejected preference",
			zap.String("voucher_id", voucherID), zap.Int("status", apiErr.StatusCode))
		return &UpstreamError{Message: msg, StatusCode: apiErr.StatusCode, Err: err}
	}

	s.logger.Error("payment provider unreachable", zap.String("voucher_id", voucherID), zap.Error(err))
	return &UpstreamError{Message: upstreamConnectionMessage, Err: err}
}
