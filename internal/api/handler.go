package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/voucherfront/internal/domain"
	"github.com/punchamoorthee/voucherfront/internal/service"
	"go.uber.org/zap"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voucher_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voucher_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "endpoint"})
)

const maxRequestBodySize = 1 << 20 // 1MB

const misconfiguredMessage = "payment provider is not configured"

// CheckoutCreator is implemented by service.CheckoutService.
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, voucherID string) (*domain.CheckoutResult, error)
}

type Handler struct {
	checkout CheckoutCreator
	logger   *zap.Logger
}

func NewHandler(c CheckoutCreator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{checkout: c, logger: logger}
}

// CreateCheckout handles POST /api/checkout.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/api/checkout"))
	defer timer.ObserveDuration()

	// A body that cannot be decoded carries no voucher id.
	var req domain.CheckoutRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.ID = ""
	}

	res, err := h.checkout.CreateCheckoutSession(r.Context(), req.ID)
	if err != nil {
		log := h.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())), zap.String("voucher_id", req.ID))

		var upErr *service.UpstreamError
		switch {
		case errors.Is(err, service.ErrNotConfigured):
			log.Error("checkout rejected: MP_ACCESS_TOKEN is not set")
			h.respondText(w, http.StatusInternalServerError, misconfiguredMessage, "POST", "/api/checkout")
		case errors.Is(err, service.ErrInvalidVoucher):
			h.respondText(w, http.StatusBadRequest, service.ErrInvalidVoucher.Error(), "POST", "/api/checkout")
		case errors.As(err, &upErr):
			log.Warn("checkout upstream failure", zap.Error(err))
			h.respondText(w, http.StatusBadGateway, upErr.Message, "POST", "/api/checkout")
		default:
			log.Error("checkout failed", zap.Error(err))
			h.respondText(w, http.StatusInternalServerError, "Internal Server Error", "POST", "/api/checkout")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, res, "POST", "/api/checkout")
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "GET", "/health")
}

// Helpers
func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpReqTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) respondText(w http.ResponseWriter, code int, msg, method, endpoint string) {
	httpReqTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	w.Write([]byte(msg))
}
