package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/voucherfront/internal/web"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// NewRouter wires the JSON API, the storefront pages and the static
// fallback. The middleware wraps the whole router so unmatched requests are
// logged and recovered too. Server spans start here and parent the provider
// client spans when a tracer provider is installed.
func NewRouter(h *Handler, site *web.Site, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	apiRoutes := r.PathPrefix("/api").Subrouter()
	apiRoutes.HandleFunc("/checkout", h.CreateCheckout).Methods(http.MethodPost)

	if site != nil {
		r.HandleFunc("/", site.Home).Methods(http.MethodGet, http.MethodHead)
		r.HandleFunc("/checkout/{status:success|pending|failure}", site.CheckoutResult).Methods(http.MethodGet, http.MethodHead)
		r.NotFoundHandler = http.HandlerFunc(site.Fallback)
	}

	var handler http.Handler = r
	handler = requestLogger(logger)(handler)
	handler = middleware.Recoverer(handler)
	handler = middleware.RequestID(handler)
	return otelhttp.NewHandler(handler, "voucherfront")
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
