package mercadopago

import (
	"errors"
	"net/http"
	"time"

	"github.com/stremovskyy/recorder"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.mercadopago.com"

type Option func(*config) error

type config struct {
	baseURL     string
	accessToken string

	httpClient *http.Client
	logger     *zap.Logger

	retryAttempts int
	retryWait     time.Duration
	recorder      recorder.Recorder
}

func defaultConfig() config {
	return config{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:        zap.NewNop(),
		retryAttempts: 1,
		retryWait:     300 * time.Millisecond,
	}
}

// WithAccessToken sets the bearer credential. An empty token is allowed; the
// client then reports itself as not configured.
func WithAccessToken(token string) Option {
	return func(cfg *config) error {
		cfg.accessToken = token
		return nil
	}
}

func WithBaseURL(baseURL string) Option {
	return func(cfg *config) error {
		if baseURL == "" {
			return errors.New("base url is empty")
		}
		cfg.baseURL = baseURL
		return nil
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *config) error {
		if client == nil {
			return errors.New("http client is nil")
		}
		cfg.httpClient = client
		return nil
	}
}

// WithTimeout sets http client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *config) error {
		if timeout <= 0 {
			return errors.New("timeout must be > 0")
		}
		cfg.httpClient.Timeout = timeout
		return nil
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) error {
		if logger == nil {
			cfg.logger = zap.NewNop()
			return nil
		}
		cfg.logger = logger
		return nil
	}
}

// WithRetry enables retries of transient failures. The default is a single attempt.
func WithRetry(attempts int, wait time.Duration) Option {
	return func(cfg *config) error {
		if attempts <= 0 {
			return errors.New("retry attempts must be > 0")
		}
		if wait <= 0 {
			return errors.New("retry wait must be > 0")
		}
		cfg.retryAttempts = attempts
		cfg.retryWait = wait
		return nil
	}
}

// WithRecorder attaches a recorder that receives every request and response body.
func WithRecorder(r recorder.Recorder) Option {
	return func(cfg *config) error {
		cfg.recorder = r
		return nil
	}
}
