package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
)

// DefaultFile is read when no explicit config file is given and it exists
// in the working directory.
const DefaultFile = "config.yaml"

type Config struct {
	Port            string
	Env             string
	LogLevel        string
	ShutdownTimeout time.Duration

	// AccessToken may be empty; checkout requests then fail individually.
	AccessToken   string
	ProviderURL   string
	Timeout       time.Duration
	RetryAttempts int

	// RecordExchanges logs provider request and response bodies at debug level.
	RecordExchanges bool

	PublicBaseURL string
	Currency      string
	Locale        string
	StaticDir     string
	CatalogFile   string

	TracingEnabled bool
}

var defaults = map[string]interface{}{
	"server.port":               "4000",
	"server.shutdown_timeout":   "10s",
	"environment":               "development",
	"log.level":                 "info",
	"provider.access_token":     "",
	"provider.base_url":         "https://api.mercadopago.com",
	"provider.timeout":          "10s",
	"provider.retry_attempts":   1,
	"provider.record_exchanges": false,
	"store.public_base_url":     "http://localhost:4000",
	"store.currency":            "ARS",
	"store.locale":              "es-AR",
	"static.dir":                "dist/browser",
	"catalog.file":              "",
	"tracing.enabled":           false,
}

// envKeys maps process environment variables onto config keys.
var envKeys = map[string]string{
	"PORT":                "server.port",
	"SHUTDOWN_TIMEOUT":    "server.shutdown_timeout",
	"ENVIRONMENT":         "environment",
	"LOG_LEVEL":           "log.level",
	"MP_ACCESS_TOKEN":     "provider.access_token",
	"MP_BASE_URL":         "provider.base_url",
	"MP_TIMEOUT":          "provider.timeout",
	"MP_RETRY_ATTEMPTS":   "provider.retry_attempts",
	"MP_RECORD_EXCHANGES": "provider.record_exchanges",
	"PUBLIC_BASE_URL":     "store.public_base_url",
	"STORE_CURRENCY":      "store.currency",
	"STORE_LOCALE":        "store.locale",
	"STATIC_DIR":          "static.dir",
	"CATALOG_FILE":        "catalog.file",
	"TRACING_ENABLED":     "tracing.enabled",
}

// Load layers defaults, an optional YAML file and the environment, in that
// order. An empty path falls back to DefaultFile when it exists.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	cfg := &Config{
		Port:            k.String("server.port"),
		Env:             k.String("environment"),
		LogLevel:        k.String("log.level"),
		ShutdownTimeout: k.Duration("server.shutdown_timeout"),
		AccessToken:     k.String("provider.access_token"),
		ProviderURL:     k.String("provider.base_url"),
		Timeout:         k.Duration("provider.timeout"),
		RetryAttempts:   k.Int("provider.retry_attempts"),
		RecordExchanges: k.Bool("provider.record_exchanges"),
		PublicBaseURL:   k.String("store.public_base_url"),
		Currency:        k.String("store.currency"),
		Locale:          k.String("store.locale"),
		StaticDir:       k.String("static.dir"),
		CatalogFile:     k.String("catalog.file"),
		TracingEnabled:  k.Bool("tracing.enabled"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %q", c.Port)
	}
	if c.Timeout <= 0 {
		return errors.New("provider timeout must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be > 0")
	}
	if c.RetryAttempts < 1 {
		return errors.New("provider retry attempts must be >= 1")
	}
	if c.Currency == "" {
		return errors.New("store currency is required")
	}
	for name, raw := range map[string]string{"provider base url": c.ProviderURL, "public base url": c.PublicBaseURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s %q is not an absolute url", name, raw)
		}
	}
	return nil
}

// HasAccessToken reports whether checkout can reach the provider.
func (c *Config) HasAccessToken() bool {
	return c.AccessToken != ""
}
