package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/voucherfront/internal/api"
	"github.com/punchamoorthee/voucherfront/internal/config"
	"github.com/punchamoorthee/voucherfront/internal/logger"
	"github.com/punchamoorthee/voucherfront/internal/mercadopago"
	"github.com/punchamoorthee/voucherfront/internal/service"
	"github.com/punchamoorthee/voucherfront/internal/store"
	"github.com/punchamoorthee/voucherfront/internal/tracing"
	"github.com/punchamoorthee/voucherfront/internal/web"
	"go.uber.org/zap"
)

const (
	serviceName       = "voucherfront"
	providerRetryWait = 300 * time.Millisecond
	recordedExchanges = 100
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	// Tracing goes first so the provider transport and router pick it up.
	if cfg.TracingEnabled {
		shutdown, err := tracing.Setup(serviceName, os.Stdout)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				log.Warn("tracer shutdown", zap.Error(err))
			}
		}()
	}

	// Catalog
	catalog := store.Default()
	if cfg.CatalogFile != "" {
		c, err := store.LoadFile(cfg.CatalogFile)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		catalog = c
	}

	// Payment provider
	opts := []mercadopago.Option{
		mercadopago.WithAccessToken(cfg.AccessToken),
		mercadopago.WithBaseURL(cfg.ProviderURL),
		mercadopago.WithTimeout(cfg.Timeout),
		mercadopago.WithLogger(log.Named("mercadopago")),
	}
	if cfg.RetryAttempts > 1 {
		opts = append(opts, mercadopago.WithRetry(cfg.RetryAttempts, providerRetryWait))
	}
	if cfg.RecordExchanges {
		opts = append(opts, mercadopago.WithRecorder(mercadopago.NewLogRecorder(log.Named("exchanges"), recordedExchanges)))
	}
	mp, err := mercadopago.NewClient(opts...)
	if err != nil {
		return fmt.Errorf("payment provider: %w", err)
	}
	if !cfg.HasAccessToken() {
		log.Warn("MP_ACCESS_TOKEN is not set, checkout requests will fail")
	}

	// Initialize Layers
	checkout := service.NewCheckoutService(catalog, mp, cfg.Currency, cfg.PublicBaseURL, log.Named("checkout"))
	handler := api.NewHandler(checkout, log.Named("api"))

	formatter, err := web.NewAmountFormatter(cfg.Locale, cfg.Currency)
	if err != nil {
		return err
	}
	site, err := web.NewSite(catalog, formatter, cfg.Locale, cfg.StaticDir, log.Named("web"))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handler, site, log.Named("http")),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Timeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.Bool("tracing", cfg.TracingEnabled),
			zap.Int("vouchers", catalog.Len()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}
