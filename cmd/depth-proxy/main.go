// Command depth-proxy runs the shore-side submission proxy: it mints vessel
// credentials, validates inbound submissions, relays them to the upstream
// archive, and mirrors them to object storage.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openwaters/crowd-depth/internal/adapter/ops"
	"github.com/openwaters/crowd-depth/internal/config"
	"github.com/openwaters/crowd-depth/internal/identity"
	"github.com/openwaters/crowd-depth/internal/objectstore"
	"github.com/openwaters/crowd-depth/internal/observability"
	"github.com/openwaters/crowd-depth/internal/proxyapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateProxy(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ids, err := identity.New(cfg.IdentitySecret)
	if err != nil {
		logger.Error("identity setup failed", "error", err)
		os.Exit(1)
	}

	store, err := objectstore.New(objectstore.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKeyID,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		logger.Error("object store setup failed", "error", err)
		os.Exit(1)
	}

	api := proxyapi.NewServer(ids, store, proxyapi.Config{
		UpstreamURL:     cfg.UpstreamURL,
		UpstreamToken:   cfg.UpstreamToken,
		UpstreamTimeout: cfg.UpstreamTimeout,
	}, logger, metrics)

	// Submissions stream large bodies through two destinations, so the API
	// listener gets generous timeouts; ops endpoints live on their own port.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	opsSrv := ops.NewServer(envOrDefault("OPS_ADDR", ":9090"), ops.AlwaysReady{}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("proxy listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("proxy server error", "error", err)
		}
	}()
	go func() {
		if err := opsSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("proxy server shutdown error", "error", err)
	}
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

func envOrDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
