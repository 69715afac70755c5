// Command crowd-depth runs the vessel-side service: it collects live depth
// observations into local storage and periodically submits unreported
// windows to the crowd-sourced bathymetry archive.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	kafkaadapter "github.com/openwaters/crowd-depth/internal/adapter/kafka"
	"github.com/openwaters/crowd-depth/internal/adapter/ops"
	"github.com/openwaters/crowd-depth/internal/collector"
	"github.com/openwaters/crowd-depth/internal/config"
	"github.com/openwaters/crowd-depth/internal/domain"
	"github.com/openwaters/crowd-depth/internal/observability"
	"github.com/openwaters/crowd-depth/internal/reporter"
	"github.com/openwaters/crowd-depth/internal/source"
	"github.com/openwaters/crowd-depth/internal/storage"
	"github.com/openwaters/crowd-depth/internal/submit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateVessel(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open storage", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	local := source.NewLocalSource(store)

	// Prefer the external history provider; fall back to local storage.
	var src source.Source = local
	if hist, err := source.NewHistorySource(ctx, cfg.HistoryURL, nil); err == nil {
		logger.Info("using external history provider", "url", cfg.HistoryURL)
		src = hist
	} else if !errors.Is(err, source.ErrUnavailable) {
		logger.Error("history source error", "error", err)
		os.Exit(1)
	} else {
		logger.Info("history provider unavailable, using local storage", "error", err)
	}

	vessel := domain.VesselIdentity{
		UUID:   cfg.VesselUUID,
		Name:   cfg.VesselName,
		Type:   cfg.VesselType,
		Length: cfg.VesselLength,
		MMSI:   cfg.VesselMMSI,
		IMO:    cfg.VesselIMO,
		Token:  cfg.VesselToken,
	}
	sensors := domain.SensorConfig{
		Sounder: domain.SensorInfo{
			Make: cfg.SounderMake, Model: cfg.SounderModel,
			X: cfg.SounderX, Y: cfg.SounderY, Z: cfg.SounderZ,
			Draft: cfg.SounderDraft, Frequency: cfg.SounderFrequency,
		},
		GNSS: domain.SensorInfo{
			Make: cfg.GNSSMake, Model: cfg.GNSSModel,
			X: cfg.GNSSX, Y: cfg.GNSSY, Z: cfg.GNSSZ,
		},
		Anonymous: cfg.Anonymous,
	}

	client := submit.NewClient(cfg.ArchiveURL, cfg.VesselToken, cfg.SubmitTimeout, logger)
	rep := reporter.New(store, src, client, vessel, sensors, reporter.Config{
		Start:         cfg.ReportStart,
		CoordDecimals: cfg.CoordPrecision,
		DepthDecimals: cfg.DepthPrecision,
	}, logger, metrics)

	// The collector only runs when an ingestion transport is configured;
	// installations using an external history provider have no local write
	// path to feed.
	var ready ops.ReadinessChecker = ops.AlwaysReady{}
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafkaadapter.NewProducer(kafkaadapter.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		}, logger)
		defer producer.Close()

		col := collector.New(producer, local,
			domain.ToPrecision(cfg.CoordPrecision, cfg.DepthPrecision), logger, metrics)
		ready = col

		go func() {
			if err := col.Run(ctx); err != nil {
				logger.Error("collector error", "error", err)
			}
		}()
	} else {
		logger.Info("no ingestion transport configured, collector disabled")
	}

	srv := ops.NewServer(cfg.HTTPAddr, ready, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := rep.Run(ctx, cfg.ReportInterval); err != nil {
			logger.Error("reporter error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
