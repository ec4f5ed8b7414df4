package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/misua/quake-monitor-web/internal/adapter/http"
	kafkaadapter "github.com/misua/quake-monitor-web/internal/adapter/kafka"
	"github.com/misua/quake-monitor-web/internal/cache"
	"github.com/misua/quake-monitor-web/internal/cluster"
	"github.com/misua/quake-monitor-web/internal/config"
	"github.com/misua/quake-monitor-web/internal/fetch"
	"github.com/misua/quake-monitor-web/internal/observability"
	"github.com/misua/quake-monitor-web/internal/perf"
	"github.com/misua/quake-monitor-web/internal/scheduler"
	"github.com/misua/quake-monitor-web/internal/source"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// Kafka alerting is feature-flagged via KAFKA_BROKERS.
	var alertWriter *kafkaadapter.AlertWriter
	var emitter perf.Emitter
	var publisher scheduler.AlertPublisher
	if len(cfg.KafkaBrokers) > 0 {
		alertWriter = kafkaadapter.NewAlertWriter(cfg.KafkaBrokers, cfg.KafkaAlertTopic, logger)
		emitter = alertWriter
		publisher = alertWriter
		logger.Info("kafka alerting enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAlertTopic)
	} else {
		logger.Info("kafka alerting disabled")
	}

	monitor := perf.New(cfg.WarnThreshold, cfg.CriticalThreshold, logger, metrics, emitter)

	fetchCfg := fetch.Config{
		ConnectTimeout:   cfg.ConnectTimeout,
		ReadTimeout:      cfg.ReadTimeout,
		MaxResponseBytes: cfg.MaxResponseBytes,
		MaxRetries:       cfg.MaxRetries,
	}
	client := fetch.NewClient(fetchCfg, monitor)

	// PHIVOLCS and PAGASA serve incomplete certificate chains, so their
	// adapters go through a client that skips verification.
	govCfg := fetchCfg
	govCfg.InsecureTLS = cfg.InsecureGovTLS
	govClient := fetch.NewClient(govCfg, monitor)

	adapters := []source.Adapter{
		source.NewPHIVOLCS(govClient, cfg.EarthquakeInterval),
		source.NewUSGS(client, cfg.EarthquakeInterval),
		source.NewOpenMeteo(client, cfg.Latitude, cfg.Longitude, cfg.WeatherInterval),
		source.NewTsunami(govClient, cfg.HazardInterval),
		source.NewPAGASATyphoon(govClient, clock, cfg.HazardInterval),
		source.NewPAGASARainfall(govClient, clock, cfg.Region, cfg.City, cfg.HazardInterval),
		source.NewSeaLevel(client, cfg.SeaLevelStation, cfg.HazardInterval),
	}
	// Stormglass has a 10 requests/day quota, so tides are opt-in.
	if cfg.StormglassAPIKey != "" {
		adapters = append(adapters,
			source.NewStormglass(client, clock, cfg.StormglassAPIKey, cfg.Latitude, cfg.Longitude, cfg.HazardInterval))
	}

	store := cache.New(clock, cfg.StaleFactor)
	window := cluster.New(clock, cfg.ClusterWindow, cfg.ClusterTopN)

	sched := scheduler.New(adapters, store, window, monitor, publisher, logger, metrics, clock, cfg.MaxConcurrentFetches)

	srv := httpadapter.NewServer(cfg.HTTPAddr, store, window, sched, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := sched.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if alertWriter != nil {
		if err := alertWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
