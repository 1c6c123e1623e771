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

	"github.com/couchcryptid/coastal-erosion-etl/internal/adapter/export"
	"github.com/couchcryptid/coastal-erosion-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/coastal-erosion-etl/internal/adapter/kafka"
	redisadapter "github.com/couchcryptid/coastal-erosion-etl/internal/adapter/redis"
	"github.com/couchcryptid/coastal-erosion-etl/internal/adapter/stac"
	"github.com/couchcryptid/coastal-erosion-etl/internal/config"
	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
	"github.com/couchcryptid/coastal-erosion-etl/internal/observability"
	"github.com/couchcryptid/coastal-erosion-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	sites, err := config.LoadSites(cfg.SitesFile)
	if err != nil {
		slog.Error("failed to load site catalog", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mask, err := domain.NewCloudMask(cfg.Mask)
	if err != nil {
		logger.Error("invalid cloud mask", "error", err)
		os.Exit(1)
	}
	compositor, err := domain.NewCompositor(cfg.CompositeMethod)
	if err != nil {
		logger.Error("invalid composite method", "error", err)
		os.Exit(1)
	}

	session, err := stac.Open(ctx, stac.SessionConfig{
		URL:     cfg.STACURL,
		Token:   cfg.STACToken,
		Timeout: cfg.STACTimeout,
	}, logger, metrics)
	if err != nil {
		logger.Error("failed to open imagery catalog", "error", err)
		os.Exit(1)
	}
	defer session.Close()

	var source domain.SceneSource = stac.NewSource(session, cfg.STACCollection, stac.NewLoader(session, stac.DefaultAssetKeys()), logger)
	if cfg.SceneCacheSize > 0 {
		source = stac.NewCachedSource(source, cfg.SceneCacheSize, metrics)
		logger.Info("scene cache enabled", "size", cfg.SceneCacheSize)
	}

	processor := pipeline.NewSiteProcessor(source, pipeline.Stages{
		Mask:       mask,
		Compositor: compositor,
		Reducer:    domain.Reducer{MinValidFraction: cfg.MinValidFraction},
	}, pipeline.Settings{
		Index:          cfg.Index,
		DateRange:      cfg.DateRange,
		MaxCloudCover:  cfg.MaxCloudCover,
		WaterThreshold: cfg.WaterThreshold,
		FetchTimeout:   cfg.FetchTimeout,
	}, logger, metrics, clock)

	store := pipeline.NewReportStore()
	sinks := []pipeline.Sink{
		{Name: "memory", Loader: store},
		{Name: "files", Loader: export.NewWriter(cfg.OutputDir, logger)},
	}

	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger, clock)
		sinks = append(sinks, pipeline.Sink{Name: "kafka", Loader: kafkaWriter})
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaRiskTopic)
	}

	var redisStore *redisadapter.Store
	if cfg.RedisAddr != "" {
		redisStore, err = redisadapter.Open(ctx, redisadapter.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.RedisTTL,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, pipeline.Sink{Name: "redis", Loader: redisStore})

		// Serve the last known reports until the first run completes.
		if previous, err := redisStore.All(ctx); err != nil {
			logger.Warn("restore reports from redis failed", "error", err)
		} else if err := store.LoadBatch(ctx, previous); err == nil {
			logger.Info("reports restored from redis", "count", len(previous))
		}
	}

	runner := pipeline.New(processor, sinks, logger, metrics, clock, pipeline.Options{
		Concurrency: cfg.SiteConcurrency,
		Interval:    cfg.RunInterval,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, runner, store, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start pipeline. With no RUN_INTERVAL it returns after one run.
	runErr := make(chan error, 1)
	go func() {
		runErr <- runner.Run(ctx, sites)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-runErr:
		if err != nil {
			logger.Error("pipeline error", "error", err)
			exitCode = 1
		}
	}
	stop()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	if exitCode != 0 {
		session.Close()
		os.Exit(exitCode)
	}
}
