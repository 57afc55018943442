// Command worker drains the processing queue: every poll interval it expands
// one queued paper into its citations.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helixir/citation-graph-service/internal/app"
	"github.com/helixir/citation-graph-service/internal/config"
	"github.com/helixir/citation-graph-service/internal/database"
	"github.com/helixir/citation-graph-service/internal/observability"
	"github.com/helixir/citation-graph-service/internal/repository"
	"github.com/helixir/citation-graph-service/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(app.LoggingConfig(cfg.Logging, "citation-graph-worker"))
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("citation-graph-service worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, app.TracingConfig(cfg.Tracing))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to flush traces")
		}
	}()

	var metrics *observability.Metrics
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	pipeline, err := app.NewPipeline(cfg, app.ResolverOptions{}, logger, metrics)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	publisher := app.NewPublisher(cfg.Kafka, logger, metrics)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	w := worker.New(worker.Config{
		PollInterval: cfg.Worker.PollInterval,
		UnitTimeout:  cfg.Worker.UnitTimeout,
	}, db, repository.NewStore, pipeline.Expander, publisher, logger, metrics)

	logger.Info().
		Dur("poll_interval", cfg.Worker.PollInterval).
		Dur("unit_timeout", cfg.Worker.UnitTimeout).
		Msg("queue worker running")

	runErr := w.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("citation-graph-service worker stopped")
	return runErr
}
