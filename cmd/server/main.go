// Command server runs the citation graph HTTP API, with the processing queue
// worker and the Kafka paper request listener embedded when configured.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/helixir/citation-graph-service/internal/app"
	"github.com/helixir/citation-graph-service/internal/config"
	"github.com/helixir/citation-graph-service/internal/database"
	"github.com/helixir/citation-graph-service/internal/graph"
	"github.com/helixir/citation-graph-service/internal/observability"
	"github.com/helixir/citation-graph-service/internal/repository"
	httpserver "github.com/helixir/citation-graph-service/internal/server/http"
	"github.com/helixir/citation-graph-service/internal/worker"
)

// healthService is the name reported through the gRPC health protocol.
const healthService = "citegraph.v1.CitationGraphService"

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
	logger := observability.NewLogger(app.LoggingConfig(cfg.Logging, "citation-graph-service"))
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("citation-graph-service server starting")

	// Set up context with graceful shutdown via OS signals.
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
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		if err := database.MigrateUp(db, cfg.Database.MigrationPath, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

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

	stores := repository.StoreFactory(repository.NewStore)
	intake := graph.NewIntake(db, stores, pipeline.Creator, publisher, logger, metrics)

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	httpSrv := httpserver.NewServer(httpCfg, httpserver.Dependencies{
		Store:     repository.NewStore(db),
		Tx:        db,
		Stores:    stores,
		Intake:    intake,
		Resolver:  pipeline.Resolver,
		Expander:  pipeline.Expander,
		Publisher: publisher,
		Health:    db,
	}, logger)

	// gRPC health endpoint for orchestrators.
	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 15 * time.Minute,
			Time:              5 * time.Minute,
			Timeout:           1 * time.Minute,
		}),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(healthService, healthpb.HealthCheckResponse_SERVING)

	grpcAddr := cfg.Server.GRPCAddress()
	grpcListener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen on gRPC port: %w", err)
	}

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 5)

	go func() {
		logger.Info().Str("address", grpcAddr).Msg("gRPC health server starting")
		if err := grpcServer.Serve(grpcListener); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	// Background loops stop with ctx.
	bgCtx, cancelBackground := context.WithCancel(ctx)
	defer cancelBackground()
	background := make(chan struct{}, 2)
	running := 0

	if cfg.Worker.Enabled {
		w := worker.New(worker.Config{
			PollInterval: cfg.Worker.PollInterval,
			UnitTimeout:  cfg.Worker.UnitTimeout,
		}, db, stores, pipeline.Expander, publisher, logger, metrics)
		running++
		go func() {
			defer func() { background <- struct{}{} }()
			if err := w.Run(bgCtx); err != nil {
				errCh <- fmt.Errorf("queue worker error: %w", err)
			}
		}()
	}

	if listener := app.NewListener(cfg.Kafka, intake, logger); listener != nil {
		defer func() {
			if err := listener.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close paper request listener")
			}
		}()
		running++
		go func() {
			defer func() { background <- struct{}{} }()
			if err := listener.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("paper request listener error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().
		Str("grpc_address", grpcAddr).
		Str("http_address", httpCfg.Address).
		Bool("worker", cfg.Worker.Enabled).
		Bool("kafka", cfg.Kafka.Enabled)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("citation-graph-service is ready")

	// Wait for shutdown signal or server error.
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server error")
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down citation-graph-service")
	healthServer.SetServingStatus(healthService, healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	// Let the worker finish its current unit.
	cancelBackground()
	for ; running > 0; running-- {
		select {
		case <-background:
		case <-shutdownCtx.Done():
			logger.Warn().Msg("background loops did not stop before shutdown timeout")
			running = 0
		}
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
		logger.Info().Msg("gRPC server stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn().Msg("gRPC server forced shutdown due to timeout")
		grpcServer.Stop()
	}

	logger.Info().Msg("citation-graph-service shutdown complete")
	return runErr
}
