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

	"github.com/Avi18971911/Beacon/internal/config"
	"github.com/Avi18971911/Beacon/internal/db/elasticsearch/bootstrapper"
	"github.com/Avi18971911/Beacon/internal/db/elasticsearch/client"
	esModel "github.com/Avi18971911/Beacon/internal/db/elasticsearch/model"
	"github.com/Avi18971911/Beacon/internal/db/write_buffer"
	"github.com/Avi18971911/Beacon/internal/export"
	"github.com/Avi18971911/Beacon/internal/metrics"
	traceServer "github.com/Avi18971911/Beacon/internal/otel_server/trace/server"
	"github.com/Avi18971911/Beacon/internal/project"
	"github.com/Avi18971911/Beacon/internal/query_server/router"
	"github.com/dgraph-io/ristretto"
	"github.com/elastic/go-elasticsearch/v8"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	_ "google.golang.org/grpc/encoding/gzip"
)

func runServe(ctx context.Context, configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	registry := project.NewRegistry(cfg.DefaultProject, cfg.Sketch.RelativeAccuracy, logger)
	m := metrics.NewMetrics(func() int { return len(registry.Names()) })

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.Cache.NumCounters,
		MaxCost:     cfg.Cache.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return fmt.Errorf("failed to create export cache: %w", err)
	}
	defer cache.Close()

	var sc client.StoreClient
	var spanBuffer write_buffer.DatabaseWriteBuffer[esModel.SpanDocument]
	if cfg.Elasticsearch.Enabled {
		es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Elasticsearch.Addresses})
		if err != nil {
			return fmt.Errorf("failed to create elasticsearch client: %w", err)
		}
		bs := bootstrapper.NewBootstrapper(es, logger)
		if err = bs.BootstrapElasticsearch(); err != nil {
			return fmt.Errorf("failed to bootstrap elasticsearch: %w", err)
		}
		sc = client.NewStoreClientImpl(es, client.RefreshRate(cfg.Elasticsearch.RefreshRate))
		spanBuffer = write_buffer.NewDatabaseWriteBufferImpl[esModel.SpanDocument](
			sc,
			bootstrapper.SpanIndexName,
			cfg.Elasticsearch.FlushSize,
			logger,
		)
	} else {
		logger.Info("Elasticsearch disabled, data is kept in memory only")
	}
	exporter := export.NewEvaluationExporterImpl(cache, sc, m, logger)

	listener, err := net.Listen("tcp", cfg.OTLP.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.OTLP.Address, err)
	}
	srv := grpc.NewServer()
	protoTrace.RegisterTraceServiceServer(srv, traceServer.NewTraceServiceServerImpl(registry, spanBuffer, m, logger))

	httpServer := &http.Server{
		Addr:    cfg.Query.Address,
		Handler: router.CreateRouter(registry, exporter, m, logger),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 2)
	go func() {
		logger.Info("gRPC service started, listening for OpenTelemetry traces", zap.String("address", cfg.OTLP.Address))
		serveErr <- srv.Serve(listener)
	}()
	go func() {
		logger.Info("Starting query server", zap.String("address", cfg.Query.Address))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err = <-serveErr:
		logger.Error("Server stopped unexpectedly", zap.Error(err))
	}

	srv.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Query.GetShutdownTimeout())
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("Failed to shut down query server", zap.Error(shutdownErr))
	}
	flushAll(shutdownCtx, registry, spanBuffer, exporter, logger)
	return err
}

func flushAll(
	ctx context.Context,
	registry *project.Registry,
	spanBuffer write_buffer.DatabaseWriteBuffer[esModel.SpanDocument],
	exporter export.EvaluationExporter,
	logger *zap.Logger,
) {
	if spanBuffer == nil {
		return
	}
	if err := spanBuffer.Flush(ctx); err != nil {
		logger.Error("Failed to flush spans", zap.Error(err))
	}
	for _, p := range registry.Projects() {
		if err := exporter.Flush(ctx, p); err != nil {
			logger.Error("Failed to flush evaluations", zap.String("project", p.Name), zap.Error(err))
		}
	}
}

func newLogger(appConfig config.AppConfig) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if appConfig.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(appConfig.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", appConfig.LogLevel, err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	return zapConfig.Build()
}
