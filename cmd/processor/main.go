package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/geo-enrichment-etl/internal/adapter/breaker"
	httpadapter "github.com/couchcryptid/geo-enrichment-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/geo-enrichment-etl/internal/adapter/kafka"
	"github.com/couchcryptid/geo-enrichment-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/geo-enrichment-etl/internal/adapter/postgres"
	"github.com/couchcryptid/geo-enrichment-etl/internal/config"
	"github.com/couchcryptid/geo-enrichment-etl/internal/domain"
	"github.com/couchcryptid/geo-enrichment-etl/internal/geo"
	"github.com/couchcryptid/geo-enrichment-etl/internal/observability"
	"github.com/couchcryptid/geo-enrichment-etl/internal/pipeline"
)

const postgresConnectTimeout = time.Minute

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("processor stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	tracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}

	metrics.SetStageEnabled("validation", cfg.ValidationEnabled)
	metrics.SetStageEnabled("enrichment", cfg.EnrichmentEnabled)
	metrics.SetStageEnabled("aggregation", cfg.AggregationEnabled)
	metrics.SetStageEnabled("quality_scoring", cfg.QualityScoringEnabled)

	// Build the spatial index before touching Kafka: a missing gazetteer is fatal.
	var locator domain.Locator
	if cfg.EnrichmentEnabled {
		idx, err := loadIndex(ctx, cfg, logger)
		if err != nil {
			return err
		}
		counts := idx.CellCounts()
		metrics.RecordIndexCells(counts[:])
		locator = idx
	} else {
		logger.Info("enrichment disabled, spatial index not built")
	}

	validator := domain.NewValidator(domain.ValidationRules{
		TemperatureMin: cfg.TemperatureMin,
		TemperatureMax: cfg.TemperatureMax,
		HumidityMin:    cfg.HumidityMin,
		HumidityMax:    cfg.HumidityMax,
	})
	processor := pipeline.NewProcessor(pipeline.Options{
		Validation:     cfg.ValidationEnabled,
		Enrichment:     cfg.EnrichmentEnabled,
		Aggregation:    cfg.AggregationEnabled,
		QualityScoring: cfg.QualityScoringEnabled,
	}, validator, domain.NewEnricher(locator), domain.PassthroughAggregator{}, logger, metrics)
	transformer := pipeline.NewTransformer(processor)

	reader := kafkaadapter.NewReader(cfg, logger)
	sink, closeSink, err := openSink(ctx, cfg, logger)
	if err != nil {
		_ = reader.Close()
		return err
	}
	loader := breaker.New(sink, breaker.Settings{
		Name:    cfg.SinkType,
		Timeout: cfg.SinkBreakerTimeout,
	}, logger, metrics)

	p := pipeline.New(reader, transformer, loader, logger, metrics, cfg.BatchSize, cfg.WorkerCount)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, locator, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return p.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracing shutdown error", "error", err)
		}
		return nil
	})

	runErr := g.Wait()

	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := closeSink(); err != nil {
		logger.Error("sink close error", "error", err)
	}

	// Cancellation by signal is a clean exit.
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	logger.Info("shutdown complete")
	return nil
}

func loadIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*geo.Index, error) {
	opener := objectstore.Opener{}
	if cfg.MinIOConfigured() {
		client, err := objectstore.New(objectstore.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
		}, logger)
		if err != nil {
			return nil, err
		}
		opener.Remote = client
	}

	idx, err := geo.LoadIndex(ctx, opener, cfg.GazetteerPath, cfg.CountryInfoPath, logger)
	if err != nil {
		return nil, fmt.Errorf("spatial index: %w", err)
	}
	return idx, nil
}

func openSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (breaker.BatchLoader, func() error, error) {
	switch cfg.SinkType {
	case config.SinkPostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, postgresConnectTimeout, logger)
		if err != nil {
			return nil, nil, err
		}
		w := postgres.NewWriter(pool, cfg.PostgresTable, logger)
		if err := w.EnsureSchema(ctx); err != nil {
			_ = w.Close()
			return nil, nil, err
		}
		logger.Info("postgres sink ready", "table", cfg.PostgresTable)
		return w, w.Close, nil
	default:
		w := kafkaadapter.NewWriter(cfg, logger)
		logger.Info("kafka sink ready", "topic", cfg.KafkaSinkTopic)
		return w, w.Close, nil
	}
}
