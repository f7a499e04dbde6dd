package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/geo-enrichment-etl/internal/domain"
	"github.com/couchcryptid/geo-enrichment-etl/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw event into zero or more sink records.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) ([]domain.Record, error)
}

// BatchLoader writes multiple records to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, records []domain.Record) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Pipeline orchestrates the extract-transform-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
	workers     int
}

// New creates a Pipeline with the given stages and observability. Each batch
// is transformed on up to workers goroutines.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
		workers:     workers,
	}
}

// CheckReadiness returns nil if the pipeline has processed at least one message,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any messages yet")
	}
	return nil
}

// Run executes the batch ETL loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize, "workers", p.workers)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one extract-transform-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = initialBackoff

	ctx, span := observability.Tracer().Start(ctx, "pipeline.batch")
	span.SetAttributes(attribute.Int("batch.size", len(rawBatch)))
	defer span.End()

	processed, ok := p.transformAndLoad(ctx, rawBatch, backoff)
	if !ok {
		span.SetStatus(codes.Error, "batch not loaded")
		return false
	}

	if processed > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

type transformResult struct {
	records []domain.Record
	err     error
}

// transformAll runs the transformer over the batch on the worker pool. Results
// are stored by batch position so downstream order matches the source.
func (p *Pipeline) transformAll(ctx context.Context, rawBatch []domain.RawEvent) []transformResult {
	results := make([]transformResult, len(rawBatch))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, raw := range rawBatch {
		g.Go(func() error {
			records, err := p.transformer.Transform(ctx, raw)
			results[i] = transformResult{records: records, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// transformAndLoad transforms each message in the batch, loads the resulting
// records, and commits offsets. Returns the number of decoded messages and
// false if the pipeline should stop before the batch was loaded.
func (p *Pipeline) transformAndLoad(ctx context.Context, rawBatch []domain.RawEvent, backoff *time.Duration) (int, bool) {
	results := p.transformAll(ctx, rawBatch)

	var outBatch []domain.Record
	successfulRaws := make([]domain.RawEvent, 0, len(rawBatch))

	for i, res := range results {
		raw := rawBatch[i]
		if res.err != nil {
			p.logger.Warn("decode failed, skipping message",
				"error", res.err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.DecodeErrors.Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		outBatch = append(outBatch, res.records...)
		successfulRaws = append(successfulRaws, raw)
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("batch.records", len(outBatch)))

	if len(outBatch) > 0 {
		if !p.loadWithRetry(ctx, outBatch, backoff) {
			return 0, false
		}
		for _, rec := range outBatch {
			p.metrics.RecordsProduced.WithLabelValues(rec.Measurement).Inc()
		}
	}

	for _, raw := range successfulRaws {
		p.commitOffset(ctx, raw)
	}

	return len(successfulRaws), true
}

// loadWithRetry retries the same records until the sink accepts them or ctx
// ends. Fetched messages are not redelivered, so a batch is never skipped.
func (p *Pipeline) loadWithRetry(ctx context.Context, records []domain.Record, backoff *time.Duration) bool {
	for attempt := 1; ; attempt++ {
		err := p.loader.LoadBatch(ctx, records)
		if err == nil {
			*backoff = initialBackoff
			return true
		}
		p.logger.Error("load batch failed, retrying",
			"error", err,
			"batch_size", len(records),
			"attempt", attempt,
			"wait", *backoff,
		)
		if !p.backoffOrStop(ctx, backoff) {
			return false
		}
	}
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
