package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/geo-enrichment-etl/internal/domain"
	"github.com/couchcryptid/geo-enrichment-etl/internal/observability"
)

// Options toggles the processing stages. All stages are on by default in
// config; the zero value disables everything.
type Options struct {
	Validation     bool
	Enrichment     bool
	Aggregation    bool
	QualityScoring bool
}

// Processor runs validation, enrichment, scoring and aggregation over a single
// reading. It holds no mutable state and is safe for concurrent use.
type Processor struct {
	opts       Options
	validator  domain.Validator
	enricher   domain.Enricher
	aggregator domain.Aggregator
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewProcessor wires a Processor. A nil aggregator falls back to passthrough.
func NewProcessor(opts Options, v domain.Validator, e domain.Enricher, a domain.Aggregator, logger *slog.Logger, metrics *observability.Metrics) *Processor {
	if a == nil {
		a = domain.PassthroughAggregator{}
	}
	return &Processor{
		opts:       opts,
		validator:  v,
		enricher:   e,
		aggregator: a,
		logger:     logger,
		metrics:    metrics,
	}
}

// Process returns the processed points derived from r. Rejected readings
// yield an empty result, not an error.
func (p *Processor) Process(_ context.Context, r domain.Reading) []domain.ProcessedPoint {
	if p.opts.Validation {
		if err := p.validator.Validate(r); err != nil {
			p.reject(r, err)
			return nil
		}
	}

	enriched := domain.NewEnrichedData()
	if p.opts.Enrichment {
		enriched = p.enricher.Enrich(r)
		p.observeLookup(enriched)
	}

	score := 1.0
	if p.opts.QualityScoring {
		score = domain.QualityScore(r, enriched)
	}
	p.metrics.QualityScore.Observe(score)

	if !p.opts.Aggregation {
		p.metrics.PointsProcessed.Inc()
		return []domain.ProcessedPoint{{Reading: r, Enriched: enriched, QualityScore: score}}
	}

	readings := p.aggregator.Aggregate(r, enriched)
	points := make([]domain.ProcessedPoint, 0, len(readings))
	for _, agg := range readings {
		points = append(points, domain.ProcessedPoint{
			Reading:      agg,
			Enriched:     enriched.Clone(),
			QualityScore: score,
		})
	}
	p.metrics.PointsProcessed.Add(float64(len(points)))
	return points
}

func (p *Processor) reject(r domain.Reading, err error) {
	field := "unknown"
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		field = verr.Field
	}
	p.metrics.ReadingsRejected.WithLabelValues(field).Inc()
	p.logger.Warn("reading rejected",
		"error", err,
		"source", r.Source,
		"category", r.Category.String(),
		"variable", r.Variable,
		"value", r.Value,
	)
}

func (p *Processor) observeLookup(e domain.EnrichedData) {
	if e.ResolutionUsed == nil {
		p.metrics.SpatialLookups.WithLabelValues("miss").Inc()
		return
	}
	p.metrics.SpatialLookups.WithLabelValues("hit").Inc()
	p.metrics.SpatialResolution.Observe(float64(*e.ResolutionUsed))
}
