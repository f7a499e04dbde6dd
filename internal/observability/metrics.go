package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "geo_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the enrichment pipeline.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	RecordsProduced  *prometheus.CounterVec // labels: measurement
	DecodeErrors     prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Stage metrics.
	ReadingsRejected  *prometheus.CounterVec // labels: field
	PointsProcessed   prometheus.Counter
	StageEnabled      *prometheus.GaugeVec // labels: stage={validation,enrichment,aggregation,quality_scoring}
	QualityScore      prometheus.Histogram
	SpatialLookups    *prometheus.CounterVec // labels: outcome={hit,miss}
	SpatialResolution prometheus.Histogram
	SpatialIndexCells *prometheus.GaugeVec // labels: resolution

	// Sink metrics.
	SinkBreakerState prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.MessagesConsumed,
		m.RecordsProduced,
		m.DecodeErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.ReadingsRejected,
		m.PointsProcessed,
		m.StageEnabled,
		m.QualityScore,
		m.SpatialLookups,
		m.SpatialResolution,
		m.SpatialIndexCells,
		m.SinkBreakerState,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      help("Total messages read from the source topic."),
		}),
		RecordsProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_produced_total",
			Help:      help("Total records written to the sink, by measurement."),
		}, []string{"measurement"}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      help("Messages that could not be decoded into a reading."),
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      help("1 when the pipeline is active, 0 when shut down."),
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      help("Number of messages per batch extracted from Kafka."),
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100, 250, 500},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      help("Duration of a complete batch extract-process-load cycle."),
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		ReadingsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_rejected_total",
			Help:      help("Readings dropped by validation, by offending field."),
		}, []string{"field"}),
		PointsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_processed_total",
			Help:      help("Processed points emitted by the processor."),
		}),
		StageEnabled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_enabled",
			Help:      help("1 when a processing stage is enabled, 0 otherwise."),
		}, []string{"stage"}),
		QualityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quality_score",
			Help:      help("Distribution of per-point quality scores."),
			Buckets:   []float64{0.5, 0.56, 0.7, 0.8, 0.88, 0.9, 1},
		}),
		SpatialLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spatial_lookups_total",
			Help:      help("Spatial index lookups by outcome."),
		}, []string{"outcome"}),
		SpatialResolution: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "spatial_resolution_used",
			Help:      help("Resolution at which successful spatial lookups matched."),
			Buckets:   prometheus.LinearBuckets(0, 1, 9),
		}),
		SpatialIndexCells: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "spatial_index_cells",
			Help:      help("Populated cells in the spatial index, by resolution."),
		}, []string{"resolution"}),
		SinkBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sink_breaker_state",
			Help:      help("Sink circuit breaker state: 0 closed, 1 half-open, 2 open."),
		}),
	}
}

// RecordIndexCells publishes the per-resolution cell counts of the spatial index.
func (m *Metrics) RecordIndexCells(counts []int) {
	for res, n := range counts {
		m.SpatialIndexCells.WithLabelValues(strconv.Itoa(res)).Set(float64(n))
	}
}

// SetStageEnabled flips the stage_enabled gauge for one stage.
func (m *Metrics) SetStageEnabled(stage string, enabled bool) {
	v := 0.0
	if enabled {
		v = 1
	}
	m.StageEnabled.WithLabelValues(stage).Set(v)
}
