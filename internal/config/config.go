package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Sink types accepted by SINK_TYPE.
const (
	SinkKafka    = "kafka"
	SinkPostgres = "postgres"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration
	WorkerCount        int

	// Spatial index sources. Either may be a local path, a .gz path, or an
	// s3://bucket/key URL served by MinIO.
	GazetteerPath   string
	CountryInfoPath string

	// Stage toggles.
	ValidationEnabled     bool
	EnrichmentEnabled     bool
	AggregationEnabled    bool
	QualityScoringEnabled bool

	// Environmental validation ranges.
	TemperatureMin float64
	TemperatureMax float64
	HumidityMin    float64
	HumidityMax    float64

	SinkType           string
	PostgresDSN        string
	PostgresTable      string
	SinkBreakerTimeout time.Duration

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool

	OTLPEndpoint string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "sensor-readings"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "enriched-sensor-records"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "geo-enrichment-etl"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		WorkerCount:        p.positiveInt("WORKER_COUNT", 1),

		GazetteerPath:   sharedcfg.EnvOrDefault("GAZETTEER_PATH", "allCountries.txt"),
		CountryInfoPath: os.Getenv("COUNTRY_INFO_PATH"),

		ValidationEnabled:     p.bool("VALIDATION_ENABLED", true),
		EnrichmentEnabled:     p.bool("ENRICHMENT_ENABLED", true),
		AggregationEnabled:    p.bool("AGGREGATION_ENABLED", true),
		QualityScoringEnabled: p.bool("QUALITY_SCORING_ENABLED", true),

		TemperatureMin: p.float("TEMPERATURE_MIN", -100),
		TemperatureMax: p.float("TEMPERATURE_MAX", 100),
		HumidityMin:    p.float("HUMIDITY_MIN", 0),
		HumidityMax:    p.float("HUMIDITY_MAX", 100),

		SinkType:           sharedcfg.EnvOrDefault("SINK_TYPE", SinkKafka),
		PostgresDSN:        os.Getenv("POSTGRES_DSN"),
		PostgresTable:      sharedcfg.EnvOrDefault("POSTGRES_TABLE", "sensor_records"),
		SinkBreakerTimeout: p.duration("SINK_BREAKER_TIMEOUT", 30*time.Second),

		MinIOEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinIOUseSSL:    p.bool("MINIO_USE_SSL", false),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	if p.err != nil {
		return nil, p.err
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.GazetteerPath == "" && cfg.EnrichmentEnabled {
		return nil, errors.New("GAZETTEER_PATH is required when ENRICHMENT_ENABLED is true")
	}
	if cfg.TemperatureMin > cfg.TemperatureMax {
		return nil, errors.New("TEMPERATURE_MIN must not exceed TEMPERATURE_MAX")
	}
	if cfg.HumidityMin > cfg.HumidityMax {
		return nil, errors.New("HUMIDITY_MIN must not exceed HUMIDITY_MAX")
	}

	switch cfg.SinkType {
	case SinkKafka:
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	case SinkPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("SINK_TYPE is postgres but POSTGRES_DSN is not set")
		}
	default:
		return nil, fmt.Errorf("invalid SINK_TYPE %q: want %s or %s", cfg.SinkType, SinkKafka, SinkPostgres)
	}

	return cfg, nil
}

// MinIOConfigured reports whether object storage credentials are present.
func (c *Config) MinIOConfigured() bool {
	return c.MinIOEndpoint != "" && c.MinIOAccessKey != "" && c.MinIOSecretKey != ""
}

// parser records the first malformed variable and returns defaults afterwards.
type parser struct {
	err error
}

func (p *parser) fail(key, value string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %q", key, value)
	}
}

func (p *parser) bool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(key, s)
		return def
	}
	return v
}

func (p *parser) float(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		p.fail(key, s)
		return def
	}
	return v
}

func (p *parser) positiveInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		p.fail(key, s)
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := time.ParseDuration(s)
	if err != nil || v <= 0 {
		p.fail(key, s)
		return def
	}
	return v
}
