package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/geo-enrichment-etl/internal/config"
	"github.com/couchcryptid/geo-enrichment-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the adapter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces enriched records to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes records in a single WriteMessages call.
// Keys are source|variable so a series stays on one partition. Records that
// cannot be encoded (e.g. non-finite values with validation off) are dropped.
func (w *Writer) LoadBatch(ctx context.Context, records []domain.Record) error {
	msgs := make([]kafkago.Message, 0, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			w.logger.Warn("dropping unencodable record", "error", err, "key", records[i].Key())
			continue
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d records: %w", len(msgs), err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Record into a Kafka message.
func serializeToMessage(rec domain.Record) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s record: %w", rec.Measurement, err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "measurement", Value: []byte(rec.Measurement)},
			{Key: "recorded_at", Value: []byte(rec.Time.Format(time.RFC3339Nano))},
		},
	}, nil
}
