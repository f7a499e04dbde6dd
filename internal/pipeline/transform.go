package pipeline

import (
	"context"

	"github.com/couchcryptid/geo-enrichment-etl/internal/domain"
)

// ReadingTransformer implements Transformer: it decodes a raw message into a
// reading, runs it through the Processor and flattens the resulting points
// into sink records.
type ReadingTransformer struct {
	processor *Processor
}

// NewTransformer creates a ReadingTransformer around p.
func NewTransformer(p *Processor) *ReadingTransformer {
	return &ReadingTransformer{processor: p}
}

// Transform returns the records for one message. A rejected reading yields no
// records and no error; only undecodable messages return an error.
func (t *ReadingTransformer) Transform(ctx context.Context, raw domain.RawEvent) ([]domain.Record, error) {
	reading, err := domain.DecodeReading(raw)
	if err != nil {
		return nil, err
	}

	points := t.processor.Process(ctx, reading)
	return domain.BuildRecords(points), nil
}
