package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/geo-enrichment-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("sensor1"),
		Value:     []byte(`{"source":"sensor1"}`),
		Topic:     "sensor-readings",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "gateway", Value: []byte("gw-7")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("sensor1"), raw.Key)
	assert.JSONEq(t, `{"source":"sensor1"}`, string(raw.Value))
	assert.Equal(t, "sensor-readings", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "gw-7", raw.Headers["gateway"])
	assert.Nil(t, raw.Commit)
}

func testRecord() domain.Record {
	return domain.Record{
		Measurement: domain.MeasurementDataPoints,
		Tags:        map[string]string{"source": "sensor1", "variable": "temperature", "country": "Japan"},
		Fields:      map[string]any{"value": 25.0, "cell_res_0": int64(7)},
		Time:        time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	rec := testRecord()

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("sensor1|temperature"), msg.Key)
	assert.JSONEq(t, `{
		"measurement": "data_points",
		"tags": {"source": "sensor1", "variable": "temperature", "country": "Japan"},
		"fields": {"value": 25, "cell_res_0": 7},
		"time": "2024-04-26T15:10:00Z"
	}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "measurement", msg.Headers[0].Key)
	assert.Equal(t, []byte("data_points"), msg.Headers[0].Value)
	assert.Equal(t, "recorded_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-04-26T15:10:00Z"), msg.Headers[1].Value)
}

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestWriter_LoadBatch(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw, logger: discardLogger()}

	bad := testRecord()
	bad.Fields = map[string]any{"value": math.NaN()}

	require.NoError(t, w.LoadBatch(context.Background(), []domain.Record{testRecord(), bad, testRecord()}))
	assert.Len(t, fw.msgs, 2)

	var body domain.Record
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &body))
	assert.Equal(t, "Japan", body.Tags["country"])
}

func TestWriter_LoadBatch_Empty(t *testing.T) {
	fw := &fakeWriter{err: errors.New("must not be called")}
	w := &Writer{writer: fw, logger: discardLogger()}
	assert.NoError(t, w.LoadBatch(context.Background(), nil))
}

func TestWriter_LoadBatch_WrapsError(t *testing.T) {
	sentinel := errors.New("broker unavailable")
	w := &Writer{writer: &fakeWriter{err: sentinel}, logger: discardLogger()}

	err := w.LoadBatch(context.Background(), []domain.Record{testRecord()})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
}

type fakeReader struct {
	msgs      chan kafkago.Message
	committed []int64
}

func newFakeReader(msgs ...kafkago.Message) *fakeReader {
	ch := make(chan kafkago.Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	return &fakeReader{msgs: ch}
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	select {
	case m := <-f.msgs:
		return m, nil
	case <-ctx.Done():
		return kafkago.Message{}, ctx.Err()
	}
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func TestReader_ExtractBatch_StopsAtBatchSize(t *testing.T) {
	fr := newFakeReader(kafkago.Message{Offset: 1}, kafkago.Message{Offset: 2}, kafkago.Message{Offset: 3})
	r := &Reader{reader: fr, logger: discardLogger(), flushInterval: time.Second}

	batch, err := r.ExtractBatch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(1), batch[0].Offset)
	assert.Equal(t, int64(2), batch[1].Offset)

	require.NoError(t, batch[1].Commit(context.Background()))
	assert.Equal(t, []int64{2}, fr.committed)
}

func TestReader_ExtractBatch_FlushesPartialBatch(t *testing.T) {
	fr := newFakeReader(kafkago.Message{Offset: 9})
	r := &Reader{reader: fr, logger: discardLogger(), flushInterval: 20 * time.Millisecond}

	start := time.Now()
	batch, err := r.ExtractBatch(context.Background(), 50)
	require.NoError(t, err)
	assert.Len(t, batch, 1)
	assert.Less(t, time.Since(start), time.Second)
}

func TestReader_ExtractBatch_CancelledWhileWaiting(t *testing.T) {
	r := &Reader{reader: newFakeReader(), logger: discardLogger(), flushInterval: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.ExtractBatch(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
}
