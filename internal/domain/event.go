package domain

import (
	"context"
	"time"
)

// ReadingMessage is the flat JSON structure published by upstream sensor
// gateways, one reading per Kafka message. A nil EpochMS means the gateway
// sent no timestamp; 0 is the Unix epoch.
type ReadingMessage struct {
	Source   string  `json:"source"`
	Category string  `json:"category"`
	Variable string  `json:"variable"`
	Value    float64 `json:"value"`
	Units    string  `json:"units"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	EpochMS  *int64  `json:"epoch_ms,omitempty"`
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}
