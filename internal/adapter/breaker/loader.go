// Package breaker wraps a sink in a circuit breaker so a failing sink is
// probed at a bounded rate instead of on every batch.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/geo-enrichment-etl/internal/domain"
	"github.com/couchcryptid/geo-enrichment-etl/internal/observability"
	"github.com/sony/gobreaker/v2"
)

// ErrSinkUnavailable is returned while the breaker is open or half-open and
// saturated.
var ErrSinkUnavailable = errors.New("sink unavailable: circuit open")

// BatchLoader is the sink being protected.
type BatchLoader interface {
	LoadBatch(ctx context.Context, records []domain.Record) error
}

// Settings tunes the breaker.
type Settings struct {
	Name string
	// Timeout is how long the breaker stays open before a half-open probe.
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker. Defaults to 5.
	ConsecutiveFailures uint32
}

// Loader implements pipeline.BatchLoader with circuit breaking.
type Loader struct {
	next    BatchLoader
	cb      *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New wraps next with a breaker configured by s.
func New(next BatchLoader, s Settings, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	l := &Loader{next: next, logger: logger, metrics: metrics}

	l.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		OnStateChange: l.onStateChange,
	})
	return l
}

// LoadBatch forwards to the wrapped sink unless the breaker is open.
func (l *Loader) LoadBatch(ctx context.Context, records []domain.Record) error {
	_, err := l.cb.Execute(func() (struct{}, error) {
		return struct{}{}, l.next.LoadBatch(ctx, records)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrSinkUnavailable, l.cb.Name())
	}
	return err
}

// State reports the current breaker state.
func (l *Loader) State() gobreaker.State {
	return l.cb.State()
}

func (l *Loader) onStateChange(name string, from, to gobreaker.State) {
	l.logger.Warn("sink circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
	l.metrics.SinkBreakerState.Set(stateValue(to))
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
