//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/couchcryptid/geo-enrichment-etl/internal/domain"
	"github.com/couchcryptid/geo-enrichment-etl/internal/geo"
	"github.com/couchcryptid/geo-enrichment-etl/internal/observability"
	"github.com/couchcryptid/geo-enrichment-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const tokyoGazetteer = "1850147\tTokyo\tTokyo\tTokyo,Tokio\t35.6895\t139.69171\tP\tPPLC\tJP\t\t40\t\t\t\t8336599\t\t44\tAsia/Tokyo\t2024-01-01\n"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("geo-etl-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// newTransformer builds the production transformer over a one-place index.
func newTransformer(t *testing.T) *pipeline.ReadingTransformer {
	t.Helper()

	idx, err := geo.BuildFromReader(strings.NewReader(tokyoGazetteer),
		geo.WithLogger(discardLogger()),
		geo.WithCountryNames(map[string]string{"JP": "Japan"}),
	)
	require.NoError(t, err)

	processor := pipeline.NewProcessor(pipeline.Options{
		Validation:     true,
		Enrichment:     true,
		Aggregation:    true,
		QualityScoring: false,
	}, domain.NewValidator(domain.DefaultValidationRules()), domain.NewEnricher(idx), nil,
		discardLogger(), observability.NewMetricsForTesting())
	return pipeline.NewTransformer(processor)
}
