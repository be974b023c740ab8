//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/adapter/kafka"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/config"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/match"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/observability"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/pipeline"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/resolver"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/safeparse"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/severity"
)

const (
	testAlertsTopic  = "test-alerts"
	testMatchesTopic = "test-matches"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

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

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

func readOne(ctx context.Context, t *testing.T, broker, topic string) kafkago.Message {
	t.Helper()
	r := kafkago.NewReader(kafkago.ReaderConfig{Brokers: []string{broker}, Topic: topic, Partition: 0, MaxWait: time.Second})
	t.Cleanup(func() { _ = r.Close() })

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	msg, err := r.ReadMessage(readCtx)
	require.NoError(t, err, "read from %s", topic)
	return msg
}

// TestPollPublishesToKafka runs one poll cycle with the Kafka publisher and
// reads the alert and match messages back.
func TestPollPublishesToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testAlertsTopic)
	createTopic(t, broker, testMatchesTopic)

	cfg := &config.Config{
		KafkaBrokers:      []string{broker},
		KafkaAlertsTopic:  testAlertsTopic,
		KafkaMatchesTopic: testMatchesTopic,
	}
	publisher := kafka.NewPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	area := geo.Box(-123, 48, -122, 49)
	source := pipeline.FuncSource{
		SourceName:   "nws",
		SourceAgency: domain.AgencyNWS,
		FetchFunc: func(context.Context) (safeparse.Batch[domain.Alert], error) {
			return safeparse.Batch[domain.Alert]{Items: []domain.Alert{{
				ID:           "urn:oid:integration-1",
				Agency:       domain.AgencyNWS,
				Jurisdiction: domain.JurisdictionUS,
				Event:        "Tsunami Warning",
				Status:       "Actual",
				Geometry:     &area,
			}}}, nil
		},
	}
	lummi := geo.Box(-122.8, 48.7, -122.5, 48.9)
	matcher := match.NewMatcher([]domain.Boundary{{ID: "4310", Name: "Lummi", Geometry: &lummi}})

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New([]pipeline.Source{source}, pipeline.NewTransformer(resolver.New(nil), discardLogger(), metrics),
		matcher, []pipeline.Publisher{publisher}, discardLogger(), metrics, pipeline.Options{})

	snap, err := p.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Alerts, 1)

	alertMsg := readOne(ctx, t, broker, testAlertsTopic)
	assert.Equal(t, "urn:oid:integration-1", string(alertMsg.Key))
	var alert domain.Alert
	require.NoError(t, json.Unmarshal(alertMsg.Value, &alert))
	assert.Equal(t, severity.Critical, alert.Level)

	matchMsg := readOne(ctx, t, broker, testMatchesTopic)
	assert.Equal(t, "4310", string(matchMsg.Key))
	var m struct {
		Level severity.Level `json:"level"`
	}
	require.NoError(t, json.Unmarshal(matchMsg.Value, &m))
	assert.Equal(t, severity.Critical, m.Level)
}
