//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/misua/quake-monitor-web/internal/adapter/kafka"
	"github.com/misua/quake-monitor-web/internal/domain"
	"github.com/misua/quake-monitor-web/internal/perf"
)

const testAlertTopic = "test-quake-alerts"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka boots a single-node Kafka container and returns its broker
// address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

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

	require.NoError(t, conn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type alertMessage struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

func readAlert(ctx context.Context, t *testing.T, consumer *kafkago.Reader) alertMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from alert topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return alertMessage{Key: string(msg.Key), Value: msg.Value, Headers: headers}
}

// TestAlertWriterRoundTrip verifies that earthquake and performance alerts
// published through the AlertWriter arrive on the topic with the headers
// consumers key on.
func TestAlertWriterRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testAlertTopic)

	writer := kafkaadapter.NewAlertWriter([]string{broker}, testAlertTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	observedAt := time.Date(2026, time.March, 14, 5, 12, 0, 0, time.UTC)
	record := domain.Record{
		SourceID:   "phivolcs",
		ObservedAt: observedAt,
		Kind:       domain.KindEarthquake,
		Earthquake: &domain.EarthquakeEvent{
			ID:        "phivolcs-deadbeef01234567",
			Magnitude: 6.1,
			DepthKM:   10,
			Epicenter: domain.Epicenter{Lat: 7.07, Lon: 125.61, Name: "009 km S 24 E of Manay (Davao Oriental)"},
		},
	}
	require.NoError(t, writer.PublishQuake(ctx, record))

	sample := perf.Sample{
		Operation:      "fetch",
		SourceID:       "phivolcs",
		DurationMS:     5400,
		Classification: perf.ClassCritical,
	}
	require.NoError(t, writer.Emit(ctx, sample))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testAlertTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	quake := readAlert(ctx, t, consumer)
	assert.Equal(t, "phivolcs-deadbeef01234567", quake.Key)
	assert.Equal(t, "earthquake", quake.Headers["alert_type"])
	assert.Equal(t, "phivolcs", quake.Headers["source"])
	assert.Equal(t, observedAt.Format(time.RFC3339), quake.Headers["observed_at"])

	var got domain.Record
	require.NoError(t, json.Unmarshal(quake.Value, &got))
	require.NotNil(t, got.Earthquake)
	assert.Equal(t, 6.1, got.Earthquake.Magnitude)
	assert.Equal(t, record.Earthquake.Epicenter, got.Earthquake.Epicenter)

	perfAlert := readAlert(ctx, t, consumer)
	assert.Equal(t, "phivolcs", perfAlert.Key)
	assert.Equal(t, "performance", perfAlert.Headers["alert_type"])
	assert.Equal(t, "critical", perfAlert.Headers["classification"])

	var gotSample perf.Sample
	require.NoError(t, json.Unmarshal(perfAlert.Value, &gotSample))
	assert.Equal(t, sample, gotSample)
}
