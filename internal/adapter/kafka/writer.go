// Package kafka publishes alert events to a Kafka topic. Both significant
// earthquakes and degraded-performance samples land on the same alert topic,
// distinguished by an alert_type header.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/misua/quake-monitor-web/internal/domain"
	"github.com/misua/quake-monitor-web/internal/perf"
)

// AlertWriter produces alert messages to a Kafka topic. It implements
// scheduler.AlertPublisher and perf.Emitter.
type AlertWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewAlertWriter creates a Kafka producer for the alert topic.
func NewAlertWriter(brokers []string, topic string, logger *slog.Logger) *AlertWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &AlertWriter{writer: w, logger: logger}
}

// PublishQuake publishes a newly observed significant earthquake. The message
// key is the event ID, so replays of the same event land on the same
// partition.
func (w *AlertWriter) PublishQuake(ctx context.Context, record domain.Record) error {
	msg, err := quakeMessage(record)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

// Emit publishes a degraded-performance sample.
func (w *AlertWriter) Emit(ctx context.Context, sample perf.Sample) error {
	msg, err := sampleMessage(sample)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

// quakeMessage marshals an earthquake record into an alert message.
func quakeMessage(record domain.Record) (kafkago.Message, error) {
	if record.Earthquake == nil {
		return kafkago.Message{}, fmt.Errorf("publish quake alert: record %q has no earthquake payload", record.SourceID)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize quake alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(record.Earthquake.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_type", Value: []byte("earthquake")},
			{Key: "source", Value: []byte(record.SourceID)},
			{Key: "observed_at", Value: []byte(record.ObservedAt.Format(time.RFC3339))},
		},
	}, nil
}

// sampleMessage marshals a performance sample into an alert message.
func sampleMessage(sample perf.Sample) (kafkago.Message, error) {
	data, err := json.Marshal(sample)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize performance alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(sample.SourceID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_type", Value: []byte("performance")},
			{Key: "classification", Value: []byte(sample.Classification)},
		},
	}, nil
}

func (w *AlertWriter) Close() error {
	return w.writer.Close()
}
