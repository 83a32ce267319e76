package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/uv-irradiance-etl/internal/config"
	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
)

// SinkName labels this sink in metrics and artifacts.
const SinkName = "kafka"

// messageWriter is the subset of *kafkago.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// ResultWriter publishes calculation results to a Kafka topic, one JSON
// message per section. It implements pipeline.ResultSink.
type ResultWriter struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// batchTimeout bounds how long a synchronous Submit waits for a batch to
// fill. Each call carries one message, so the library default of 1s would
// delay every result.
const batchTimeout = 10 * time.Millisecond

// NewResultWriter creates a Kafka producer for the configured result topic.
func NewResultWriter(cfg *config.Config, logger *slog.Logger) *ResultWriter {
	return &ResultWriter{writer: newProducer(cfg), topic: cfg.KafkaResultTopic, logger: logger}
}

func newProducer(cfg *config.Config) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaResultTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: batchTimeout,
	}
}

// Submit serializes and publishes one result. Messages are keyed by brewer
// and day so a day's sections land on one partition.
func (w *ResultWriter) Submit(ctx context.Context, result domain.Result) ([]domain.Artifact, error) {
	msg, err := serializeToMessage(result)
	if err != nil {
		return nil, err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return nil, fmt.Errorf("publish result %s: %w", result.JobID, err)
	}
	w.logger.Debug("result published", "job_id", result.JobID, "topic", w.topic)
	return []domain.Artifact{{Sink: SinkName, Location: w.topic + "/" + string(msg.Key)}}, nil
}

// Close flushes pending messages and closes the producer.
func (w *ResultWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Result into a Kafka message.
func serializeToMessage(result domain.Result) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(messageKey(result)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "brewer_id", Value: []byte(result.BrewerID)},
			{Key: "section", Value: []byte(strconv.Itoa(result.Section))},
			{Key: "correction", Value: []byte(result.Correction)},
			{Key: "processed_at", Value: []byte(result.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}

func messageKey(result domain.Result) string {
	return result.BrewerID + "_" + result.Date.Format("20060102")
}
