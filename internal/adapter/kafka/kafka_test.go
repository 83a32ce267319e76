package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/uv-irradiance-etl/internal/config"
	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testResult() domain.Result {
	return domain.Result{
		JobID:       "job-1",
		BrewerID:    "033",
		Date:        time.Date(2020, time.May, 2, 0, 0, 0, 0, time.UTC),
		Section:     2,
		Correction:  domain.CorrectionClearSky,
		Spectrum:    domain.Spectrum{Wavelengths: []float64{290, 290.5}, Irradiance: []float64{0.01, 0.02}},
		ProcessedAt: time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	result := testResult()

	msg, err := serializeToMessage(result)
	require.NoError(t, err)

	assert.Equal(t, []byte("033_20200502"), msg.Key)
	var decoded domain.Result
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, result, decoded)
	assert.Contains(t, string(msg.Value), `"correction":"clear_sky"`)

	require.Len(t, msg.Headers, 4)
	assert.Equal(t, "brewer_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("033"), msg.Headers[0].Value)
	assert.Equal(t, []byte("2"), msg.Headers[1].Value)
	assert.Equal(t, []byte("clear_sky"), msg.Headers[2].Value)
	assert.Equal(t, "processed_at", msg.Headers[3].Key)
	assert.Equal(t, []byte("2026-01-10T12:00:00Z"), msg.Headers[3].Value)
}

func TestResultWriter_Submit(t *testing.T) {
	fw := &fakeWriter{}
	w := &ResultWriter{writer: fw, topic: "uv-irradiance-results", logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	artifacts, err := w.Submit(context.Background(), testResult())
	require.NoError(t, err)
	require.Len(t, fw.msgs, 1)
	assert.Equal(t, []domain.Artifact{{Sink: SinkName, Location: "uv-irradiance-results/033_20200502"}}, artifacts)

	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}

func TestResultWriter_SubmitError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("leader not available")}
	w := &ResultWriter{writer: fw, topic: "t", logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	_, err := w.Submit(context.Background(), testResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job-1")
}

func TestNewResultWriter_ProducerConfig(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"broker-1:9092", "broker-2:9092"}, KafkaResultTopic: "uv.irradiance"}
	w := NewResultWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	p, ok := w.writer.(*kafkago.Writer)
	require.True(t, ok)
	assert.Equal(t, "uv.irradiance", p.Topic)
	assert.Equal(t, kafkago.RequireAll, p.RequiredAcks)
	assert.IsType(t, &kafkago.Hash{}, p.Balancer)
	assert.Equal(t, 10*time.Millisecond, p.BatchTimeout)
	assert.Equal(t, "uv.irradiance", w.topic)
}
