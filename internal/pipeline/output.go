package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
	"github.com/couchcryptid/uv-irradiance-etl/internal/observability"
)

// ResultSink receives calculated results.
type ResultSink interface {
	Submit(ctx context.Context, result domain.Result) ([]domain.Artifact, error)
}

// NamedSink labels a sink for logs and metrics.
type NamedSink struct {
	Name string
	Sink ResultSink
}

// Delivered is an outcome after its result went through the sinks.
type Delivered struct {
	Outcome
	Artifacts []domain.Artifact
}

// OutputStage hands successful results to every sink on its own worker
// pool, sized independently of the calculation pool.
type OutputStage struct {
	sinks   []NamedSink
	workers int
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewOutputStage creates an output stage with workers goroutines.
func NewOutputStage(sinks []NamedSink, workers int, metrics *observability.Metrics, logger *slog.Logger) *OutputStage {
	return &OutputStage{sinks: sinks, workers: max(workers, 1), metrics: metrics, logger: logger}
}

// Run consumes outcomes until in is closed. Failed outcomes pass through
// untouched. A sink error is logged and counted but never fails the job.
func (s *OutputStage) Run(ctx context.Context, in <-chan Outcome) <-chan Delivered {
	out := make(chan Delivered)
	var wg sync.WaitGroup
	for range s.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for o := range in {
				d := Delivered{Outcome: o}
				if o.Err == nil {
					d.Artifacts = s.submit(ctx, o)
				}
				out <- d
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (s *OutputStage) submit(ctx context.Context, o Outcome) []domain.Artifact {
	var artifacts []domain.Artifact
	for _, ns := range s.sinks {
		a, err := ns.Sink.Submit(ctx, o.Result)
		if err != nil {
			s.metrics.SinkSubmissions.WithLabelValues(ns.Name, "error").Inc()
			s.logger.Error("sink submission failed",
				"sink", ns.Name,
				"job_id", o.Job.ID,
				"brewer_id", o.Result.BrewerID,
				"section", o.Result.Section,
				"error", err,
			)
			continue
		}
		s.metrics.SinkSubmissions.WithLabelValues(ns.Name, "success").Inc()
		artifacts = append(artifacts, a...)
	}
	return artifacts
}
