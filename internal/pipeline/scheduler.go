package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/uv-irradiance-etl/internal/calc"
	"github.com/couchcryptid/uv-irradiance-etl/internal/config"
	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
	"github.com/couchcryptid/uv-irradiance-etl/internal/input"
	"github.com/couchcryptid/uv-irradiance-etl/internal/observability"
)

// Calculator computes the result of one section of an aggregate.
type Calculator interface {
	Calculate(ctx context.Context, agg *input.Aggregate, section int) (domain.Result, error)
}

// Outcome is the end state of one job. Err is nil on success.
type Outcome struct {
	Job      Job
	Result   domain.Result
	Stage    calc.Stage
	Err      error
	Duration time.Duration
}

var errCanceled = errors.New("job canceled before it started")

// PoolSize is the default calculation pool size: min(cores+4, 20).
func PoolSize() int {
	return config.DefaultWorkers()
}

// Scheduler runs jobs on a fixed pool of workers.
type Scheduler struct {
	calc    Calculator
	size    int
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewScheduler creates a scheduler with size workers. A size of zero or less
// uses PoolSize, and larger sizes are capped at it.
func NewScheduler(c Calculator, size int, metrics *observability.Metrics, logger *slog.Logger) *Scheduler {
	if size <= 0 || size > PoolSize() {
		size = PoolSize()
	}
	return &Scheduler{calc: c, size: size, metrics: metrics, logger: logger}
}

// Size returns the number of workers.
func (s *Scheduler) Size() int { return s.size }

// Run starts the pool and returns a channel carrying one outcome per job in
// completion order. The channel is closed when every job has an outcome.
// Jobs not yet started when ctx is canceled fail without running.
func (s *Scheduler) Run(ctx context.Context, jobs []Job) <-chan Outcome {
	queue := make(chan Job, len(jobs))
	for _, j := range jobs {
		queue <- j
	}
	close(queue)

	out := make(chan Outcome, len(jobs))
	var wg sync.WaitGroup
	for range min(s.size, max(len(jobs), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				out <- s.execute(ctx, job)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (s *Scheduler) execute(ctx context.Context, job Job) (o Outcome) {
	o = Outcome{Job: job, Stage: calc.StagePending}
	if ctx.Err() != nil {
		o.Stage = calc.StageFailed
		o.Err = errCanceled
		s.metrics.JobsFailed.WithLabelValues(string(calc.StagePending)).Inc()
		return o
	}

	s.metrics.JobsInFlight.Inc()
	start := domain.Now()
	defer func() {
		if r := recover(); r != nil {
			o.Stage = calc.StageFailed
			o.Err = fmt.Errorf("calculation panicked: %v", r)
		}
		o.Duration = domain.Since(start)
		s.metrics.JobsInFlight.Dec()
		s.metrics.JobDuration.Observe(o.Duration.Seconds())
		s.record(o)
	}()

	result, err := s.calc.Calculate(ctx, job.Aggregate, job.Section)
	if err != nil {
		o.Err = err
		o.Stage = calc.StageFailed
		var se *calc.StageError
		if errors.As(err, &se) {
			o.Stage = se.Stage
		}
		return o
	}
	result.JobID = job.ID
	o.Result = result
	o.Stage = calc.StageDone
	return o
}

func (s *Scheduler) record(o Outcome) {
	key := o.Job.Key()
	if o.Err == nil {
		s.metrics.JobsCompleted.Inc()
		return
	}
	s.metrics.JobsFailed.WithLabelValues(string(o.Stage)).Inc()
	s.logger.Warn("job failed",
		"job_id", o.Job.ID,
		"brewer_id", key.BrewerID,
		"date", key.Date.Format(time.DateOnly),
		"section", o.Job.Section,
		"stage", o.Stage,
		"error", o.Err,
	)
}
