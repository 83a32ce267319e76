// Package pipeline turns selections of instrument days into calculation
// jobs, runs them on a bounded worker pool and hands results to the sinks.
package pipeline

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/uv-irradiance-etl/internal/calc"
	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
	"github.com/couchcryptid/uv-irradiance-etl/internal/observability"
)

// SectionReport is the end state of one job.
type SectionReport struct {
	JobID      string
	BrewerID   string
	Date       time.Time
	Section    int
	Stage      calc.Stage
	Err        error
	Correction domain.CorrectionModel
	Warnings   []string
	Artifacts  []domain.Artifact
}

// Report summarizes a processed batch.
type Report struct {
	Sections  []SectionReport
	Days      []DayOutcome
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Pipeline runs batches through the calculation pool and the output stage.
type Pipeline struct {
	scheduler *Scheduler
	output    *OutputStage
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool

	mu     sync.Mutex
	status Status
}

// Status summarizes the batches processed so far.
type Status struct {
	Batches     int       `json:"batches"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	SkippedDays int       `json:"skipped_days"`
	LastBatchAt time.Time `json:"last_batch_at,omitzero"`
}

// Status returns the running totals across batches.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// New creates a Pipeline from its two stages.
func New(s *Scheduler, o *OutputStage, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{scheduler: s, output: o, logger: logger, metrics: metrics}
}

// CheckReadiness returns nil once the pipeline has completed a batch.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a batch yet")
	}
	return nil
}

// Process runs every job of b and waits for all of them. A failed job never
// affects the others. The batch's cached datasets are released on return.
func (p *Pipeline) Process(ctx context.Context, b Batch) Report {
	defer b.release()

	start := domain.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	p.logger.Info("batch started", "jobs", len(b.Jobs), "days", len(b.Days), "workers", p.scheduler.Size())

	report := Report{Days: b.Days}
	for d := range p.output.Run(ctx, p.scheduler.Run(ctx, b.Jobs)) {
		key := d.Job.Key()
		sr := SectionReport{
			JobID:     d.Job.ID,
			BrewerID:  key.BrewerID,
			Date:      key.Date,
			Section:   d.Job.Section,
			Stage:     d.Stage,
			Err:       d.Err,
			Artifacts: d.Artifacts,
		}
		if d.Err == nil {
			sr.Correction = d.Result.Correction
			sr.Warnings = d.Result.Warnings
			report.Succeeded++
		} else {
			report.Failed++
		}
		report.Sections = append(report.Sections, sr)
	}
	slices.SortFunc(report.Sections, func(a, b SectionReport) int {
		return cmp.Or(
			cmp.Compare(a.BrewerID, b.BrewerID),
			a.Date.Compare(b.Date),
			cmp.Compare(a.Section, b.Section),
		)
	})

	report.Duration = domain.Since(start)
	p.metrics.BatchDuration.Observe(report.Duration.Seconds())
	p.mu.Lock()
	p.status.Batches++
	p.status.Succeeded += report.Succeeded
	p.status.Failed += report.Failed
	p.status.SkippedDays += len(b.Skipped())
	p.status.LastBatchAt = domain.Now()
	p.mu.Unlock()
	p.ready.Store(true)
	p.logger.Info("batch finished",
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped_days", len(b.Skipped()),
		"duration", report.Duration,
	)
	return report
}
