package pipeline

import (
	"time"

	"github.com/couchcryptid/uv-irradiance-etl/internal/input"
)

// Job is one section of one instrument day. Jobs of the same day share the
// day's aggregate.
type Job struct {
	ID        string
	Aggregate *input.Aggregate
	Section   int
}

// Key returns the instrument day of the job.
func (j Job) Key() input.Key { return j.Aggregate.Key() }

// Day outcome reasons.
const (
	ReasonUnavailable = "unavailable"
	ReasonMalformed   = "malformed"
	ReasonError       = "error"
)

// DayOutcome records what a factory did with one instrument day.
type DayOutcome struct {
	BrewerID string
	Date     time.Time
	Sections int
	Skipped  bool
	Reason   string
	Err      error
}

// Batch is the work produced by one factory call.
type Batch struct {
	Jobs []Job
	Days []DayOutcome

	aggregates []*input.Aggregate
}

// Skipped returns the days that produced no jobs.
func (b Batch) Skipped() []DayOutcome {
	var out []DayOutcome
	for _, d := range b.Days {
		if d.Skipped {
			out = append(out, d)
		}
	}
	return out
}

// release drops the datasets cached by every aggregate of the batch.
func (b Batch) release() {
	for _, agg := range b.aggregates {
		agg.Release()
	}
}
