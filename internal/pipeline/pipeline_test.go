package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/uv-irradiance-etl/internal/calc"
	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
	"github.com/couchcryptid/uv-irradiance-etl/internal/observability"
	"github.com/couchcryptid/uv-irradiance-etl/internal/solver"
)

// flatSolver answers every request with a constant clear-sky irradiance.
type flatSolver struct{}

func (flatSolver) Solve(_ context.Context, in solver.Input) (solver.Irradiance, error) {
	var out solver.Irradiance
	for range in.Wavelengths {
		out.SZA = append(out.SZA, 30)
		out.Edir = append(out.Edir, 0.7)
		out.Edn = append(out.Edn, 0.3)
		out.Eglo = append(out.Eglo, 1)
	}
	return out, nil
}

func TestPipeline_Process(t *testing.T) {
	root := t.TempDir()
	writeDay(t, filepath.Join(root, "033"), "033", day1)
	writeDay(t, filepath.Join(root, "033"), "033", day2)

	f, m := newTestFactory(t)
	b, err := f.FromDirectory(context.Background(), root)
	require.NoError(t, err)

	sink := &recordingSink{}
	failing := &recordingSink{err: errors.New("disk full")}
	p := New(
		NewScheduler(calc.NewCalculator(flatSolver{}, nil, testLogger()), 3, m, testLogger()),
		NewOutputStage([]NamedSink{{Name: "memory", Sink: sink}, {Name: "archive", Sink: failing}}, 2, m, testLogger()),
		testLogger(), m,
	)
	require.Error(t, p.CheckReadiness(context.Background()))

	report := p.Process(context.Background(), b)

	assert.Equal(t, 6, report.Succeeded)
	assert.Zero(t, report.Failed)
	require.Len(t, report.Sections, 6)
	for i, sr := range report.Sections {
		assert.Equal(t, i%3, sr.Section, "sections are reported in order")
		assert.Equal(t, calc.StageDone, sr.Stage)
		assert.NotEmpty(t, sr.Correction)
		require.Len(t, sr.Artifacts, 1)
		assert.Equal(t, sr.JobID, sr.Artifacts[0].Location)
	}
	assert.Equal(t, day1, report.Sections[0].Date)
	assert.Equal(t, day2, report.Sections[5].Date)
	assert.Len(t, sink.results, 6)
	assert.Len(t, report.Days, 2)

	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PipelineRunning))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.SinkSubmissions.WithLabelValues("archive", "error")))
}

func TestPipeline_SolverFailureIsolated(t *testing.T) {
	c := &fakeCalculator{
		panicOn: -1,
		fail:    map[int]error{2: &calc.StageError{Stage: calc.StageSolving, Err: &domain.SolverError{Reason: "timed out"}}},
	}
	m := observability.NewMetricsForTesting()
	p := New(NewScheduler(c, 4, m, testLogger()), NewOutputStage(nil, 1, m, testLogger()), testLogger(), m)

	report := p.Process(context.Background(), Batch{Jobs: makeJobs(5)})

	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	failed := report.Sections[2]
	assert.Equal(t, calc.StageSolving, failed.Stage)
	var se *domain.SolverError
	assert.ErrorAs(t, failed.Err, &se)
	require.NoError(t, p.CheckReadiness(context.Background()), "a batch with failures still completes")

	status := p.Status()
	assert.Equal(t, 1, status.Batches)
	assert.Equal(t, 4, status.Succeeded)
	assert.Equal(t, 1, status.Failed)
	assert.False(t, status.LastBatchAt.IsZero())
}
