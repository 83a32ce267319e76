package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/uv-irradiance-etl/internal/catalog"
	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
	"github.com/couchcryptid/uv-irradiance-etl/internal/format"
	"github.com/couchcryptid/uv-irradiance-etl/internal/input"
	"github.com/couchcryptid/uv-irradiance-etl/internal/observability"
)

var validate = validator.New()

// FileSelection names the files of a single instrument day. BrewerID and
// Date are taken from the UV file name when empty.
type FileSelection struct {
	BrewerID        string `validate:"omitempty,numeric"`
	Date            time.Time
	UV              string `validate:"required"`
	Ozone           string `validate:"required"`
	Calibration     string `validate:"required"`
	AngularResponse string `validate:"required"`
	Parameters      string
}

// RangeSelection selects every day of one brewer between Start and End,
// both inclusive. Local files come from Catalog when set; everything else
// is fetched from the remote providers.
type RangeSelection struct {
	BrewerID string    `validate:"required,numeric"`
	Start    time.Time `validate:"required"`
	End      time.Time `validate:"required,gtefield=Start"`
	Catalog  *catalog.Catalog
}

// Factory turns a selection into jobs, one per section found.
type Factory struct {
	src     input.Sources
	workers int
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewFactory creates a factory. workers bounds how many days are resolved
// at once.
func NewFactory(src input.Sources, workers int, metrics *observability.Metrics, logger *slog.Logger) *Factory {
	if workers < 1 {
		workers = 1
	}
	if src.Logger == nil {
		src.Logger = logger
	}
	if src.Metrics == nil {
		src.Metrics = metrics
	}
	return &Factory{src: src, workers: workers, metrics: metrics, logger: logger}
}

// FromFiles builds the jobs of one day from explicit paths. Unlike the batch
// modes it fails when the day cannot be read.
func (f *Factory) FromFiles(ctx context.Context, sel FileSelection) (Batch, error) {
	if err := validate.Struct(sel); err != nil {
		return Batch{}, fmt.Errorf("invalid file selection: %w", err)
	}
	if sel.BrewerID == "" || sel.Date.IsZero() {
		name, ok := format.ParseFileName(sel.UV)
		if !ok || name.Kind != format.KindUV {
			return Batch{}, fmt.Errorf("cannot derive brewer and date from %q", sel.UV)
		}
		if sel.BrewerID == "" {
			sel.BrewerID = name.BrewerID
		}
		if sel.Date.IsZero() {
			sel.Date = name.Date
		}
	}

	agg := input.New(input.Key{BrewerID: sel.BrewerID, Date: sel.Date}, input.Files{
		UV:              sel.UV,
		Ozone:           sel.Ozone,
		Calibration:     sel.Calibration,
		AngularResponse: sel.AngularResponse,
		Parameters:      sel.Parameters,
	}, f.src)
	sections, err := agg.Sections(ctx)
	if err != nil {
		return Batch{}, err
	}
	if len(sections) == 0 {
		return Batch{}, &domain.DataUnavailableError{Dataset: input.DatasetSections, BrewerID: sel.BrewerID, Date: agg.Key().Date}
	}

	var b Batch
	b.add(agg, len(sections))
	return b, nil
}

// FromDateRange builds the jobs of every day in the range. Days without
// measurements, calibration or angular response are skipped and reported.
func (f *Factory) FromDateRange(ctx context.Context, sel RangeSelection) (Batch, error) {
	if err := validate.Struct(sel); err != nil {
		return Batch{}, fmt.Errorf("invalid range selection: %w", err)
	}
	days := domain.DaysBetween(sel.Start, sel.End)
	work := make([]dayWork, len(days))
	for i, day := range days {
		work[i] = dayWork{key: input.Key{BrewerID: sel.BrewerID, Date: day}}
		if sel.Catalog != nil {
			work[i].files = sel.Catalog.Files(sel.BrewerID, day)
		}
	}
	return f.collect(ctx, work)
}

// FromDirectory builds the jobs of every day under root that has both a UV
// and an ozone file.
func (f *Factory) FromDirectory(ctx context.Context, root string) (Batch, error) {
	cat, err := catalog.Scan(root)
	if err != nil {
		return Batch{}, fmt.Errorf("scan %s: %w", root, err)
	}
	var work []dayWork
	for _, id := range cat.BrewerIDs() {
		for _, day := range cat.Days(id) {
			work = append(work, dayWork{
				key:   input.Key{BrewerID: id, Date: day},
				files: cat.Files(id, day),
			})
		}
	}
	f.logger.Info("directory scanned", "root", root, "brewers", len(cat.BrewerIDs()), "days", len(work))
	return f.collect(ctx, work)
}

type dayWork struct {
	key   input.Key
	files input.Files
}

type dayResult struct {
	agg      *input.Aggregate
	sections int
	outcome  DayOutcome
}

// collect resolves the days concurrently and assembles the batch in input
// order.
func (f *Factory) collect(ctx context.Context, work []dayWork) (Batch, error) {
	results := make([]dayResult, len(work))

	var g errgroup.Group
	g.SetLimit(f.workers)
	for i, w := range work {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			results[i] = f.resolveDay(ctx, w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, err
	}
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}

	var b Batch
	for _, r := range results {
		if r.outcome.Skipped {
			b.Days = append(b.Days, r.outcome)
			continue
		}
		b.add(r.agg, r.sections)
	}
	return b, nil
}

func (f *Factory) resolveDay(ctx context.Context, w dayWork) dayResult {
	agg := input.New(w.key, w.files, f.src)
	outcome := DayOutcome{BrewerID: w.key.BrewerID, Date: agg.Key().Date}

	sections, err := agg.Sections(ctx)
	if err == nil && len(sections) == 0 {
		err = &domain.DataUnavailableError{Dataset: input.DatasetSections, BrewerID: w.key.BrewerID, Date: outcome.Date}
	}
	if err == nil {
		_, err = agg.Calibration(ctx)
	}
	if err == nil {
		_, err = agg.AngularResponse(ctx)
	}
	if err != nil {
		agg.Release()
		outcome.Skipped = true
		outcome.Reason = skipReason(err)
		outcome.Err = err
		f.metrics.DaysSkipped.WithLabelValues(outcome.Reason).Inc()
		f.logger.Warn("day skipped",
			"brewer_id", outcome.BrewerID,
			"date", outcome.Date.Format(time.DateOnly),
			"reason", outcome.Reason,
			"error", err,
		)
		return dayResult{outcome: outcome}
	}
	outcome.Sections = len(sections)
	return dayResult{agg: agg, sections: len(sections), outcome: outcome}
}

func skipReason(err error) string {
	switch {
	case domain.IsUnavailable(err):
		return ReasonUnavailable
	case domain.IsMalformed(err):
		return ReasonMalformed
	default:
		return ReasonError
	}
}

// add appends one job per section of agg.
func (b *Batch) add(agg *input.Aggregate, sections int) {
	key := agg.Key()
	b.aggregates = append(b.aggregates, agg)
	b.Days = append(b.Days, DayOutcome{BrewerID: key.BrewerID, Date: key.Date, Sections: sections})
	for i := range sections {
		b.Jobs = append(b.Jobs, Job{ID: uuid.NewString(), Aggregate: agg, Section: i})
	}
}
