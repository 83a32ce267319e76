// Package input resolves the datasets of one instrument day from local files,
// the instrument network and configured defaults.
package input

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/uv-irradiance-etl/internal/config"
	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
	"github.com/couchcryptid/uv-irradiance-etl/internal/format"
	"github.com/couchcryptid/uv-irradiance-etl/internal/observability"
)

// Dataset names used in DataUnavailableError and logs.
const (
	DatasetSections        = "uv sections"
	DatasetOzone           = "ozone"
	DatasetCalibration     = "calibration"
	DatasetAngularResponse = "angular response"
	DatasetParameters      = "parameters"
)

// Key identifies an instrument day.
type Key struct {
	BrewerID string
	Date     time.Time
}

// Files lists the local files of an instrument day. Empty paths are skipped.
type Files struct {
	UV              string
	Ozone           string
	Calibration     string
	AngularResponse string
	Parameters      string
}

// Sources carries the shared collaborators of every aggregate.
type Sources struct {
	Network  NetworkProvider // nil disables the instrument network
	Cloud    CloudProvider   // nil disables the cloud cover service
	Settings config.Settings
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// OzoneData is the resolved ozone of a day with its origin.
type OzoneData struct {
	domain.Ozone
	Source string
}

// ParameterData is the parameter row of a day with its origin.
type ParameterData struct {
	Row    domain.ParameterRow
	Source string
}

// Cloud is the resolved cloud state of a day. Either Fixed or Series holds
// the value; neither is set when Source is domain.SourceNone.
type Cloud struct {
	Source string
	Fixed  *float64
	Series domain.CloudCover
}

// At returns the cloud fraction at minutes since midnight.
func (c Cloud) At(minutes float64) (float64, bool) {
	if c.Fixed != nil {
		return *c.Fixed, true
	}
	return c.Series.At(minutes)
}

// Aggregate owns every dataset of one instrument day. Each accessor resolves
// at most once per instance, no matter how many jobs call it concurrently,
// and a failure is cached for every later caller.
type Aggregate struct {
	key    Key
	files  Files
	src    Sources
	logger *slog.Logger

	sections    lazy[[]domain.Section]
	ozone       lazy[OzoneData]
	calibration lazy[domain.Calibration]
	arf         lazy[domain.AngularResponse]
	parameters  lazy[ParameterData]
	cloud       lazy[Cloud]

	mu         sync.Mutex
	warnings   []string
	brewerType string // from an ozone source without summaries
}

// New creates the aggregate for key. Nothing is read until an accessor is
// called.
func New(key Key, files Files, src Sources) *Aggregate {
	if src.Logger == nil {
		src.Logger = slog.Default()
	}
	key.Date = domain.TruncateDay(key.Date)
	return &Aggregate{
		key:   key,
		files: files,
		src:   src,
		logger: src.Logger.With(
			"brewer_id", key.BrewerID,
			"date", key.Date.Format(time.DateOnly),
		),
	}
}

// Key returns the instrument day of the aggregate.
func (a *Aggregate) Key() Key { return a.key }

// Files returns the local files the aggregate was built from.
func (a *Aggregate) Files() Files { return a.files }

// Settings returns the calculation settings in effect.
func (a *Aggregate) Settings() config.Settings { return a.src.Settings }

// Sections returns the scans of the day.
func (a *Aggregate) Sections(ctx context.Context) ([]domain.Section, error) {
	return a.sections.get(func() ([]domain.Section, error) {
		v, _, err := resolve(ctx, a, DatasetSections, []source[[]domain.Section]{
			fileSource(a, format.KindUV, a.files.UV, format.ReadUVFile),
			networkSource(a, func(ctx context.Context, n NetworkProvider) ([]domain.Section, error) {
				return n.Sections(ctx, a.key.BrewerID, a.key.Date)
			}),
		})
		return v, err
	})
}

// Ozone returns the ozone summaries of the day. When neither the B file nor
// the network has any, the configured default ozone is used with a warning.
func (a *Aggregate) Ozone(ctx context.Context) (OzoneData, error) {
	return a.ozone.get(func() (OzoneData, error) {
		v, src, err := resolve(ctx, a, DatasetOzone, []source[domain.Ozone]{
			withSummaries(a, fileSource(a, format.KindOzone, a.files.Ozone, format.ReadOzoneFile)),
			withSummaries(a, networkSource(a, func(ctx context.Context, n NetworkProvider) (domain.Ozone, error) {
				return n.Ozone(ctx, a.key.BrewerID, a.key.Date)
			})),
			{name: domain.SourceDefault, fetch: func(context.Context) (domain.Ozone, error) {
				if a.src.Settings.DefaultOzone <= 0 {
					return domain.Ozone{}, domain.ErrUnavailable
				}
				a.Warn(fmt.Sprintf("no ozone measurement found, using default of %g DU", a.src.Settings.DefaultOzone))
				return domain.Ozone{Times: []float64{0}, Values: []float64{a.src.Settings.DefaultOzone}}, nil
			}},
		})
		if err == nil && v.BrewerType == "" {
			a.mu.Lock()
			v.BrewerType = a.brewerType
			a.mu.Unlock()
		}
		return OzoneData{Ozone: v, Source: src}, err
	})
}

// Calibration returns the spectral response of the instrument.
func (a *Aggregate) Calibration(ctx context.Context) (domain.Calibration, error) {
	return a.calibration.get(func() (domain.Calibration, error) {
		v, _, err := resolve(ctx, a, DatasetCalibration, []source[domain.Calibration]{
			fileSource(a, format.KindCalibration, a.files.Calibration, format.ReadCalibrationFile),
			networkSource(a, func(ctx context.Context, n NetworkProvider) (domain.Calibration, error) {
				return n.Calibration(ctx, a.key.BrewerID, a.key.Date)
			}),
		})
		return v, err
	})
}

// AngularResponse returns the instrument's angular response, read from the
// configured column of the ARF file.
func (a *Aggregate) AngularResponse(ctx context.Context) (domain.AngularResponse, error) {
	return a.arf.get(func() (domain.AngularResponse, error) {
		column := a.src.Settings.ARFColumn
		v, _, err := resolve(ctx, a, DatasetAngularResponse, []source[domain.AngularResponse]{
			fileSource(a, format.KindARF, a.files.AngularResponse, func(path string) (domain.AngularResponse, error) {
				return format.ReadAngularResponseFile(path, column)
			}),
		})
		return v, err
	})
}

// Parameters returns the parameter row for the day. Without a parameter file
// the settings defaults are used with a warning.
func (a *Aggregate) Parameters(ctx context.Context) (ParameterData, error) {
	return a.parameters.get(func() (ParameterData, error) {
		day := domain.DayOfYear(a.key.Date)
		v, src, err := resolve(ctx, a, DatasetParameters, []source[domain.ParameterRow]{
			{name: domain.SourceParameter, fetch: func(context.Context) (domain.ParameterRow, error) {
				params, err := readLocal(a, format.KindParameters, a.files.Parameters, format.ReadParameterFile)
				if err != nil {
					return domain.ParameterRow{}, err
				}
				row, ok := params.Resolve(day)
				if !ok {
					return domain.ParameterRow{}, domain.ErrUnavailable
				}
				return row, nil
			}},
			{name: domain.SourceDefault, fetch: func(context.Context) (domain.ParameterRow, error) {
				s := a.src.Settings
				a.Warn(fmt.Sprintf("no parameter file entry, using defaults albedo=%g alpha=%g beta=%g",
					s.DefaultAlbedo, s.DefaultAlpha, s.DefaultBeta))
				return domain.ParameterRow{Day: day, Albedo: s.DefaultAlbedo, Alpha: s.DefaultAlpha, Beta: s.DefaultBeta}, nil
			}},
		})
		return ParameterData{Row: v, Source: src}, err
	})
}

// CloudCover returns the cloud state of the day: the parameter file's exact
// day entry, then the cloud cover service, then the configured default. When
// none applies the state has source domain.SourceNone. It is never
// unavailable.
func (a *Aggregate) CloudCover(ctx context.Context) (Cloud, error) {
	return a.cloud.get(func() (Cloud, error) {
		params, err := a.Parameters(ctx)
		if err != nil {
			return Cloud{}, err
		}
		v, src, err := resolve(ctx, a, "cloud cover", []source[Cloud]{
			{name: domain.SourceParameter, fetch: func(context.Context) (Cloud, error) {
				if params.Source != domain.SourceParameter || params.Row.CloudCover == nil {
					return Cloud{}, domain.ErrUnavailable
				}
				return Cloud{Fixed: params.Row.CloudCover}, nil
			}},
			{name: domain.SourceService, fetch: func(ctx context.Context) (Cloud, error) {
				if a.src.Cloud == nil {
					return Cloud{}, domain.ErrUnavailable
				}
				sections, err := a.Sections(ctx)
				if err != nil || len(sections) == 0 {
					return Cloud{}, domain.ErrUnavailable
				}
				cc, err := a.src.Cloud.CloudCover(ctx, a.key.Date, sections[0].Header.Position)
				if err != nil {
					return Cloud{}, err
				}
				if len(cc.Values) == 0 {
					return Cloud{}, domain.ErrUnavailable
				}
				for _, note := range cc.Notes {
					a.Warn(note)
				}
				return Cloud{Series: cc}, nil
			}},
			{name: domain.SourceDefault, fetch: func(context.Context) (Cloud, error) {
				if a.src.Settings.DefaultCloudCover == nil {
					return Cloud{}, domain.ErrUnavailable
				}
				return Cloud{Fixed: a.src.Settings.DefaultCloudCover}, nil
			}},
		})
		if domain.IsUnavailable(err) {
			return Cloud{Source: domain.SourceNone}, nil
		}
		if err != nil {
			return Cloud{}, err
		}
		v.Source = src
		return v, nil
	})
}

// Warnings returns the distinct notes recorded while resolving datasets.
func (a *Aggregate) Warnings() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.warnings)
}

// Release drops every cached dataset. Accessors called afterwards resolve
// again.
func (a *Aggregate) Release() {
	a.sections.reset()
	a.ozone.reset()
	a.calibration.reset()
	a.arf.reset()
	a.parameters.reset()
	a.cloud.reset()
}

// Warn records a note that is attached to every result of the day computed
// afterwards.
func (a *Aggregate) Warn(msg string) {
	a.logger.Warn(msg)
	a.mu.Lock()
	defer a.mu.Unlock()
	if !slices.Contains(a.warnings, msg) {
		a.warnings = append(a.warnings, msg)
	}
}

// fileSource reads path with read. A missing path or file falls through; a
// malformed file does not.
func fileSource[T any](a *Aggregate, kind format.Kind, path string, read func(string) (T, error)) source[T] {
	return source[T]{name: domain.SourceFile, fetch: func(context.Context) (T, error) {
		return readLocal(a, kind, path, read)
	}}
}

func readLocal[T any](a *Aggregate, kind format.Kind, path string, read func(string) (T, error)) (T, error) {
	var zero T
	if path == "" {
		return zero, domain.ErrUnavailable
	}
	v, err := read(path)
	switch {
	case err == nil:
		a.countFile(kind, "success")
		return v, nil
	case errors.Is(err, fs.ErrNotExist):
		a.logger.Debug("local file missing", "path", path)
		return zero, domain.ErrUnavailable
	case domain.IsMalformed(err):
		a.countFile(kind, "malformed")
		return zero, err
	default:
		return zero, fmt.Errorf("read %s: %w", path, err)
	}
}

// withSummaries makes an ozone source with no usable summaries fall through.
// Its brewer model is kept for the source that does answer.
func withSummaries(a *Aggregate, s source[domain.Ozone]) source[domain.Ozone] {
	fetch := s.fetch
	s.fetch = func(ctx context.Context) (domain.Ozone, error) {
		v, err := fetch(ctx)
		if err != nil || len(v.Values) > 0 {
			return v, err
		}
		a.logger.Debug("ozone source has no summaries", "source", s.name)
		a.mu.Lock()
		if a.brewerType == "" {
			a.brewerType = v.BrewerType
		}
		a.mu.Unlock()
		return domain.Ozone{}, domain.ErrUnavailable
	}
	return s
}

func networkSource[T any](a *Aggregate, fetch func(context.Context, NetworkProvider) (T, error)) source[T] {
	return source[T]{name: domain.SourceEubrewnet, fetch: func(ctx context.Context) (T, error) {
		if a.src.Network == nil {
			var zero T
			return zero, domain.ErrUnavailable
		}
		return fetch(ctx, a.src.Network)
	}}
}

func (a *Aggregate) countFile(kind format.Kind, outcome string) {
	if a.src.Metrics != nil {
		a.src.Metrics.FilesParsed.WithLabelValues(string(kind), outcome).Inc()
	}
}
