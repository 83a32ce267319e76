package input

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
)

// NetworkProvider is the instrument network service consulted when local
// files are missing.
type NetworkProvider interface {
	Sections(ctx context.Context, brewerID string, date time.Time) ([]domain.Section, error)
	Ozone(ctx context.Context, brewerID string, date time.Time) (domain.Ozone, error)
	Calibration(ctx context.Context, brewerID string, date time.Time) (domain.Calibration, error)
}

// CloudProvider supplies a day of cloud fractions for a position.
type CloudProvider interface {
	CloudCover(ctx context.Context, date time.Time, pos domain.Position) (domain.CloudCover, error)
}

// source is one step of a resolution chain. fetch returns the dataset,
// domain.ErrUnavailable to fall through, or a hard error.
type source[T any] struct {
	name  string
	fetch func(ctx context.Context) (T, error)
}

// resolve walks chain in order. Remote failures are logged and treated as
// unavailable; any other error stops the walk. An exhausted chain yields a
// *domain.DataUnavailableError for dataset.
func resolve[T any](ctx context.Context, a *Aggregate, dataset string, chain []source[T]) (T, string, error) {
	var zero T
	for _, s := range chain {
		v, err := s.fetch(ctx)
		if err == nil {
			a.logger.Debug("dataset resolved", "dataset", dataset, "source", s.name)
			return v, s.name, nil
		}
		if errors.Is(err, domain.ErrUnavailable) {
			continue
		}
		var remote *domain.RemoteServiceError
		if errors.As(err, &remote) && ctx.Err() == nil {
			a.logger.Warn("remote source failed, falling through",
				"dataset", dataset, "source", s.name, "error", err)
			continue
		}
		return zero, s.name, err
	}
	return zero, "", &domain.DataUnavailableError{Dataset: dataset, BrewerID: a.key.BrewerID, Date: a.key.Date}
}
