// Package parquet archives calculated spectra as Parquet files, one file per
// section.
package parquet

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
)

// SinkName labels this sink in metrics and artifacts.
const SinkName = "parquet"

// SpectrumRow is one wavelength of a calculated section.
type SpectrumRow struct {
	JobID       string   `parquet:"job_id"`
	BrewerID    string   `parquet:"brewer_id"`
	Date        string   `parquet:"date"`
	Section     int32    `parquet:"section"`
	Minutes     float64  `parquet:"time_minutes"`
	Wavelength  float64  `parquet:"wavelength_nm"`
	Raw         float64  `parquet:"raw_counts"`
	Calibrated  float64  `parquet:"calibrated"`
	Factor      float64  `parquet:"cos_factor"`
	Irradiance  float64  `parquet:"irradiance"`
	SZA         float64  `parquet:"sza"`
	AirMass     float64  `parquet:"air_mass"`
	Correction  string   `parquet:"correction"`
	Ozone       float64  `parquet:"ozone_du"`
	OzoneSource string   `parquet:"ozone_source"`
	Albedo      float64  `parquet:"albedo"`
	Alpha       float64  `parquet:"alpha"`
	Beta        float64  `parquet:"beta"`
	CloudCover  *float64 `parquet:"cloud_cover"`
	CloudSource string   `parquet:"cloud_source"`
	ProcessedAt int64    `parquet:"processed_at_ms"`
}

// Sink writes results under a root directory as
// <brewer>/<year>/<brewer>_<yyyymmdd>_s<section>.parquet.
type Sink struct {
	dir    string
	logger *slog.Logger
}

// NewSink creates a sink rooted at dir.
func NewSink(dir string, logger *slog.Logger) *Sink {
	return &Sink{dir: dir, logger: logger}
}

// Submit writes result to its file, replacing any earlier run of the same
// section.
func (s *Sink) Submit(_ context.Context, result domain.Result) ([]domain.Artifact, error) {
	path := s.Path(result)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, Rows(result)); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("publish %s: %w", filepath.Base(path), err)
	}
	s.logger.Debug("result archived", "job_id", result.JobID, "path", path)
	return []domain.Artifact{{Sink: SinkName, Location: path}}, nil
}

// Path returns the file a result is written to.
func (s *Sink) Path(result domain.Result) string {
	year := strconv.Itoa(result.Date.Year())
	name := fmt.Sprintf("%s_%s_s%02d.parquet", result.BrewerID, result.Date.Format("20060102"), result.Section)
	return filepath.Join(s.dir, result.BrewerID, year, name)
}

// Rows flattens a result into one row per wavelength.
func Rows(result domain.Result) []SpectrumRow {
	sp := result.Spectrum
	p := result.Parameters
	rows := make([]SpectrumRow, len(sp.Wavelengths))
	for i := range rows {
		rows[i] = SpectrumRow{
			JobID:       result.JobID,
			BrewerID:    result.BrewerID,
			Date:        result.Date.Format("2006-01-02"),
			Section:     int32(result.Section),
			Minutes:     at(sp.Times, i),
			Wavelength:  sp.Wavelengths[i],
			Raw:         at(sp.Raw, i),
			Calibrated:  at(sp.Calibrated, i),
			Factor:      at(sp.Factors, i),
			Irradiance:  at(sp.Irradiance, i),
			SZA:         result.SolarZenithAngle,
			AirMass:     result.AirMass,
			Correction:  string(result.Correction),
			Ozone:       p.Ozone,
			OzoneSource: p.OzoneSource,
			Albedo:      p.Albedo,
			Alpha:       p.Alpha,
			Beta:        p.Beta,
			CloudCover:  p.CloudCover,
			CloudSource: p.CloudSource,
			ProcessedAt: result.ProcessedAt.UnixMilli(),
		}
	}
	return rows
}

func at(xs []float64, i int) float64 {
	if i < len(xs) {
		return xs[i]
	}
	return 0
}
