package calc

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
)

const (
	// straylightCutoff is the wavelength (nm) below which counts are taken as
	// pure straylight.
	straylightCutoff = 292.0

	// deadTimeIterations is the number of fixed-point steps of the dead-time
	// linearity correction.
	deadTimeIterations = 25
)

// Calibrate converts the raw counts of a section into a calibrated spectrum.
// The steps are dark subtraction, optional straylight removal, conversion to
// photon rate, dead-time correction and division by the instrument response
// interpolated onto the section's wavelengths.
func Calibrate(section domain.Section, cal domain.Calibration, straylight bool) ([]float64, error) {
	h := section.Header
	if h.Cycles <= 0 || h.IntegrationTime <= 0 {
		return nil, fmt.Errorf("section header has cycles=%d integration time=%g", h.Cycles, h.IntegrationTime)
	}
	if len(section.Values) == 0 {
		return nil, errors.New("section has no samples")
	}

	counts := section.Events()
	for i := range counts {
		counts[i] -= h.Dark
	}

	if straylight {
		var below []float64
		for _, v := range section.Values {
			if v.Wavelength < straylightCutoff {
				below = append(below, v.Events)
			}
		}
		if len(below) > 0 {
			offset := stat.Mean(below, nil)
			for i := range counts {
				counts[i] -= offset
			}
		}
	}

	scale := 4 / (float64(h.Cycles) * h.IntegrationTime)
	rate0 := make([]float64, len(counts))
	for i, c := range counts {
		rate0[i] = c * scale
	}
	rate := DeadTimeCorrect(rate0, h.DeadTime)

	if err := cal.Validate(); err != nil {
		return nil, &domain.MalformedInputError{File: "calibration", Reason: err.Error()}
	}
	response, err := Interpolate(cal.Wavelengths, cal.Values, section.Wavelengths())
	if err != nil {
		return nil, fmt.Errorf("interpolate calibration: %w", err)
	}
	for i := range rate {
		rate[i] = math.Max(0, rate[i]) / response[i]
	}
	return rate, nil
}

// DeadTimeCorrect solves n = n0·exp(n·dt) by fixed-point iteration for every
// observed rate n0.
func DeadTimeCorrect(rate0 []float64, deadTime float64) []float64 {
	rate := make([]float64, len(rate0))
	copy(rate, rate0)
	for range deadTimeIterations {
		for i, n0 := range rate0 {
			rate[i] = n0 * math.Exp(rate[i]*deadTime)
		}
	}
	return rate
}

// ErrInvalidTable is returned by Interpolate for a table that is too short or
// whose abscissae are not strictly increasing.
var ErrInvalidTable = errors.New("invalid interpolation table")

// Interpolate evaluates the piecewise linear function through (xs, ys) at
// every x. Points outside xs take the value of the nearest end.
func Interpolate(xs, ys, at []float64) ([]float64, error) {
	// Fit panics on the tables CheckTable rejects.
	if err := domain.CheckTable(xs, ys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, err
	}
	out := make([]float64, len(at))
	for i, x := range at {
		out[i] = pl.Predict(x)
	}
	return out, nil
}

// TemperatureCorrection is the multiplicative factor 1 + c·(T - Tref).
func TemperatureCorrection(factor, temperature, ref float64) float64 {
	return 1 + factor*(temperature-ref)
}
