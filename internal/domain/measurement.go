package domain

import (
	"fmt"
	"math"
	"time"
)

// Position is an instrument location. Longitude is positive West.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SectionHeader is the metadata line that opens a scan in a UV file.
type SectionHeader struct {
	Type            string    `json:"type"`
	IntegrationTime float64   `json:"integration_time"`
	DeadTime        float64   `json:"dead_time"`
	Cycles          int       `json:"cycles"`
	Date            time.Time `json:"date"`
	Place           string    `json:"place"`
	Position        Position  `json:"position"`
	Temperature     float64   `json:"temperature"`
	Pressure        float64   `json:"pressure"`
	Dark            float64   `json:"dark"`
}

// RawValue is one sample of a scan.
type RawValue struct {
	Time       float64 `json:"time"`       // minutes since midnight UTC
	Wavelength float64 `json:"wavelength"` // nm
	Step       int     `json:"step"`
	Events     float64 `json:"events"`
	Std        float64 `json:"std"`
}

// NewRawValue builds a sample and derives its relative standard deviation.
func NewRawValue(minutes, wavelength float64, step int, events float64) RawValue {
	std := 0.0
	if events > 0 {
		std = 1 / math.Sqrt(events)
	}
	return RawValue{Time: minutes, Wavelength: wavelength, Step: step, Events: events, Std: std}
}

// Section is one contiguous scan: a header and its samples.
type Section struct {
	Header SectionHeader `json:"header"`
	Values []RawValue    `json:"values"`
}

// Wavelengths returns the wavelength grid of the scan in nm.
func (s Section) Wavelengths() []float64 {
	out := make([]float64, len(s.Values))
	for i, v := range s.Values {
		out[i] = v.Wavelength
	}
	return out
}

// Events returns the raw photon counts of the scan.
func (s Section) Events() []float64 {
	out := make([]float64, len(s.Values))
	for i, v := range s.Values {
		out[i] = v.Events
	}
	return out
}

// Times returns the sample times in minutes since midnight.
func (s Section) Times() []float64 {
	out := make([]float64, len(s.Values))
	for i, v := range s.Values {
		out[i] = v.Time
	}
	return out
}

// StartMinutes returns the time of the first sample, or 0 for an empty scan.
func (s Section) StartMinutes() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return s.Values[0].Time
}

// StartTime returns the absolute UTC time of the first sample.
func (s Section) StartTime() time.Time {
	return s.Header.Date.Add(time.Duration(s.StartMinutes() * float64(time.Minute)))
}

// Ozone holds the filtered ozone summaries of one day.
type Ozone struct {
	Times      []float64 `json:"times"`  // minutes since midnight
	Values     []float64 `json:"values"` // DU
	BrewerType string    `json:"brewer_type,omitempty"`
}

// At returns the ozone value closest in time to minutes. With no summaries it
// returns fallback; with one it returns that value.
func (o Ozone) At(minutes, fallback float64) float64 {
	v, ok := nearest(o.Times, o.Values, minutes)
	if !ok {
		return fallback
	}
	return v
}

// Calibration is the instrument's spectral response.
type Calibration struct {
	Wavelengths []float64 `json:"wavelengths"` // nm, strictly increasing
	Values      []float64 `json:"values"`
}

// Validate checks that the response can be interpolated: matching lengths, at
// least two points and strictly increasing wavelengths.
func (c Calibration) Validate() error {
	return CheckTable(c.Wavelengths, c.Values)
}

// CheckTable reports why (xs, ys) cannot be used as a piecewise linear table.
func CheckTable(xs, ys []float64) error {
	switch {
	case len(xs) != len(ys):
		return fmt.Errorf("%d abscissae for %d values", len(xs), len(ys))
	case len(xs) < 2:
		return fmt.Errorf("%d points, at least 2 are required", len(xs))
	}
	for i := 1; i < len(xs); i++ {
		if !(xs[i] > xs[i-1]) {
			return fmt.Errorf("abscissa %g at index %d does not follow %g", xs[i], i, xs[i-1])
		}
	}
	return nil
}

// AngularResponse is the instrument's response per solar zenith angle.
type AngularResponse struct {
	Angles []float64 `json:"angles"` // degrees, strictly increasing from 0 to 90
	Values []float64 `json:"values"`
}

// CloudCover is a day of cloud fractions sampled over time.
type CloudCover struct {
	Times  []float64 `json:"times"` // minutes since midnight
	Values []float64 `json:"values"`
	Notes  []string  `json:"notes,omitempty"` // quality caveats from the provider
}

// At returns the cloud fraction closest in time to minutes.
func (c CloudCover) At(minutes float64) (float64, bool) {
	return nearest(c.Times, c.Values, minutes)
}

// nearest picks the y whose x is closest to x. Ties resolve to the earlier
// sample. xs must be sorted.
func nearest(xs, ys []float64, x float64) (float64, bool) {
	n := min(len(xs), len(ys))
	if n == 0 {
		return 0, false
	}
	best := 0
	for i := 1; i < n; i++ {
		if math.Abs(xs[i]-x) < math.Abs(xs[best]-x) {
			best = i
		}
	}
	return ys[best], true
}
