package domain

import (
	"strings"
	"time"
)

// CorrectionModel is the cosine-correction model applied to a spectrum.
type CorrectionModel string

const (
	CorrectionClearSky CorrectionModel = "clear_sky"
	CorrectionDiffuse  CorrectionModel = "diffuse"
	CorrectionNone     CorrectionModel = "none"
)

// Sources of resolved datasets, recorded as provenance on a Result.
const (
	SourceFile      = "file"
	SourceEubrewnet = "eubrewnet"
	SourceDefault   = "default"
	SourceParameter = "parameter_file"
	SourceService   = "cloud_service"
	SourceNone      = "none"
)

// ResolvedParameters records the inputs a spectrum was computed with and
// where each came from.
type ResolvedParameters struct {
	Ozone           float64  `json:"ozone"`
	OzoneSource     string   `json:"ozone_source"`
	Albedo          float64  `json:"albedo"`
	Alpha           float64  `json:"alpha"`
	Beta            float64  `json:"beta"`
	ParameterSource string   `json:"parameter_source"`
	Pressure        float64  `json:"pressure"`
	CloudCover      *float64 `json:"cloud_cover,omitempty"`
	CloudSource     string   `json:"cloud_source"`
}

// Spectrum holds the per-wavelength series of a calculated scan. All slices
// share the length of Wavelengths.
type Spectrum struct {
	Wavelengths []float64 `json:"wavelengths"`
	Times       []float64 `json:"times"`
	Raw         []float64 `json:"raw"`
	Calibrated  []float64 `json:"calibrated"`
	Factors     []float64 `json:"cos_factors"`
	Irradiance  []float64 `json:"irradiance"`
}

// Result is the output of one successful calculation job.
type Result struct {
	JobID                 string             `json:"job_id"`
	BrewerID              string             `json:"brewer_id"`
	Date                  time.Time          `json:"date"`
	Section               int                `json:"section"`
	Header                SectionHeader      `json:"header"`
	SolarZenithAngle      float64            `json:"sza"`
	AirMass               float64            `json:"air_mass"`
	TemperatureCorrection float64            `json:"temperature_correction"`
	Correction            CorrectionModel    `json:"correction"`
	Parameters            ResolvedParameters `json:"parameters"`
	Spectrum              Spectrum           `json:"spectrum"`
	Warnings              []string           `json:"warnings,omitempty"`
	ProcessedAt           time.Time          `json:"processed_at"`
}

// Artifact points at something a sink produced for a Result.
type Artifact struct {
	Sink     string `json:"sink"`
	Location string `json:"location"`
}

// StraylightApplies reports whether straylight correction is required for a
// Brewer model. The second return is false for models the rule does not know.
func StraylightApplies(brewerType string) (apply, known bool) {
	switch strings.ToLower(strings.TrimSpace(brewerType)) {
	case "mki", "mkii", "mkiv":
		return true, true
	case "mkiii":
		return false, true
	default:
		return false, false
	}
}
