package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Straylight correction policies for Brewer models the correction rule does
// not know.
const (
	StraylightApplied    = "applied"
	StraylightNotApplied = "not_applied"
)

// Settings are the calculation settings. They are layered: code defaults,
// then the optional YAML settings file, then UV_* environment variables.
type Settings struct {
	ARFColumn                   int      `yaml:"arf_column" envconfig:"ARF_COLUMN" validate:"gte=1"`
	NoCosCor                    bool     `yaml:"no_coscor" envconfig:"NO_COSCOR"`
	TemperatureCorrectionFactor float64  `yaml:"temperature_correction_factor" envconfig:"TEMPERATURE_CORRECTION_FACTOR"`
	TemperatureCorrectionRef    float64  `yaml:"temperature_correction_ref" envconfig:"TEMPERATURE_CORRECTION_REF"`
	DefaultAlbedo               float64  `yaml:"default_albedo" envconfig:"DEFAULT_ALBEDO" validate:"gte=0,lte=1"`
	DefaultAlpha                float64  `yaml:"default_alpha" envconfig:"DEFAULT_ALPHA" validate:"gte=0"`
	DefaultBeta                 float64  `yaml:"default_beta" envconfig:"DEFAULT_BETA" validate:"gte=0"`
	DefaultOzone                float64  `yaml:"default_ozone" envconfig:"DEFAULT_OZONE" validate:"gte=0"`
	DefaultStraylight           string   `yaml:"default_straylight" envconfig:"DEFAULT_STRAYLIGHT" validate:"oneof=applied not_applied"`
	DiffuseThreshold            float64  `yaml:"diffuse_threshold" envconfig:"DIFFUSE_THRESHOLD" validate:"gte=0,lte=1"`
	DefaultCloudCover           *float64 `yaml:"default_cloud_cover" envconfig:"DEFAULT_CLOUD_COVER" validate:"omitempty,gte=0,lte=1"`
}

// DefaultSettings returns the settings used when nothing overrides them.
func DefaultSettings() Settings {
	return Settings{
		ARFColumn:         3,
		DefaultAlbedo:     0.04,
		DefaultAlpha:      1.3,
		DefaultBeta:       0.1,
		DefaultOzone:      300,
		DefaultStraylight: StraylightApplied,
		DiffuseThreshold:  0.9,
	}
}

// ApplyStraylight reports the default straylight policy as a bool.
func (s Settings) ApplyStraylight() bool {
	return s.DefaultStraylight == StraylightApplied
}

// LoadSettings builds Settings from defaults, the YAML file at path (skipped
// when path is empty) and UV_* environment overrides, then validates them.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read settings file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse settings file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("UV", &s); err != nil {
		return Settings{}, fmt.Errorf("load settings from env: %w", err)
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

var validate = validator.New()

// Validate checks every field against its constraints.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}
