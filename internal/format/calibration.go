package format

import (
	"io"
	"strings"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
)

// ParseCalibration parses a UVR file: "wavelength(Å) response" per line.
// The wavelength grid must be strictly increasing so it can be interpolated.
func ParseCalibration(r io.Reader, name string) (domain.Calibration, error) {
	lines, err := readLines(r, name)
	if err != nil {
		return domain.Calibration{}, err
	}

	var cal domain.Calibration
	for i, line := range lines {
		num := i + 1
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return domain.Calibration{}, malformed(name, num, "expected 2 columns")
		}
		wavelength, err := parseFloat(fields[0], "wavelength", name, num)
		if err != nil {
			return domain.Calibration{}, err
		}
		value, err := parseFloat(fields[1], "response", name, num)
		if err != nil {
			return domain.Calibration{}, err
		}
		wavelength /= 10
		if n := len(cal.Wavelengths); n > 0 && wavelength <= cal.Wavelengths[n-1] {
			return domain.Calibration{}, malformed(name, num, "wavelengths must be strictly increasing")
		}
		cal.Wavelengths = append(cal.Wavelengths, wavelength)
		cal.Values = append(cal.Values, value)
	}

	if len(cal.Wavelengths) < 2 {
		return domain.Calibration{}, malformed(name, 0, "at least two calibration points are required")
	}
	return cal, nil
}
