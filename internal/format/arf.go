package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
)

// DefaultARFColumn is the response column used when none is configured.
const DefaultARFColumn = 3

// ParseAngularResponse parses an ARF file. Lines starting with '%' are
// comments. The first column is the solar zenith angle in degrees and the
// response is read from column, or from the last column of shorter rows.
// The curve is closed with a zero response at 90°.
func ParseAngularResponse(r io.Reader, name string, column int) (domain.AngularResponse, error) {
	if column < 1 {
		column = DefaultARFColumn
	}
	lines, err := readLines(r, name)
	if err != nil {
		return domain.AngularResponse{}, err
	}

	var arf domain.AngularResponse
	for i, line := range lines {
		num := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "%") {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) < 2 {
			return domain.AngularResponse{}, malformed(name, num, "expected an angle and at least one response column")
		}
		angle, err := parseFloat(fields[0], "zenith angle", name, num)
		if err != nil {
			return domain.AngularResponse{}, err
		}
		if angle < 0 || angle > 90 {
			return domain.AngularResponse{}, malformed(name, num, fmt.Sprintf("zenith angle %g outside [0, 90]", angle))
		}
		n := len(arf.Angles)
		if n > 0 && angle <= arf.Angles[n-1] {
			return domain.AngularResponse{}, malformed(name, num, "zenith angles must be strictly increasing")
		}
		if n == 0 && angle != 0 {
			return domain.AngularResponse{}, malformed(name, num, "angular response must start at 0°")
		}

		valueField := fields[len(fields)-1]
		if column < len(fields) {
			valueField = fields[column]
		}
		value, err := parseFloat(valueField, "response", name, num)
		if err != nil {
			return domain.AngularResponse{}, err
		}
		arf.Angles = append(arf.Angles, angle)
		arf.Values = append(arf.Values, value)
	}

	if len(arf.Angles) == 0 {
		return domain.AngularResponse{}, malformed(name, 0, "no angular response rows")
	}
	if arf.Angles[len(arf.Angles)-1] < 90 {
		arf.Angles = append(arf.Angles, 90)
		arf.Values = append(arf.Values, 0)
	}
	return arf, nil
}
