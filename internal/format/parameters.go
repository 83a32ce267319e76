package format

import (
	"io"
	"sort"
	"strings"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
)

// ParseParameters parses a parameter file of "day;albedo;alpha;beta;cloud"
// rows. An empty albedo, alpha or beta inherits the value of the nearest
// preceding row that set it, so the first row must set all three. Cloud
// cover never inherits.
func ParseParameters(r io.Reader, name string) (domain.Parameters, error) {
	lines, err := readLines(r, name)
	if err != nil {
		return domain.Parameters{}, err
	}

	byDay := make(map[int]domain.ParameterRow)
	var prev *domain.ParameterRow
	for i, line := range lines {
		num := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		fields := strings.Split(trimmed, ";")
		if len(fields) != 5 {
			return domain.Parameters{}, malformed(name, num, "expected 5 ';'-separated fields")
		}
		for j := range fields {
			fields[j] = strings.TrimSpace(fields[j])
		}

		day, err := parseInt(fields[0], "day", name, num)
		if err != nil {
			return domain.Parameters{}, err
		}
		if day < 1 || day > 366 {
			return domain.Parameters{}, malformed(name, num, "day of year outside [1, 366]")
		}
		row := domain.ParameterRow{Day: day}

		inherit := []struct {
			field string
			raw   string
			dst   *float64
			prev  func(domain.ParameterRow) float64
		}{
			{"albedo", fields[1], &row.Albedo, func(p domain.ParameterRow) float64 { return p.Albedo }},
			{"alpha", fields[2], &row.Alpha, func(p domain.ParameterRow) float64 { return p.Alpha }},
			{"beta", fields[3], &row.Beta, func(p domain.ParameterRow) float64 { return p.Beta }},
		}
		for _, f := range inherit {
			if f.raw == "" {
				if prev == nil {
					return domain.Parameters{}, malformed(name, num, "the first row must define "+f.field)
				}
				*f.dst = f.prev(*prev)
				continue
			}
			v, err := parseFloat(f.raw, f.field, name, num)
			if err != nil {
				return domain.Parameters{}, err
			}
			*f.dst = v
		}

		if fields[4] != "" {
			cloud, err := parseFloat(fields[4], "cloud cover", name, num)
			if err != nil {
				return domain.Parameters{}, err
			}
			if cloud < 0 || cloud > 1 {
				return domain.Parameters{}, malformed(name, num, "cloud cover outside [0, 1]")
			}
			row.CloudCover = &cloud
		}

		byDay[day] = row
		prev = &row
	}

	if len(byDay) == 0 {
		return domain.Parameters{}, malformed(name, 0, "no parameter rows")
	}

	params := domain.Parameters{Rows: make([]domain.ParameterRow, 0, len(byDay))}
	for _, row := range byDay {
		params.Rows = append(params.Rows, row)
	}
	sort.Slice(params.Rows, func(i, j int) bool { return params.Rows[i].Day < params.Rows[j].Day })
	return params, nil
}
