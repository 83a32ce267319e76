package format

import (
	"io"
	"regexp"
	"strings"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
)

var (
	ozoneSummaryRegex = regexp.MustCompile(`^summary ` +
		`(\d\d):(\d\d):(\d\d)\s+` +
		`[A-Z]{3}\s+\d\d/\s*\d\d\s+` +
		`\S+\s+` +
		`(?P<air_mass>\S+)\s+` +
		`\S+\s+` +
		`ds\s+` +
		`(?:\S+\s+){8}` +
		`(?P<ozone>\S+)\s+` +
		`(?:\S+\s+){7}` +
		`(?P<ozone_std>\S+)`)

	ozoneInstrumentRegex = regexp.MustCompile(`^inst\s+(?:\S+\s+){22}(\S+)\s+`)
)

// Summaries above these limits are too noisy to use.
const (
	maxOzoneAirMass = 3.5
	maxOzoneStd     = 2.5
)

// ParseOzone parses a B file: the direct-sun ozone summaries of a day and
// the instrument constants line naming the Brewer model.
func ParseOzone(r io.Reader, name string) (domain.Ozone, error) {
	lines, err := readLines(r, name)
	if err != nil {
		return domain.Ozone{}, err
	}

	var ozone domain.Ozone
	for i, raw := range lines {
		num := i + 1
		line := strings.TrimSpace(raw)

		if m := ozoneSummaryRegex.FindStringSubmatch(line); m != nil {
			airMass, err := parseFloat(m[ozoneSummaryRegex.SubexpIndex("air_mass")], "air mass", name, num)
			if err != nil {
				return domain.Ozone{}, err
			}
			std, err := parseFloat(m[ozoneSummaryRegex.SubexpIndex("ozone_std")], "ozone std", name, num)
			if err != nil {
				return domain.Ozone{}, err
			}
			if airMass > maxOzoneAirMass || std > maxOzoneStd {
				continue
			}
			value, err := parseFloat(m[ozoneSummaryRegex.SubexpIndex("ozone")], "ozone", name, num)
			if err != nil {
				return domain.Ozone{}, err
			}
			h, _ := parseInt(m[1], "hours", name, num)
			mi, _ := parseInt(m[2], "minutes", name, num)
			s, _ := parseInt(m[3], "seconds", name, num)
			ozone.Times = append(ozone.Times, float64(h*60+mi)+float64(s)/60)
			ozone.Values = append(ozone.Values, value)
			continue
		}

		if m := ozoneInstrumentRegex.FindStringSubmatch(line); m != nil {
			ozone.BrewerType = m[1]
		}
	}

	if ozone.BrewerType == "" {
		return domain.Ozone{}, malformed(name, 0, "no brewer type found in instrument constants")
	}
	return ozone, nil
}
