package format

import (
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
)

// uvHeaderRegex matches the line opening a scan, e.g.
//
//	ux Integration time is 0.2294 seconds per sample dt 3.1E-08 cy 3 dh 20 02 17 Arenosillo  37.1 6.73 3 pr 1000dark 1.2
var uvHeaderRegex = regexp.MustCompile(`^(?P<type>[a-z]{2})\s+` +
	`Integration time is (?P<integration_time>\S+) seconds.+` +
	`dt\s+(?P<dead_time>\S+).+` +
	`cy\s+(?P<cycles>\d+).+` +
	`dh\s+(?P<day>\d+) (?P<month>\d+) (?P<year>\d+)\s+` +
	`(?P<place>(?: ?[a-zA-Z])+)\s+` +
	`(?P<latitude>\S+) +(?P<longitude>\S+) +(?P<temperature>\S+)\s+` +
	`pr\s*(?P<pressure>\d+).*` +
	`dark\s*(?P<dark>\S+)\s*$`)

// uvValueRegex matches "time wavelength step events".
var uvValueRegex = regexp.MustCompile(`^\s*(\S+)\s+(\S+)\s+(\d+)\s+(\S+)\s*$`)

var uvDarkRegex = regexp.MustCompile(`^\s*dark\s+(\S+)\s*$`)

// The header carries the raw temperature sensor reading.
const (
	temperatureOffset = -33.27
	temperatureScale  = 18.64
)

// ParseUV parses a raw-measurement file into its scans.
//
// A scan ends at "end", at EOF, or at "dark <counts>". In the last case the
// instrument has repeated the scan in reverse order and both passes are
// averaged.
func ParseUV(r io.Reader, name string) ([]domain.Section, error) {
	lines, err := readLines(r, name)
	if err != nil {
		return nil, err
	}
	p := &uvParser{name: name, lines: lines}
	return p.parse()
}

type uvParser struct {
	name  string
	lines []string
	pos   int
}

// next returns the next line and its 1-based number; ok is false at EOF or
// at the DOS end-of-file marker.
func (p *uvParser) next() (line string, num int, ok bool) {
	if p.pos >= len(p.lines) {
		return "", p.pos, false
	}
	line = p.lines[p.pos]
	p.pos++
	if strings.TrimSpace(line) == "\x1a" {
		p.pos = len(p.lines)
		return "", p.pos, false
	}
	return line, p.pos, true
}

func (p *uvParser) parse() ([]domain.Section, error) {
	var sections []domain.Section
	for {
		line, num, ok := p.next()
		if !ok || strings.TrimSpace(line) == "" {
			break
		}
		header, err := parseUVHeader(line, p.name, num)
		if err != nil {
			return nil, err
		}
		values, err := p.parseValues(&header)
		if err != nil {
			return nil, err
		}
		sections = append(sections, domain.Section{Header: header, Values: values})
	}
	if len(sections) == 0 {
		return nil, malformed(p.name, 0, "file contains no scans")
	}
	return sections, nil
}

func (p *uvParser) parseValues(header *domain.SectionHeader) ([]domain.RawValue, error) {
	var values []domain.RawValue
	for {
		line, num, ok := p.next()
		if !ok || strings.Contains(line, "end") {
			return values, nil
		}
		if strings.Contains(line, "dark") {
			return values, p.parseDarkPass(line, num, header, values)
		}
		v, err := parseUVValue(line, p.name, num)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
}

// parseDarkPass averages the reverse-order repeat of a scan into values.
func (p *uvParser) parseDarkPass(line string, num int, header *domain.SectionHeader, values []domain.RawValue) error {
	m := uvDarkRegex.FindStringSubmatch(line)
	if m == nil {
		return malformed(p.name, num, "invalid dark line")
	}
	dark, err := parseFloat(m[1], "dark", p.name, num)
	if err != nil {
		return err
	}
	header.Dark = (header.Dark + dark) / 2

	for i := len(values) - 1; i >= 0; i-- {
		line, num, ok := p.next()
		if !ok {
			return malformed(p.name, num, "dark pass ends before the scan is repeated")
		}
		repeat, err := parseUVValue(line, p.name, num)
		if err != nil {
			return err
		}
		old := values[i]
		values[i] = domain.NewRawValue(
			(old.Time+repeat.Time)/2,
			old.Wavelength,
			(old.Step+repeat.Step)/2,
			(old.Events+repeat.Events)/2,
		)
	}

	line, num, ok := p.next()
	if ok && !strings.Contains(line, "end") {
		return malformed(p.name, num, "expected 'end' after dark pass")
	}
	return nil
}

func parseUVHeader(line, name string, num int) (domain.SectionHeader, error) {
	m := uvHeaderRegex.FindStringSubmatch(line)
	if m == nil {
		return domain.SectionHeader{}, malformed(name, num, "unrecognised scan header")
	}
	group := func(n string) string { return m[uvHeaderRegex.SubexpIndex(n)] }

	var h domain.SectionHeader
	var err error
	h.Type = group("type")
	if h.IntegrationTime, err = parseFloat(group("integration_time"), "integration time", name, num); err != nil {
		return h, err
	}
	if h.DeadTime, err = parseFloat(group("dead_time"), "dead time", name, num); err != nil {
		return h, err
	}
	if h.Cycles, err = parseInt(group("cycles"), "cycles", name, num); err != nil {
		return h, err
	}
	if h.Cycles == 0 || h.IntegrationTime == 0 {
		return h, malformed(name, num, "cycles and integration time must be non-zero")
	}

	day, _ := parseInt(group("day"), "day", name, num)
	month, _ := parseInt(group("month"), "month", name, num)
	year, _ := parseInt(group("year"), "year", name, num)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return h, malformed(name, num, "invalid date")
	}
	h.Date = time.Date(2000+year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	h.Place = strings.TrimSpace(group("place"))

	if h.Position.Latitude, err = parseFloat(group("latitude"), "latitude", name, num); err != nil {
		return h, err
	}
	if h.Position.Longitude, err = parseFloat(group("longitude"), "longitude", name, num); err != nil {
		return h, err
	}
	rawTemperature, err := parseFloat(group("temperature"), "temperature", name, num)
	if err != nil {
		return h, err
	}
	h.Temperature = temperatureOffset + rawTemperature*temperatureScale
	if h.Pressure, err = parseFloat(group("pressure"), "pressure", name, num); err != nil {
		return h, err
	}
	if h.Dark, err = parseFloat(group("dark"), "dark", name, num); err != nil {
		return h, err
	}
	return h, nil
}

func parseUVValue(line, name string, num int) (domain.RawValue, error) {
	m := uvValueRegex.FindStringSubmatch(line)
	if m == nil {
		return domain.RawValue{}, malformed(name, num, "invalid value line")
	}
	minutes, err := parseFloat(m[1], "time", name, num)
	if err != nil {
		return domain.RawValue{}, err
	}
	wavelength, err := parseFloat(m[2], "wavelength", name, num)
	if err != nil {
		return domain.RawValue{}, err
	}
	step, err := parseInt(m[3], "step", name, num)
	if err != nil {
		return domain.RawValue{}, err
	}
	events, err := parseFloat(m[4], "events", name, num)
	if err != nil {
		return domain.RawValue{}, err
	}
	return domain.NewRawValue(minutes, wavelength/10, step, events), nil
}
