package format

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
)

// Kind identifies an instrument file type by its name.
type Kind string

const (
	KindUV          Kind = "uv"
	KindOzone       Kind = "ozone"
	KindCalibration Kind = "calibration"
	KindARF         Kind = "arf"
	KindParameters  Kind = "parameters"
)

var (
	uvNameRegex          = regexp.MustCompile(`^UV(\d{3})(\d{2})\.(\d+)$`)
	ozoneNameRegex       = regexp.MustCompile(`^B(\d{3})(\d{2})\.(\d+)$`)
	calibrationNameRegex = regexp.MustCompile(`^(?:UVR|uvr)\S+\.(\d+)$`)
	arfNameRegex         = regexp.MustCompile(`^arf_[a-zA-Z]*(\d+)\.dat$`)
	parameterNameRegex   = regexp.MustCompile(`^par_(\d{2})\.(\d+)$`)
)

// FileName is what an instrument file name says about its content.
type FileName struct {
	Kind     Kind
	BrewerID string
	Date     time.Time // UV and ozone files only
	Year     int       // parameter files only
}

// ParseFileName classifies a file by its base name. A trailing .gz is
// ignored. ok is false for names outside the instrument naming scheme.
func ParseFileName(path string) (FileName, bool) {
	base := strings.TrimSuffix(filepath.Base(path), ".gz")

	if m := uvNameRegex.FindStringSubmatch(base); m != nil {
		return dayFileName(KindUV, m)
	}
	if m := ozoneNameRegex.FindStringSubmatch(base); m != nil {
		return dayFileName(KindOzone, m)
	}
	if m := calibrationNameRegex.FindStringSubmatch(base); m != nil {
		return FileName{Kind: KindCalibration, BrewerID: m[1]}, true
	}
	if m := arfNameRegex.FindStringSubmatch(base); m != nil {
		return FileName{Kind: KindARF, BrewerID: m[1]}, true
	}
	if m := parameterNameRegex.FindStringSubmatch(base); m != nil {
		yy, _ := strconv.Atoi(m[1])
		return FileName{Kind: KindParameters, BrewerID: m[2], Year: 2000 + yy}, true
	}
	return FileName{}, false
}

func dayFileName(kind Kind, m []string) (FileName, bool) {
	day, _ := strconv.Atoi(m[1])
	yy, _ := strconv.Atoi(m[2])
	if day < 1 || day > 366 {
		return FileName{}, false
	}
	return FileName{Kind: kind, BrewerID: m[3], Date: domain.DateFromDayOfYear(day, yy)}, true
}

// UVFileName returns the raw-measurement file name for a brewer and day.
func UVFileName(brewerID string, date time.Time) string {
	return fmt.Sprintf("UV%03d%02d.%s", date.YearDay(), date.Year()%100, brewerID)
}

// OzoneFileName returns the B file name for a brewer and day.
func OzoneFileName(brewerID string, date time.Time) string {
	return fmt.Sprintf("B%03d%02d.%s", date.YearDay(), date.Year()%100, brewerID)
}

// ParameterFileName returns the parameter file name for a brewer and year.
func ParameterFileName(brewerID string, year int) string {
	return fmt.Sprintf("par_%02d.%s", year%100, brewerID)
}
