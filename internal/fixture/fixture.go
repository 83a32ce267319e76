// Package fixture writes synthetic instrument days that follow the file
// grammars exactly. It backs the package tests and cmd/genfixtures.
package fixture

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
	"github.com/couchcryptid/uv-irradiance-etl/internal/format"
)

// Day describes one synthetic measurement day of one instrument.
type Day struct {
	BrewerID     string
	Date         time.Time
	Sections     int
	Wavelengths  []float64 // nm
	StartMinutes float64
	BrewerType   string
	Place        string
	Position     domain.Position
	Ozone        float64
}

// NewDay returns a small but realistic day: three scans from 290 to 300 nm.
func NewDay(brewerID string, date time.Time) Day {
	wavelengths := make([]float64, 0, 21)
	for w := 290.0; w <= 300.0; w += 0.5 {
		wavelengths = append(wavelengths, w)
	}
	return Day{
		BrewerID:     brewerID,
		Date:         domain.TruncateDay(date),
		Sections:     3,
		Wavelengths:  wavelengths,
		StartMinutes: 600,
		BrewerType:   "mkiii",
		Place:        "Arenosillo",
		Position:     domain.Position{Latitude: 37.1, Longitude: 6.73},
		Ozone:        305.2,
	}
}

// Paths are the files written for a Day.
type Paths struct {
	UV          string
	Ozone       string
	Calibration string
	ARF         string
	Parameters  string
}

// UVFile renders the raw-measurement file, one scan per section an hour apart.
func UVFile(d Day) string {
	var b strings.Builder
	for s := 0; s < d.Sections; s++ {
		fmt.Fprintf(&b, "ux Integration time is 0.2294 seconds per sample dt 3.1E-08 cy 3 dh %02d %02d %02d %s  %.4f %.4f 3 pr 1013dark 10.0\r\n",
			d.Date.Day(), int(d.Date.Month()), d.Date.Year()%100, d.Place, d.Position.Latitude, d.Position.Longitude)
		start := d.StartMinutes + float64(s*60)
		for i, w := range d.Wavelengths {
			events := 2000 + 400*float64(i) + 100*float64(s)
			fmt.Fprintf(&b, "%.2f %d %d %d\r\n", start+float64(i)*0.05, int(math.Round(w*10)), 100*i, int(events))
		}
		b.WriteString("end\r\n")
	}
	b.WriteString("\x1a\r\n")
	return b.String()
}

// OzoneFile renders a B file with one summary per scan and a trailing noisy
// summary that must be filtered out.
func OzoneFile(d Day) string {
	var b strings.Builder
	b.WriteString("inst " + strings.Repeat("0 ", 22) + d.BrewerType + " 0\r\n")
	month := strings.ToUpper(d.Date.Format("Jan"))
	for s := 0; s < d.Sections; s++ {
		minutes := int(d.StartMinutes) + s*60
		fmt.Fprintf(&b, "summary %02d:%02d:00 %s %02d/ %02d 86.5 1.234 0.9 ds 1 2 3 4 5 6 7 8 %.1f 1 2 3 4 5 6 7 0.8\r\n",
			minutes/60, minutes%60, month, d.Date.Day(), d.Date.Year()%100, d.Ozone+float64(s))
	}
	fmt.Fprintf(&b, "summary 23:00:00 %s %02d/ %02d 86.5 4.100 0.9 ds 1 2 3 4 5 6 7 8 999.0 1 2 3 4 5 6 7 0.8\r\n",
		month, d.Date.Day(), d.Date.Year()%100)
	return b.String()
}

// CalibrationFile renders a UVR file covering the day's wavelengths with a
// one-nanometre margin on each side.
func CalibrationFile(d Day) string {
	var b strings.Builder
	if len(d.Wavelengths) == 0 {
		return ""
	}
	lo := d.Wavelengths[0] - 1
	hi := d.Wavelengths[len(d.Wavelengths)-1] + 1
	for w := lo; w <= hi+1e-9; w += 0.5 {
		fmt.Fprintf(&b, "%d %.4f\n", int(math.Round(w*10)), 0.4+0.01*(w-lo))
	}
	return b.String()
}

// ARFFile renders an angular response file with five columns.
func ARFFile() string {
	var b strings.Builder
	b.WriteString("% sza  n  e  s  w\n")
	for a := 0; a <= 85; a += 5 {
		v := math.Cos(float64(a) * math.Pi / 180)
		fmt.Fprintf(&b, "%d %.4f %.4f %.4f %.4f\n", a, v, v*0.99, v*0.98, v*0.97)
	}
	return b.String()
}

// ParameterFile renders a parameter file whose second row inherits albedo.
func ParameterFile(d Day) string {
	day := d.Date.YearDay()
	return fmt.Sprintf("1;0.05;1.3;0.1;\n%d;;1.2;0.2;0.5\n", day)
}

// WriteDay writes all five files of d into dir using instrument file names.
func WriteDay(dir string, d Day) (Paths, error) {
	p := Paths{
		UV:          filepath.Join(dir, format.UVFileName(d.BrewerID, d.Date)),
		Ozone:       filepath.Join(dir, format.OzoneFileName(d.BrewerID, d.Date)),
		Calibration: filepath.Join(dir, "UVRES."+d.BrewerID),
		ARF:         filepath.Join(dir, "arf_"+d.BrewerID+".dat"),
		Parameters:  filepath.Join(dir, format.ParameterFileName(d.BrewerID, d.Date.Year())),
	}
	files := []struct {
		path    string
		content string
	}{
		{p.UV, UVFile(d)},
		{p.Ozone, OzoneFile(d)},
		{p.Calibration, CalibrationFile(d)},
		{p.ARF, ARFFile()},
		{p.Parameters, ParameterFile(d)},
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, err
	}
	for _, f := range files {
		if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
			return Paths{}, fmt.Errorf("write %s: %w", filepath.Base(f.path), err)
		}
	}
	return p, nil
}
