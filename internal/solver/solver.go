// Package solver runs the external radiative transfer model that provides
// the clear-sky irradiance components of a scan.
package solver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
)

// Solver computes the irradiance components of a scan geometry.
type Solver interface {
	Solve(ctx context.Context, in Input) (Irradiance, error)
}

// Input is everything the model needs for one scan.
type Input struct {
	Wavelengths []float64 // nm, evenly spaced, at least two
	Position    domain.Position
	Time        time.Time // UTC time of the first sample
	Ozone       float64   // DU
	Pressure    float64   // hPa
	Albedo      float64
	Alpha       float64
	Beta        float64
}

// Irradiance holds the model output, one row per wavelength.
type Irradiance struct {
	SZA  []float64 // degrees
	Edir []float64
	Edn  []float64
	Eglo []float64
}

// Len returns the number of rows.
func (r Irradiance) Len() int { return len(r.SZA) }

// Validate checks that in describes a spectral grid the model can spline.
func (in Input) Validate() error {
	if len(in.Wavelengths) < 2 {
		return errors.New("at least two wavelengths are required")
	}
	if in.Wavelengths[1] <= in.Wavelengths[0] {
		return errors.New("wavelengths must be increasing")
	}
	return nil
}

// Step returns the spectral step of the grid.
func (in Input) Step() float64 {
	return in.Wavelengths[1] - in.Wavelengths[0]
}

const staticPreamble = `data_files_path %[1]s
atmosphere_file %[1]satmmod/afglus.dat
source solar %[1]ssolar_flux/atlas_plus_modtran
aerosol_default
rte_solver disort
number_of_streams  8
quiet
`

// outputColumns are requested from the model in this order.
var outputColumns = []string{"sza", "edir", "edn", "eglo"}

// Render writes the model input file for in. dataPath is the model's data
// directory and must end with a slash.
func Render(w io.Writer, dataPath string, in Input) error {
	if err := in.Validate(); err != nil {
		return err
	}
	first, last := in.Wavelengths[0], in.Wavelengths[len(in.Wavelengths)-1]

	// Longitudes are positive West; the model wants a hemisphere letter.
	hemisphere := "W"
	if in.Position.Longitude < 0 {
		hemisphere = "E"
	}

	t := in.Time.UTC()
	var b strings.Builder
	fmt.Fprintf(&b, staticPreamble, dataPath)
	fmt.Fprintf(&b, "wavelength %s %s\n", num(first), num(last))
	fmt.Fprintf(&b, "latitude N %s\n", num(in.Position.Latitude))
	fmt.Fprintf(&b, "longitude %s %s\n", hemisphere, num(math.Abs(in.Position.Longitude)))
	fmt.Fprintf(&b, "spline %s %s %s\n", num(first), num(last), num(in.Step()))
	fmt.Fprintf(&b, "mol_modify O3 %s DU\n", num(in.Ozone))
	fmt.Fprintf(&b, "time %d %d %d %d %d %d\n", t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	fmt.Fprintf(&b, "pressure %s\n", num(in.Pressure))
	fmt.Fprintf(&b, "albedo %s\n", num(in.Albedo))
	fmt.Fprintf(&b, "aerosol_angstrom %s %s\n", num(in.Alpha), num(in.Beta))
	fmt.Fprintf(&b, "output_user %s\n", strings.Join(outputColumns, " "))

	_, err := io.WriteString(w, b.String())
	return err
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Parse reads the model output. Every non-empty line must hold exactly the
// requested columns and there must be one line per wavelength.
func Parse(r io.Reader, rows int) (Irradiance, error) {
	var out Irradiance
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != len(outputColumns) {
			return Irradiance{}, fmt.Errorf("line %d: got %d columns, want %d", line, len(fields), len(outputColumns))
		}
		var vals [4]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Irradiance{}, fmt.Errorf("line %d: %s is not a number", line, outputColumns[i])
			}
			vals[i] = v
		}
		out.SZA = append(out.SZA, vals[0])
		out.Edir = append(out.Edir, vals[1])
		out.Edn = append(out.Edn, vals[2])
		out.Eglo = append(out.Eglo, vals[3])
	}
	if err := sc.Err(); err != nil {
		return Irradiance{}, err
	}
	if out.Len() != rows {
		return Irradiance{}, fmt.Errorf("got %d rows, want %d", out.Len(), rows)
	}
	return out, nil
}
