// Command checkfiles parses every instrument file under a directory and
// reports, per file kind, whether all of them follow their grammar. A last
// phase checks that every measurement day can be calculated: it needs a B
// file and the brewer needs a calibration and an angular response file.
//
// Usage:
//
//	go run ./cmd/checkfiles -dir /data/brewer [-arf-column 3]
package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/uv-irradiance-etl/internal/catalog"
	"github.com/couchcryptid/uv-irradiance-etl/internal/format"
)

// phase tracks pass/fail for a check phase.
type phase struct {
	name   string
	files  int
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "instrument file tree to check")
	arfColumn := flag.Int("arf-column", 3, "angular response column to read")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(os.Stdout, *dir, *arfColumn))
}

func run(w io.Writer, dir string, arfColumn int) int {
	fmt.Fprintln(w, "=== Instrument File Check ===")
	fmt.Fprintln(w)

	parsers := map[format.Kind]func(string) error{
		format.KindUV: func(p string) error {
			_, err := format.ReadUVFile(p)
			return err
		},
		format.KindOzone: func(p string) error {
			_, err := format.ReadOzoneFile(p)
			return err
		},
		format.KindCalibration: func(p string) error {
			_, err := format.ReadCalibrationFile(p)
			return err
		},
		format.KindARF: func(p string) error {
			_, err := format.ReadAngularResponseFile(p, arfColumn)
			return err
		},
		format.KindParameters: func(p string) error {
			_, err := format.ReadParameterFile(p)
			return err
		},
	}
	kinds := []struct {
		kind format.Kind
		name string
	}{
		{format.KindUV, "UV measurement files"},
		{format.KindOzone, "Ozone (B) files"},
		{format.KindCalibration, "UVR calibration files"},
		{format.KindARF, "Angular response files"},
		{format.KindParameters, "Parameter files"},
	}
	byKind := make(map[format.Kind]*phase, len(kinds))
	phases := make([]*phase, 0, len(kinds)+1)
	for _, k := range kinds {
		p := &phase{name: k.name}
		byKind[k.kind] = p
		phases = append(phases, p)
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		name, ok := format.ParseFileName(path)
		if !ok {
			return nil
		}
		p := byKind[name.Kind]
		p.files++
		if err := parsers[name.Kind](path); err != nil {
			p.errorf("%s: %v", rel(dir, path), err)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: walk %s: %v\n", dir, err)
		return 1
	}

	cat, err := catalog.Scan(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: scan %s: %v\n", dir, err)
		return 1
	}
	phases = append(phases, checkCompleteness(cat))

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-28s %5d  %s\n", p.name, p.files, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll checks passed.")
		return 0
	}
	fmt.Fprintln(w, "\nCheck FAILED.")
	return 1
}

// checkCompleteness reports UV days that could not be calculated from the
// local files alone.
func checkCompleteness(cat *catalog.Catalog) *phase {
	p := &phase{name: "Calculable days"}
	for _, id := range cat.BrewerIDs() {
		inst, _ := cat.Instrument(id)
		if len(inst.Calibrations) == 0 {
			p.errorf("brewer %s: no UVR calibration file", id)
		}
		if len(inst.ARFs) == 0 {
			p.errorf("brewer %s: no angular response file", id)
		}
		for day := range inst.UV {
			p.files++
			if _, ok := inst.Ozone[day]; !ok {
				p.errorf("brewer %s: %s has no B file", id, day.Format(time.DateOnly))
			}
		}
	}
	return p
}

func rel(root, path string) string {
	if r, err := filepath.Rel(root, path); err == nil {
		return r
	}
	return path
}
