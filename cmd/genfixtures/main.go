// Command genfixtures writes synthetic instrument days that follow the
// Brewer file grammars: UV, B, UVR, ARF and parameter files per day, laid
// out as <out>/<brewer>/. The output is deterministic for a given set of
// flags, so it can seed tests and local runs of uvcalc.
//
// Usage:
//
//	go run ./cmd/genfixtures -out testdata/brewer -brewer 033 -start 2020-05-02 -days 3
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v2"

	"github.com/couchcryptid/uv-irradiance-etl/internal/config"
	"github.com/couchcryptid/uv-irradiance-etl/internal/fixture"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("genfixtures", flag.ContinueOnError)
	out := fs.String("out", "", "output directory")
	brewer := fs.String("brewer", "033", "brewer id")
	start := fs.String("start", "2020-05-02", "first day YYYY-MM-DD")
	days := fs.Int("days", 1, "number of consecutive days")
	sections := fs.Int("sections", 3, "scans per day")
	compress := fs.Bool("gzip", false, "gzip the UV and B files")
	settings := fs.Bool("settings", false, "also write settings.yaml with the default calculation settings")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *out == "" {
		fs.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	first, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	if *days < 1 || *sections < 1 {
		return fmt.Errorf("-days and -sections must be positive")
	}

	dir := filepath.Join(*out, *brewer)
	for i := range *days {
		day := fixture.NewDay(*brewer, first.AddDate(0, 0, i))
		day.Sections = *sections
		paths, err := fixture.WriteDay(dir, day)
		if err != nil {
			return fmt.Errorf("writing %s: %w", day.Date.Format(time.DateOnly), err)
		}
		if *compress {
			for _, p := range []string{paths.UV, paths.Ozone} {
				if err := gzipFile(p); err != nil {
					return fmt.Errorf("compressing %s: %w", filepath.Base(p), err)
				}
			}
		}
		log.Printf("%s: %d sections", day.Date.Format(time.DateOnly), day.Sections)
	}

	if *settings {
		path := filepath.Join(*out, "settings.yaml")
		if err := writeSettings(path); err != nil {
			return fmt.Errorf("writing settings: %w", err)
		}
		log.Printf("wrote settings: %s", path)
	}
	log.Printf("wrote %d days to %s", *days, dir)
	return nil
}

// gzipFile replaces path with path.gz.
func gzipFile(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		out.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

func writeSettings(path string) error {
	data, err := yaml.Marshal(config.DefaultSettings())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
