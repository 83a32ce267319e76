// Package format parses the plain-text instrument files of a Brewer station.
//
// Every parser is a pure function over an io.Reader and reports content
// problems as *domain.MalformedInputError carrying the 1-based line number.
package format

import (
	"bufio"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
)

// Open opens an instrument file. Files ending in .gz are decompressed on
// the fly.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, &domain.MalformedInputError{File: filepath.Base(path), Reason: "invalid gzip stream: " + err.Error()}
	}
	return &gzipFile{Reader: zr, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	zerr := g.Reader.Close()
	if err := g.file.Close(); err != nil {
		return err
	}
	return zerr
}

// readFile opens path and hands the stream to parse, labelling errors with
// the file's base name.
func readFile[T any](path string, parse func(io.Reader, string) (T, error)) (T, error) {
	rc, err := Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer rc.Close()
	return parse(rc, filepath.Base(path))
}

// ReadUVFile parses the raw-measurement file at path.
func ReadUVFile(path string) ([]domain.Section, error) {
	return readFile(path, ParseUV)
}

// ReadOzoneFile parses the B file at path.
func ReadOzoneFile(path string) (domain.Ozone, error) {
	return readFile(path, ParseOzone)
}

// ReadCalibrationFile parses the UVR file at path.
func ReadCalibrationFile(path string) (domain.Calibration, error) {
	return readFile(path, ParseCalibration)
}

// ReadAngularResponseFile parses the ARF file at path, reading the response
// from column.
func ReadAngularResponseFile(path string, column int) (domain.AngularResponse, error) {
	return readFile(path, func(r io.Reader, name string) (domain.AngularResponse, error) {
		return ParseAngularResponse(r, name, column)
	})
}

// ReadParameterFile parses the parameter file at path.
func ReadParameterFile(path string) (domain.Parameters, error) {
	return readFile(path, ParseParameters)
}

// readLines splits r into lines with carriage returns turned into spaces.
// Instrument PCs write CRLF files; the stray CR must not glue tokens.
func readLines(r io.Reader, name string) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.ReplaceAll(sc.Text(), "\r", " "))
	}
	if err := sc.Err(); err != nil {
		return nil, &domain.MalformedInputError{File: name, Reason: err.Error()}
	}
	return lines, nil
}

func parseFloat(s, field, name string, line int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &domain.MalformedInputError{File: name, Line: line, Reason: "invalid " + field + " " + strconv.Quote(s)}
	}
	return v, nil
}

func parseInt(s, field, name string, line int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &domain.MalformedInputError{File: name, Line: line, Reason: "invalid " + field + " " + strconv.Quote(s)}
	}
	return v, nil
}

func malformed(name string, line int, reason string) error {
	return &domain.MalformedInputError{File: name, Line: line, Reason: reason}
}
