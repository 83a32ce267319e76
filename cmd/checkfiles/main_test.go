package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/uv-irradiance-etl/internal/fixture"
)

var testDate = time.Date(2020, time.May, 2, 0, 0, 0, 0, time.UTC)

func TestRun_AllPass(t *testing.T) {
	dir := t.TempDir()
	_, err := fixture.WriteDay(dir, fixture.NewDay("033", testDate))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644))

	var out bytes.Buffer
	code := run(&out, dir, 3)

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "All checks passed.")
}

func TestRun_ReportsMalformedAndIncompleteDays(t *testing.T) {
	dir := t.TempDir()
	paths, err := fixture.WriteDay(dir, fixture.NewDay("033", testDate))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(paths.Calibration, []byte("2900\n"), 0o644))
	require.NoError(t, os.Remove(paths.Ozone))

	var out bytes.Buffer
	code := run(&out, dir, 3)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "--- UVR calibration files ---")
	assert.Contains(t, out.String(), "UVRES.033")
	assert.Contains(t, out.String(), "2020-05-02 has no B file")
	assert.Contains(t, out.String(), "Check FAILED.")
}
