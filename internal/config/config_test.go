package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCloudToken = "dk.test-token"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, min(runtime.NumCPU()+4, 20), cfg.Workers)
	assert.Equal(t, runtime.NumCPU(), cfg.OutputWorkers)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "uv-irradiance-results", cfg.KafkaResultTopic)
	assert.Empty(t, cfg.OutputDir)
	assert.Equal(t, "http://rbcce.aemet.es/eubrewnet", cfg.EubrewnetURL)
	assert.True(t, cfg.EubrewnetEnabled)
	assert.Equal(t, 30*time.Second, cfg.EubrewnetTimeout)
	assert.Equal(t, 5.0, cfg.EubrewnetRPS)
	assert.False(t, cfg.CloudCoverEnabled)
	assert.Empty(t, cfg.CloudCoverToken)
	assert.Equal(t, 10*time.Second, cfg.CloudCoverTimeout)
	assert.Equal(t, 1000, cfg.CloudCoverCacheSize)
	assert.Equal(t, []string{"uvspec"}, cfg.SolverCommand)
	assert.Equal(t, "/opt/libRadtran/data/", cfg.SolverDataPath)
	assert.Equal(t, 40*time.Second, cfg.SolverTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("WORKERS", "8")
	t.Setenv("OUTPUT_WORKERS", "2")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_RESULT_TOPIC", "spectra")
	t.Setenv("OUTPUT_DIR", "/data/out")
	t.Setenv("EUBREWNET_URL", "http://eubrewnet.local/")
	t.Setenv("EUBREWNET_ENABLED", "false")
	t.Setenv("EUBREWNET_RPS", "0.5")
	t.Setenv("CLOUD_COVER_TOKEN", testCloudToken)
	t.Setenv("CLOUD_COVER_CACHE_SIZE", "50")
	t.Setenv("SOLVER_COMMAND", "docker run -i libradtran uvspec")
	t.Setenv("SOLVER_TIMEOUT", "2m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 2, cfg.OutputWorkers)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "spectra", cfg.KafkaResultTopic)
	assert.Equal(t, "/data/out", cfg.OutputDir)
	assert.Equal(t, "http://eubrewnet.local", cfg.EubrewnetURL)
	assert.False(t, cfg.EubrewnetEnabled)
	assert.Equal(t, 0.5, cfg.EubrewnetRPS)
	assert.True(t, cfg.CloudCoverEnabled)
	assert.Equal(t, testCloudToken, cfg.CloudCoverToken)
	assert.Equal(t, 50, cfg.CloudCoverCacheSize)
	assert.Equal(t, []string{"docker", "run", "-i", "libradtran", "uvspec"}, cfg.SolverCommand)
	assert.Equal(t, 2*time.Minute, cfg.SolverTimeout)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidSolverTimeout(t *testing.T) {
	t.Setenv("SOLVER_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOLVER_TIMEOUT")
}

func TestLoad_WorkersAboveCap(t *testing.T) {
	t.Setenv("WORKERS", "21")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKERS")
}

func TestLoad_InvalidWorkers(t *testing.T) {
	t.Setenv("WORKERS", "zero")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKERS")
}

func TestLoad_CloudCoverEnabledWithoutToken(t *testing.T) {
	t.Setenv("CLOUD_COVER_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLOUD_COVER_TOKEN")
}

func TestLoad_CloudCoverExplicitlyDisabled(t *testing.T) {
	t.Setenv("CLOUD_COVER_TOKEN", testCloudToken)
	t.Setenv("CLOUD_COVER_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.CloudCoverEnabled)
}

func TestLoad_EmptySolverCommand(t *testing.T) {
	t.Setenv("SOLVER_COMMAND", "   ")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOLVER_COMMAND")
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
	assert.True(t, s.ApplyStraylight())
	assert.Nil(t, s.DefaultCloudCover)
}

func TestLoadSettings_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"arf_column: 2\n"+
			"default_ozone: 320\n"+
			"default_straylight: not_applied\n"+
			"diffuse_threshold: 0.8\n"+
			"default_cloud_cover: 0.3\n"), 0o644))
	t.Setenv("UV_DEFAULT_OZONE", "280")
	t.Setenv("UV_NO_COSCOR", "true")

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, 2, s.ARFColumn)
	assert.Equal(t, 280.0, s.DefaultOzone, "env overrides the file")
	assert.False(t, s.ApplyStraylight())
	assert.Equal(t, 0.8, s.DiffuseThreshold)
	require.NotNil(t, s.DefaultCloudCover)
	assert.Equal(t, 0.3, *s.DefaultCloudCover)
	assert.True(t, s.NoCosCor)
	assert.Equal(t, 0.04, s.DefaultAlbedo, "untouched fields keep their defaults")
}

func TestLoadSettings_EnvCloudCover(t *testing.T) {
	t.Setenv("UV_DEFAULT_CLOUD_COVER", "0.95")
	s, err := LoadSettings("")
	require.NoError(t, err)
	require.NotNil(t, s.DefaultCloudCover)
	assert.Equal(t, 0.95, *s.DefaultCloudCover)
}

func TestLoadSettings_Invalid(t *testing.T) {
	t.Run("threshold above one", func(t *testing.T) {
		t.Setenv("UV_DIFFUSE_THRESHOLD", "1.5")
		_, err := LoadSettings("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DiffuseThreshold")
	})
	t.Run("unknown straylight policy", func(t *testing.T) {
		t.Setenv("UV_DEFAULT_STRAYLIGHT", "sometimes")
		_, err := LoadSettings("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DefaultStraylight")
	})
	t.Run("unknown yaml key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "settings.yaml")
		require.NoError(t, os.WriteFile(path, []byte("ozone_default: 1\n"), 0o644))
		_, err := LoadSettings(path)
		require.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}
