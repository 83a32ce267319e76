package config

import (
	"errors"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// MaxWorkers caps the calculation pool regardless of core count.
const MaxWorkers = 20

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	Workers       int
	OutputWorkers int

	// Result sinks. Empty values disable the sink.
	KafkaBrokers     []string
	KafkaResultTopic string
	OutputDir        string

	// Instrument network (EUBREWNET) configuration.
	EubrewnetURL      string
	EubrewnetUser     string
	EubrewnetPassword string
	EubrewnetEnabled  bool
	EubrewnetTimeout  time.Duration
	EubrewnetRPS      float64

	// Cloud cover service configuration.
	CloudCoverURL       string
	CloudCoverToken     string
	CloudCoverEnabled   bool
	CloudCoverTimeout   time.Duration
	CloudCoverCacheSize int

	// External radiative transfer solver.
	SolverCommand  []string
	SolverDataPath string
	SolverTimeout  time.Duration
	SolverTmpDir   string

	SettingsFile string
}

// DefaultWorkers is min(cores+4, 20).
func DefaultWorkers() int {
	return min(runtime.NumCPU()+4, MaxWorkers)
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	eubrewnetTimeout, err := parseDuration("EUBREWNET_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	cloudTimeout, err := parseDuration("CLOUD_COVER_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	solverTimeout, err := parseDuration("SOLVER_TIMEOUT", "40s")
	if err != nil {
		return nil, err
	}

	workers, err := parsePositiveInt("WORKERS", DefaultWorkers())
	if err != nil {
		return nil, err
	}
	outputWorkers, err := parsePositiveInt("OUTPUT_WORKERS", runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("CLOUD_COVER_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	rps, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("EUBREWNET_RPS", "5"), 64)
	if err != nil || rps <= 0 {
		return nil, errors.New("invalid EUBREWNET_RPS")
	}

	cloudToken := os.Getenv("CLOUD_COVER_TOKEN")
	cloudEnabled := cloudToken != ""
	if v := os.Getenv("CLOUD_COVER_ENABLED"); v != "" {
		cloudEnabled = v == "true"
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Workers:       workers,
		OutputWorkers: outputWorkers,

		KafkaBrokers:     brokers,
		KafkaResultTopic: sharedcfg.EnvOrDefault("KAFKA_RESULT_TOPIC", "uv-irradiance-results"),
		OutputDir:        os.Getenv("OUTPUT_DIR"),

		EubrewnetURL:      strings.TrimRight(sharedcfg.EnvOrDefault("EUBREWNET_URL", "http://rbcce.aemet.es/eubrewnet"), "/"),
		EubrewnetUser:     os.Getenv("EUBREWNET_USER"),
		EubrewnetPassword: os.Getenv("EUBREWNET_PASSWORD"),
		EubrewnetEnabled:  sharedcfg.EnvOrDefault("EUBREWNET_ENABLED", "true") == "true",
		EubrewnetTimeout:  eubrewnetTimeout,
		EubrewnetRPS:      rps,

		CloudCoverURL:       strings.TrimRight(sharedcfg.EnvOrDefault("CLOUD_COVER_URL", "https://api.darksky.net"), "/"),
		CloudCoverToken:     cloudToken,
		CloudCoverEnabled:   cloudEnabled,
		CloudCoverTimeout:   cloudTimeout,
		CloudCoverCacheSize: cacheSize,

		SolverCommand:  strings.Fields(sharedcfg.EnvOrDefault("SOLVER_COMMAND", "uvspec")),
		SolverDataPath: sharedcfg.EnvOrDefault("SOLVER_DATA_PATH", "/opt/libRadtran/data/"),
		SolverTimeout:  solverTimeout,
		SolverTmpDir:   sharedcfg.EnvOrDefault("SOLVER_TMP_DIR", os.TempDir()),

		SettingsFile: os.Getenv("SETTINGS_FILE"),
	}

	if cfg.Workers > MaxWorkers {
		return nil, errors.New("WORKERS must not exceed 20")
	}
	if len(cfg.SolverCommand) == 0 {
		return nil, errors.New("SOLVER_COMMAND is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaResultTopic == "" {
		return nil, errors.New("KAFKA_RESULT_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.CloudCoverEnabled && cfg.CloudCoverToken == "" {
		return nil, errors.New("CLOUD_COVER_ENABLED is true but CLOUD_COVER_TOKEN is not set")
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}
