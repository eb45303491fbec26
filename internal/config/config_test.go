package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	// Change to temp dir so no stray config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, SourceFile, cfg.Dataset.Source)
	assert.Equal(t, "screening.csv", cfg.Dataset.Path)
	assert.Equal(t, ",", cfg.Dataset.Delimiter)
	assert.False(t, cfg.Dataset.Eager)
	assert.Equal(t, "screening_records", cfg.Store.Table)
	assert.Equal(t, int32(4), cfg.Store.MaxConns)
	assert.Equal(t, 3, cfg.Store.RetryAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.RetryBackoff)
	assert.InDelta(t, 33.0, cfg.Screening.DebtThresholdPct, 0.001)
	assert.InDelta(t, 33.0, cfg.Screening.CashInvThresholdPct, 0.001)
	assert.InDelta(t, 5.0, cfg.Screening.NPINThresholdPct, 0.001)
	assert.False(t, cfg.Screening.StrictThresholds)
	assert.InDelta(t, 0.5, cfg.Screening.ResidualEpsilon, 0.001)
	assert.Equal(t, 8, cfg.Portfolio.MaxConcurrency)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.NoError(t, cfg.Validate("screen"))
	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
dataset:
  source: sqlite
  eager: true
store:
  database_url: /data/screening.db
screening:
  strict_thresholds: true
  npin_threshold_pct: 4.5
log:
  level: debug
  format: console
server:
  port: 9090
  allowed_origins:
    - https://dashboard.example.com
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, SourceSQLite, cfg.Dataset.Source)
	assert.True(t, cfg.Dataset.Eager)
	assert.Equal(t, "/data/screening.db", cfg.Store.DatabaseURL)
	assert.True(t, cfg.Screening.StrictThresholds)
	assert.InDelta(t, 4.5, cfg.Screening.NPINThresholdPct, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://dashboard.example.com"}, cfg.Server.AllowedOrigins)
	// Defaults still apply for unset values
	assert.InDelta(t, 33.0, cfg.Screening.DebtThresholdPct, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
dataset:
  path: from-file.csv
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SCREEN_DATASET_PATH", "from-env.xlsx")
	t.Setenv("SCREEN_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "from-env.xlsx", cfg.Dataset.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SCREEN_SERVER_PORT", "3000")
	t.Setenv("SCREEN_PORTFOLIO_MAX_CONCURRENCY", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Portfolio.MaxConcurrency)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("dataset: [\n"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Dataset.Source = SourceFile
	cfg.Dataset.Path = "screening.csv"
	cfg.Dataset.Delimiter = ","
	cfg.Store.MaxConns = 4
	cfg.Store.MinConns = 1
	cfg.Store.RetryAttempts = 3
	cfg.Screening.DebtThresholdPct = 33
	cfg.Screening.CashInvThresholdPct = 33
	cfg.Screening.NPINThresholdPct = 5
	cfg.Screening.ResidualEpsilon = 0.5
	cfg.Portfolio.MaxConcurrency = 8
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateScreen_File(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("screen"))

	cfg.Dataset.Path = ""
	err := cfg.Validate("screen")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dataset.path is required")
}

func TestValidateScreen_StoreSources(t *testing.T) {
	for _, src := range []string{SourceSQLite, SourcePostgres} {
		t.Run(src, func(t *testing.T) {
			cfg := validDefaults()
			cfg.Dataset.Source = src

			err := cfg.Validate("screen")
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "store.database_url is required")

			cfg.Store.DatabaseURL = "postgres://localhost/screening"
			assert.NoError(t, cfg.Validate("screen"))
		})
	}
}

func TestValidateUnknownSource(t *testing.T) {
	cfg := validDefaults()
	cfg.Dataset.Source = "s3"

	err := cfg.Validate("screen")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dataset.source must be one of")
}

func TestValidateDelimiter(t *testing.T) {
	cfg := validDefaults()
	cfg.Dataset.Delimiter = ";;"

	err := cfg.Validate("screen")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "single character")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	assert.NoError(t, cfg.Validate("screen"), "port only matters when serving")

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Portfolio.MaxConcurrency = 0
	err := cfg.Validate("screen")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrency must be between 1 and 64")

	cfg.Portfolio.MaxConcurrency = 65
	err = cfg.Validate("screen")
	assert.Error(t, err)

	cfg.Portfolio.MaxConcurrency = 64
	assert.NoError(t, cfg.Validate("screen"))
}

func TestValidateThresholds(t *testing.T) {
	cfg := validDefaults()

	cfg.Screening.NPINThresholdPct = 101
	err := cfg.Validate("screen")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "npin_threshold_pct")

	cfg.Screening.NPINThresholdPct = 5
	cfg.Screening.ResidualEpsilon = -1
	err = cfg.Validate("screen")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "residual_epsilon")
}

func TestValidatePoolBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.MinConns = 10

	err := cfg.Validate("screen")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "min_conns")
}

func TestValidateRetryAttempts(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.RetryAttempts = 0
	assert.NoError(t, cfg.Validate("screen"), "file source ignores store retries")

	cfg.Dataset.Source = SourceSQLite
	cfg.Store.DatabaseURL = "screen.db"
	err := cfg.Validate("screen")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.retry_attempts")
}
