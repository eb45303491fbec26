package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Dataset sources.
const (
	SourceFile     = "file"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// Config holds the full application configuration.
type Config struct {
	Dataset   DatasetConfig   `yaml:"dataset" mapstructure:"dataset"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Screening ScreeningConfig `yaml:"screening" mapstructure:"screening"`
	Portfolio PortfolioConfig `yaml:"portfolio" mapstructure:"portfolio"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DatasetConfig selects where screening records are read from.
type DatasetConfig struct {
	Source     string `yaml:"source" mapstructure:"source"`
	Path       string `yaml:"path" mapstructure:"path"`
	Format     string `yaml:"format" mapstructure:"format"`
	Sheet      string `yaml:"sheet" mapstructure:"sheet"`
	Delimiter  string `yaml:"delimiter" mapstructure:"delimiter"`
	Charset    string `yaml:"charset" mapstructure:"charset"`
	FieldTable string `yaml:"field_table" mapstructure:"field_table"`
	Eager      bool   `yaml:"eager" mapstructure:"eager"`
}

// StoreConfig configures the document table the sqlite and postgres
// sources read from.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
	// RetryAttempts bounds opening and reading the table on transient
	// connection errors. 1 disables retries.
	RetryAttempts int           `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// ScreeningConfig tunes the evaluators.
type ScreeningConfig struct {
	DebtThresholdPct    float64 `yaml:"debt_threshold_pct" mapstructure:"debt_threshold_pct"`
	CashInvThresholdPct float64 `yaml:"cash_inv_threshold_pct" mapstructure:"cash_inv_threshold_pct"`
	NPINThresholdPct    float64 `yaml:"npin_threshold_pct" mapstructure:"npin_threshold_pct"`
	StrictThresholds    bool    `yaml:"strict_thresholds" mapstructure:"strict_thresholds"`
	ResidualEpsilon     float64 `yaml:"residual_epsilon" mapstructure:"residual_epsilon"`
}

// PortfolioConfig configures portfolio evaluation.
type PortfolioConfig struct {
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCREEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dataset.source", SourceFile)
	v.SetDefault("dataset.path", "screening.csv")
	v.SetDefault("dataset.delimiter", ",")
	v.SetDefault("dataset.eager", false)
	v.SetDefault("store.table", "screening_records")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("store.retry_attempts", 3)
	v.SetDefault("store.retry_backoff", "250ms")
	v.SetDefault("screening.debt_threshold_pct", 33.0)
	v.SetDefault("screening.cash_inv_threshold_pct", 33.0)
	v.SetDefault("screening.npin_threshold_pct", 5.0)
	v.SetDefault("screening.strict_thresholds", false)
	v.SetDefault("screening.residual_epsilon", 0.5)
	v.SetDefault("portfolio.max_concurrency", 8)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs. Modes are "screen"
// (any command reading the dataset) and "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "screen", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Dataset.Source {
	case SourceFile:
		if c.Dataset.Path == "" {
			errs = append(errs, "dataset.path is required for the file source")
		}
	case SourceSQLite, SourcePostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, fmt.Sprintf("store.database_url is required for the %s source", c.Dataset.Source))
		}
	default:
		errs = append(errs, fmt.Sprintf("dataset.source must be one of file, sqlite, postgres (got %q)", c.Dataset.Source))
	}
	if d := c.Dataset.Delimiter; len([]rune(d)) > 1 {
		errs = append(errs, "dataset.delimiter must be a single character")
	}

	for name, v := range map[string]float64{
		"debt_threshold_pct":     c.Screening.DebtThresholdPct,
		"cash_inv_threshold_pct": c.Screening.CashInvThresholdPct,
		"npin_threshold_pct":     c.Screening.NPINThresholdPct,
	} {
		if v < 0 || v > 100 {
			errs = append(errs, fmt.Sprintf("screening.%s must be between 0 and 100", name))
		}
	}
	if c.Screening.ResidualEpsilon < 0 {
		errs = append(errs, "screening.residual_epsilon must be >= 0")
	}
	if c.Portfolio.MaxConcurrency < 1 || c.Portfolio.MaxConcurrency > 64 {
		errs = append(errs, "portfolio.max_concurrency must be between 1 and 64")
	}
	if c.Store.MinConns > c.Store.MaxConns && c.Store.MaxConns > 0 {
		errs = append(errs, "store.min_conns must not exceed store.max_conns")
	}
	if c.Dataset.Source != SourceFile && c.Store.RetryAttempts < 1 {
		errs = append(errs, "store.retry_attempts must be >= 1")
	}

	if mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
			errs = append(errs, "server rate limits must be >= 0")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid settings: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
