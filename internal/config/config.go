// Package config loads the report configuration from layered sources:
// built-in defaults, an optional YAML file, environment variables and
// explicitly set command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces environment overrides, e.g. SALES_KPI_OUTPUT_DIR.
const EnvPrefix = "SALES_KPI_"

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when no path is given.
var DefaultConfigPaths = []string{
	"sales-kpi-report.yaml",
	"sales-kpi-report.yml",
}

// Config is the full run configuration.
type Config struct {
	Input    InputConfig    `koanf:"input"`
	Output   OutputConfig   `koanf:"output"`
	Database DatabaseConfig `koanf:"database"`
	DuckDB   DuckDBConfig   `koanf:"duckdb"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// InputConfig locates the order table.
type InputConfig struct {
	Path  string `koanf:"path" validate:"required"`
	Sheet string `koanf:"sheet"`
}

// OutputConfig controls the written tables and optional artifacts.
type OutputConfig struct {
	Dir      string `koanf:"dir" validate:"required"`
	Workbook string `koanf:"workbook"`
	Chart    string `koanf:"chart"`
	Manifest string `koanf:"manifest"`
	Preview  bool   `koanf:"preview"`
}

// DatabaseConfig controls the optional Postgres sink.
type DatabaseConfig struct {
	Enabled bool          `koanf:"enabled"`
	URL     string        `koanf:"url" validate:"required_if=Enabled true"`
	Schema  string        `koanf:"schema" validate:"required,sqlident"`
	Tag     string        `koanf:"tag"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// DuckDBConfig controls the optional DuckDB export.
type DuckDBConfig struct {
	Path string `koanf:"path"`
}

// MetricsConfig controls the Prometheus textfile.
type MetricsConfig struct {
	Textfile string `koanf:"textfile"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

func defaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Dir: ".",
		},
		Database: DatabaseConfig{
			Schema:  "sales_kpi_report",
			Timeout: 12 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Options steers Load.
type Options struct {
	// ConfigPath is an explicit YAML file; it must exist when set.
	ConfigPath string
	// DotEnv is loaded into the process environment when present.
	DotEnv string
	// Overrides are koanf keys set from explicitly passed flags.
	Overrides map[string]interface{}
}

// Load builds the configuration and validates it.
func Load(opts Options) (*Config, error) {
	if opts.DotEnv != "" {
		if err := godotenv.Load(opts.DotEnv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", opts.DotEnv, err)
		}
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath, err := findConfigFile(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if k.String("database.url") == "" {
		if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
			if err := k.Set("database.url", url); err != nil {
				return nil, err
			}
		}
	}

	for key, value := range opts.Overrides {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to apply flag %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransformFunc maps SALES_KPI_SECTION_KEY to section.key. The DB_
// section is a shorthand for DATABASE_, e.g. SALES_KPI_DB_URL.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if rest, ok := strings.CutPrefix(key, "db_"); ok {
		return "database." + rest
	}
	return strings.Replace(key, "_", ".", 1)
}

func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

var sqlIdentPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validate checks struct tags, including the sqlident rule for names that
// end up interpolated into DDL.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return sqlIdentPattern.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	return validate.Struct(c)
}
