package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeYAML(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales-kpi-report.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SALES_KPI_DB_URL", "")
	t.Setenv("SALES_KPI_OUTPUT_DIR", "")
	t.Setenv("SALES_KPI_INPUT_PATH", "")
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, EnvPrefix) {
			os.Unsetenv(strings.SplitN(kv, "=", 2)[0])
		}
	}
}

func TestLoadDefaultsWithOverride(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{Overrides: map[string]interface{}{"input.path": "orders.csv"}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Input.Path != "orders.csv" {
		t.Fatalf("expected input path from override, got %q", cfg.Input.Path)
	}
	if cfg.Output.Dir != "." || cfg.Database.Schema != "sales_kpi_report" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Database.Timeout != 12*time.Second {
		t.Fatalf("expected default timeout, got %v", cfg.Database.Timeout)
	}
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
input:
  path: from-file.csv
output:
  dir: file-out
  preview: true
database:
  timeout: 30s
logging:
  level: debug
`)
	t.Setenv("SALES_KPI_OUTPUT_DIR", "env-out")

	cfg, err := Load(Options{
		ConfigPath: path,
		Overrides:  map[string]interface{}{"input.path": "from-flag.csv"},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Input.Path != "from-flag.csv" {
		t.Fatalf("flag should win, got %q", cfg.Input.Path)
	}
	if cfg.Output.Dir != "env-out" {
		t.Fatalf("env should beat file, got %q", cfg.Output.Dir)
	}
	if !cfg.Output.Preview || cfg.Logging.Level != "debug" {
		t.Fatalf("file values missing: %+v", cfg)
	}
	if cfg.Database.Timeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %v", cfg.Database.Timeout)
	}
}

func TestLoadDatabaseURLFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://fallback")

	cfg, err := Load(Options{Overrides: map[string]interface{}{"input.path": "x.csv"}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.URL != "postgres://fallback" {
		t.Fatalf("expected DATABASE_URL fallback, got %q", cfg.Database.URL)
	}

	t.Setenv("SALES_KPI_DB_URL", "postgres://primary")
	cfg, err = Load(Options{Overrides: map[string]interface{}{"input.path": "x.csv"}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.URL != "postgres://primary" {
		t.Fatalf("expected SALES_KPI_DB_URL, got %q", cfg.Database.URL)
	}
}

func TestLoadDatabaseShorthandEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SALES_KPI_DB_SCHEMA", "custom_schema")
	t.Setenv("SALES_KPI_DB_TAG", "nightly")

	cfg, err := Load(Options{Overrides: map[string]interface{}{"input.path": "x.csv"}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Schema != "custom_schema" || cfg.Database.Tag != "nightly" {
		t.Fatalf("expected DB_ env shorthand to apply, got %+v", cfg.Database)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dotenv := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(dotenv, []byte("SALES_KPI_INPUT_PATH=dotenv.csv\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load(Options{DotEnv: dotenv})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Input.Path != "dotenv.csv" {
		t.Fatalf("expected input from .env, got %q", cfg.Input.Path)
	}

	if _, err := Load(Options{
		DotEnv:    filepath.Join(t.TempDir(), "missing.env"),
		Overrides: map[string]interface{}{"input.path": "x.csv"},
	}); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
}

func TestValidation(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name      string
		overrides map[string]interface{}
	}{
		{"missing input", map[string]interface{}{}},
		{"bad schema", map[string]interface{}{"input.path": "x.csv", "database.schema": "drop;table"}},
		{"db without url", map[string]interface{}{"input.path": "x.csv", "database.enabled": true}},
		{"bad log format", map[string]interface{}{"input.path": "x.csv", "logging.format": "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(Options{Overrides: tt.overrides}); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(Options{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"SALES_KPI_OUTPUT_DIR":       "output.dir",
		"SALES_KPI_DATABASE_ENABLED": "database.enabled",
		"SALES_KPI_DB_URL":           "database.url",
		"SALES_KPI_DB_SCHEMA":        "database.schema",
		"SALES_KPI_DB_TAG":           "database.tag",
		"SALES_KPI_METRICS_TEXTFILE": "metrics.textfile",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Fatalf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}
