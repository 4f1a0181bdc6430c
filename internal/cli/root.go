// Package cli wires the sales-kpi-report commands.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sales-kpi-report/internal/config"
	"sales-kpi-report/internal/logging"
	"sales-kpi-report/internal/pipeline"
)

const version = "0.1.0"

// flagKeys maps command-line flags to configuration keys. Only flags the user
// actually set override lower layers.
var flagKeys = map[string]string{
	"input":            "input.path",
	"sheet":            "input.sheet",
	"out-dir":          "output.dir",
	"workbook":         "output.workbook",
	"chart":            "output.chart",
	"manifest":         "output.manifest",
	"preview":          "output.preview",
	"db":               "database.enabled",
	"db-schema":        "database.schema",
	"db-tag":           "database.tag",
	"db-timeout":       "database.timeout",
	"duckdb":           "duckdb.path",
	"metrics-textfile": "metrics.textfile",
	"log-level":        "logging.level",
	"log-format":       "logging.format",
}

var rootCmd = &cobra.Command{
	Use:     "sales-kpi-report",
	Short:   "Sales KPI and RFM segmentation reports from an order table",
	Version: version,
	Long: `Reads a sales order table (CSV or xlsx) and writes one flat table per report:
KPI summary, monthly trend, region, city, product and category performance,
RFM customer segmentation, segment summary and the cleaned dataset.`,
	Example: `  # Write every table into out/
  $ sales-kpi-report --input orders.xlsx --out-dir out/

  # Also export a workbook, a trend chart and store the run in Postgres
  $ sales-kpi-report run --input orders.csv --workbook report.xlsx --chart trend.png --db

  # Create the Postgres schema and seed it from the input if empty
  $ sales-kpi-report init-db --input orders.csv`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runReport,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute the reports and write every output",
	RunE:  runReport,
}

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize the database schema and seed it if empty",
	RunE:  runInitDB,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file")
	flags.String("env-file", ".env", "Optional .env file loaded into the environment")
	flags.String("input", "", "Path to the order table (.csv or .xlsx)")
	flags.String("sheet", "", "Worksheet to read from an xlsx input; default first sheet")
	flags.String("out-dir", ".", "Directory for the output tables")
	flags.String("workbook", "", "Optional xlsx workbook with one sheet per table")
	flags.String("chart", "", "Optional PNG chart of monthly revenue and profit")
	flags.String("manifest", "", "Optional JSON run manifest")
	flags.Bool("preview", false, "Print the head of each table")
	flags.Bool("db", false, "Store the run in Postgres (requires SALES_KPI_DB_URL or DATABASE_URL)")
	flags.String("db-schema", "sales_kpi_report", "Postgres schema for report tables")
	flags.String("db-tag", "", "Optional label for this report run")
	flags.Duration("db-timeout", 0, "Timeout for Postgres operations")
	flags.String("duckdb", "", "Optional DuckDB file receiving every table")
	flags.String("metrics-textfile", "", "Optional Prometheus textfile for node_exporter")
	flags.String("log-level", "info", "Log level: trace, debug, info, warn, error, disabled")
	flags.String("log-format", "console", "Log format: console or json")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(initDBCmd)
}

func loadConfig(cmd *cobra.Command, extra map[string]interface{}) (*config.Config, error) {
	overrides := flagOverrides(cmd)
	for key, value := range extra {
		overrides[key] = value
	}
	configPath, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(config.Options{
		ConfigPath: configPath,
		DotEnv:     envFile,
		Overrides:  overrides,
	})
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	return cfg, nil
}

func flagOverrides(cmd *cobra.Command) map[string]interface{} {
	overrides := map[string]interface{}{}
	for name, key := range flagKeys {
		if !cmd.Flags().Changed(name) {
			continue
		}
		overrides[key] = cmd.Flags().Lookup(name).Value.String()
	}
	return overrides
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	opts := pipeline.OptionsFromConfig(cfg)
	opts.Stdout = cmd.OutOrStdout()

	if _, err := pipeline.Run(cmd.Context(), opts); err != nil {
		return err
	}
	return nil
}

func runInitDB(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]interface{}{"database.enabled": true})
	if err != nil {
		return err
	}
	opts := pipeline.OptionsFromConfig(cfg)
	opts.Stdout = cmd.OutOrStdout()

	runID, err := pipeline.Seed(cmd.Context(), opts)
	if err != nil {
		return err
	}
	if runID == "" {
		fmt.Fprintln(opts.Stdout, "Report data already present; skipping seed.")
		return nil
	}
	fmt.Fprintf(opts.Stdout, "Seeded Postgres with initial report run (run_id=%s)\n", runID)
	return nil
}
