// Package pipeline runs one report batch: load the order table, compute the
// aggregation reports and the RFM segmentation, then write every output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"sales-kpi-report/internal/config"
	"sales-kpi-report/internal/logging"
	"sales-kpi-report/internal/metrics"
	"sales-kpi-report/internal/orders"
	"sales-kpi-report/internal/output"
	"sales-kpi-report/internal/reports"
	"sales-kpi-report/internal/rfm"
	"sales-kpi-report/internal/store"
)

const topProducts = 5

// Options steers one run. Empty paths disable the matching artifact.
type Options struct {
	Input string
	Sheet string

	OutDir   string
	Workbook string
	Chart    string
	Manifest string
	Preview  bool

	DuckDB          string
	MetricsTextfile string

	// Database enables the Postgres sink when non-nil.
	Database  *store.Config
	DBTimeout time.Duration

	// Dimensions overrides rfm.DefaultDimensions.
	Dimensions []rfm.DimensionConfig

	Stdout io.Writer
	Now    func() time.Time
}

// OptionsFromConfig maps the loaded configuration onto run options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Input:           cfg.Input.Path,
		Sheet:           cfg.Input.Sheet,
		OutDir:          cfg.Output.Dir,
		Workbook:        cfg.Output.Workbook,
		Chart:           cfg.Output.Chart,
		Manifest:        cfg.Output.Manifest,
		Preview:         cfg.Output.Preview,
		DuckDB:          cfg.DuckDB.Path,
		MetricsTextfile: cfg.Metrics.Textfile,
		DBTimeout:       cfg.Database.Timeout,
	}
	if cfg.Database.Enabled {
		opts.Database = &store.Config{
			URL:    cfg.Database.URL,
			Schema: cfg.Database.Schema,
			Tag:    cfg.Database.Tag,
		}
	}
	return opts
}

func (o *Options) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.OutDir == "" {
		o.OutDir = "."
	}
	if o.DBTimeout <= 0 {
		o.DBTimeout = 12 * time.Second
	}
}

// Result is everything one run produced.
type Result struct {
	RunID        string
	Table        *orders.Table
	Reports      *reports.Set
	Segmentation *rfm.Result
	Tables       []output.Table
	Files        []string
	StoredRunID  string
}

// Run executes the batch and records its metrics. No table file is written
// unless loading, every report and the segmentation all succeed.
func Run(ctx context.Context, opts Options) (*Result, error) {
	opts.defaults()
	recorder := metrics.New()
	start := opts.Now()

	result, err := run(ctx, opts, recorder)

	recorder.ObserveRun(opts.Now().Sub(start), err, opts.Now())
	if opts.MetricsTextfile != "" {
		if werr := recorder.WriteTextfile(opts.MetricsTextfile); werr != nil {
			logging.Warn().Err(werr).Str("path", opts.MetricsTextfile).Msg("failed to write metrics textfile")
			if err == nil {
				err = fmt.Errorf("write metrics textfile: %w", werr)
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func run(ctx context.Context, opts Options, recorder *metrics.Recorder) (*Result, error) {
	result, err := Compute(opts)
	if err != nil {
		return nil, err
	}
	recorder.ObserveLoad(result.Table)
	recorder.ObserveUndefined(len(result.Reports.Undefined))
	recorder.ObserveSegmentation(result.Segmentation)

	// File artifacts render before any table is committed, so a bad path
	// fails the run with nothing written.
	var staged []stagedFile
	defer func() {
		for _, f := range staged {
			_ = os.Remove(f.temp)
		}
	}()
	if opts.Workbook != "" {
		f, err := stage(opts.Workbook, func(path string) error {
			return output.WriteWorkbook(path, result.Tables)
		})
		if err != nil {
			return nil, fmt.Errorf("write workbook: %w", err)
		}
		staged = append(staged, f)
	}
	if opts.Chart != "" {
		f, err := stage(opts.Chart, func(path string) error {
			return output.WriteTrendChart(path, result.Reports.Monthly)
		})
		if err != nil {
			return nil, fmt.Errorf("write chart: %w", err)
		}
		staged = append(staged, f)
	}

	result.Files = plannedFiles(opts, result.Tables)
	if opts.Manifest != "" {
		f, err := stage(opts.Manifest, func(path string) error {
			return output.WriteManifest(path, BuildManifest(result, opts.Now()))
		})
		if err != nil {
			return nil, fmt.Errorf("write manifest: %w", err)
		}
		staged = append(staged, f)
	}

	files, err := output.WriteCSV(opts.OutDir, result.Tables)
	if err != nil {
		return nil, fmt.Errorf("write tables: %w", err)
	}
	logging.Info().Int("tables", len(files)).Str("dir", opts.OutDir).Msg("tables written")

	for _, f := range staged {
		if err := os.Rename(f.temp, f.final); err != nil {
			return nil, fmt.Errorf("commit %s: %w", f.final, err)
		}
		logging.Info().Str("path", f.final).Msg("artifact saved")
	}
	staged = nil

	PrintSummary(opts.Stdout, result)
	if opts.Preview {
		output.Preview(opts.Stdout, result.Tables)
	}

	// Database sinks run after the commit; a failure here fails the run but
	// leaves the written files in place.
	if opts.DuckDB != "" {
		if err := store.ExportDuckDB(ctx, opts.DuckDB, result.Tables); err != nil {
			return nil, fmt.Errorf("export duckdb: %w", err)
		}
		logging.Info().Str("path", opts.DuckDB).Msg("duckdb export saved")
	}
	if opts.Database != nil {
		runID, err := storeRun(ctx, opts, result, false)
		if err != nil {
			return nil, err
		}
		result.StoredRunID = runID
		fmt.Fprintf(opts.Stdout, "\nStored report run in Postgres (run_id=%s)\n", runID)
	}
	return result, nil
}

type stagedFile struct {
	temp  string
	final string
}

// stage renders an artifact into a hidden sibling of final, keeping the
// extension so writers that pick a format from it still work.
func stage(final string, write func(path string) error) (stagedFile, error) {
	tmp, err := os.CreateTemp(filepath.Dir(final), ".staging-*"+filepath.Ext(final))
	if err != nil {
		return stagedFile{}, err
	}
	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return stagedFile{}, err
	}
	if err := write(name); err != nil {
		_ = os.Remove(name)
		return stagedFile{}, err
	}
	return stagedFile{temp: name, final: final}, nil
}

// plannedFiles lists every file a successful run leaves behind, tables first.
func plannedFiles(opts Options, tables []output.Table) []string {
	files := make([]string, 0, len(tables)+3)
	for _, t := range tables {
		files = append(files, filepath.Join(opts.OutDir, t.File))
	}
	for _, path := range []string{opts.Workbook, opts.Chart, opts.DuckDB} {
		if path != "" {
			files = append(files, path)
		}
	}
	return files
}

// Compute loads the input and derives every table without writing anything.
func Compute(opts Options) (*Result, error) {
	table, err := orders.Load(opts.Input, orders.Options{Sheet: opts.Sheet})
	if err != nil {
		return nil, err
	}
	logLoad(table)

	set := reports.Build(table)
	for _, u := range set.Undefined {
		logging.Warn().
			Str("table", u.Table).
			Str("key", u.Key).
			Str("metric", u.Metric).
			Msg("undefined ratio, zero denominator")
	}

	segmentation, err := rfm.Run(table, opts.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("rfm segmentation: %w", err)
	}
	logging.Info().
		Int("customers", len(segmentation.Customers)).
		Str("snapshot", orders.FormatDate(segmentation.Snapshot)).
		Msg("customers segmented")

	return &Result{
		RunID:        uuid.NewString(),
		Table:        table,
		Reports:      set,
		Segmentation: segmentation,
		Tables:       output.Build(table, set, segmentation),
	}, nil
}

// Seed computes the reports and stores them only if the database holds no
// runs yet. It returns an empty id when it skipped.
func Seed(ctx context.Context, opts Options) (string, error) {
	opts.defaults()
	if opts.Database == nil {
		return "", errors.New("database is not configured; pass --db with SALES_KPI_DB_URL or DATABASE_URL")
	}
	result, err := Compute(opts)
	if err != nil {
		return "", err
	}
	return storeRun(ctx, opts, result, true)
}

func storeRun(ctx context.Context, opts Options, result *Result, seed bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.DBTimeout)
	defer cancel()

	db, err := store.OpenPostgres(ctx, *opts.Database)
	if err != nil {
		return "", err
	}
	defer db.Close()

	run := store.Run{
		Input:        filepath.Base(opts.Input),
		Orders:       result.Table.Len(),
		KPI:          result.Reports.KPI,
		Monthly:      result.Reports.Monthly,
		Segmentation: result.Segmentation,
	}
	if seed {
		return db.Seed(ctx, run)
	}
	return db.Store(ctx, run)
}

func logLoad(table *orders.Table) {
	logging.Info().
		Str("input", table.Source).
		Int("raw_rows", table.Stats.RawRows).
		Int("orders", table.Len()).
		Int("duplicates_removed", table.Stats.Duplicates).
		Int("blank_rows", table.Stats.BlankRows).
		Msg("orders loaded")

	columns := make([]string, 0, len(table.Stats.Missing))
	for column, n := range table.Stats.Missing {
		if n > 0 {
			columns = append(columns, column)
		}
	}
	sort.Strings(columns)
	for _, column := range columns {
		logging.Warn().Str("column", column).Int("empty", table.Stats.Missing[column]).Msg("missing values")
	}
}

// BuildManifest describes a finished run.
func BuildManifest(result *Result, now time.Time) output.Manifest {
	m := output.Manifest{
		RunID:        result.RunID,
		Input:        result.Table.Source,
		GeneratedAt:  now.UTC(),
		SnapshotDate: orders.FormatDate(result.Segmentation.Snapshot),
		RawRows:      result.Table.Stats.RawRows,
		Orders:       result.Table.Len(),
		Duplicates:   result.Table.Stats.Duplicates,
		Customers:    len(result.Segmentation.Customers),
		Segments:     map[string]int{},
		Files:        result.Files,
	}
	for _, s := range result.Segmentation.Segments {
		m.Segments[string(s.Segment)] = s.Customers
	}
	for _, u := range result.Reports.Undefined {
		m.Undefined = append(m.Undefined, output.UndefinedNote{Table: u.Table, Key: u.Key, Metric: u.Metric})
	}
	return m
}

// PrintSummary writes the headline figures of a run.
func PrintSummary(w io.Writer, result *Result) {
	kpi := result.Reports.KPI
	fmt.Fprintln(w, "Sales KPI Report")
	fmt.Fprintln(w, strings.Repeat("=", 38))
	fmt.Fprintf(w, "Input: %s\n", filepath.Base(result.Table.Source))
	fmt.Fprintf(w, "Snapshot date: %s\n", orders.FormatDate(result.Segmentation.Snapshot))
	fmt.Fprintf(w, "Orders: %d (duplicates removed %d)\n", kpi.TotalOrders, result.Table.Stats.Duplicates)
	fmt.Fprintf(w, "Revenue / profit: %s / %s\n", orders.FormatNumber(kpi.TotalRevenue), orders.FormatNumber(kpi.TotalProfit))
	fmt.Fprintf(w, "Average order value: %s | Average profit margin: %s%%\n",
		orders.FormatNumber(kpi.AverageOrderValue), orders.FormatNumber(kpi.AverageProfitMargin))
	fmt.Fprintf(w, "Unique customers: %d\n", kpi.UniqueCustomers)

	fmt.Fprintln(w, "\nCustomer segments")
	fmt.Fprintln(w, strings.Repeat("-", 38))
	for _, s := range result.Segmentation.Segments {
		fmt.Fprintf(w, "%s | customers %d | avg revenue %s\n", s.Segment, s.Customers, orders.FormatNumber(s.AvgRevenue))
	}

	top := reports.TopProducts(result.Reports.Products, topProducts)
	if len(top) > 0 {
		fmt.Fprintln(w, "\nTop products by revenue")
		fmt.Fprintln(w, strings.Repeat("-", 38))
		for i, p := range top {
			fmt.Fprintf(w, "%d. %s | revenue %s | profit %s\n", i+1, p.Product, orders.FormatNumber(p.Revenue), orders.FormatNumber(p.Profit))
		}
	}

	if len(result.Files) > 0 {
		fmt.Fprintf(w, "\nTables saved to %s\n", filepath.Dir(result.Files[0]))
	}
}
