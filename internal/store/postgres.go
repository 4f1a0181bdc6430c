// Package store persists report runs to Postgres and exports the report
// tables to a DuckDB file for dashboard tools.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"sales-kpi-report/internal/reports"
	"sales-kpi-report/internal/rfm"
)

// Config selects the Postgres target.
type Config struct {
	URL    string
	Schema string
	Tag    string
}

// Run is what gets persisted for one pipeline execution.
type Run struct {
	Input        string
	Orders       int
	KPI          reports.KPISummary
	Monthly      []reports.MonthlyTrend
	Segmentation *rfm.Result
}

var schemaPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SanitizeSchema rejects anything that is not a plain SQL identifier, since
// the schema name is interpolated into DDL.
func SanitizeSchema(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("db schema is required")
	}
	if !schemaPattern.MatchString(value) {
		return "", fmt.Errorf("invalid schema name: %s", value)
	}
	return value, nil
}

// Postgres stores report runs in a dedicated schema.
type Postgres struct {
	db     *sql.DB
	schema string
	tag    string
}

// OpenPostgres connects and pings within ctx.
func OpenPostgres(ctx context.Context, cfg Config) (*Postgres, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL missing; set SALES_KPI_DB_URL or DATABASE_URL")
	}
	schema, err := SanitizeSchema(cfg.Schema)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return &Postgres{db: db, schema: schema, tag: cfg.Tag}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Seed stores run only if the schema holds no runs yet. It returns an empty
// id when it skipped.
func (p *Postgres) Seed(ctx context.Context, run Run) (string, error) {
	if err := p.EnsureSchema(ctx); err != nil {
		return "", err
	}
	count, err := p.RunCount(ctx)
	if err != nil {
		return "", err
	}
	if count > 0 {
		return "", nil
	}
	return p.storeTx(ctx, run)
}

// Store persists run and returns its id.
func (p *Postgres) Store(ctx context.Context, run Run) (string, error) {
	if err := p.EnsureSchema(ctx); err != nil {
		return "", err
	}
	return p.storeTx(ctx, run)
}

func (p *Postgres) storeTx(ctx context.Context, run Run) (string, error) {
	if run.Segmentation == nil {
		return "", errors.New("store: run has no segmentation result")
	}
	runID := uuid.New()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.report_runs (
			id, input, snapshot_date, orders, customers,
			total_revenue, total_profit, average_order_value, total_orders,
			unique_customers, average_profit_margin, run_tag
		) VALUES (
			$1,$2,$3,$4,$5,
			$6,$7,$8,$9,
			$10,$11,$12
		)`, p.schema),
		runID,
		run.Input,
		dateOnly(run.Segmentation.Snapshot),
		run.Orders,
		len(run.Segmentation.Customers),
		run.KPI.TotalRevenue,
		run.KPI.TotalProfit,
		nullFloat(run.KPI.AverageOrderValue),
		run.KPI.TotalOrders,
		run.KPI.UniqueCustomers,
		nullFloat(run.KPI.AverageProfitMargin),
		nullString(p.tag),
	)
	if err != nil {
		return "", err
	}

	insertCustomerSQL := fmt.Sprintf(`
		INSERT INTO %s.report_rfm_customers (
			id, run_id, customer_id, recency, frequency, monetary,
			r_score, f_score, m_score, rfm_score, segment
		) VALUES (
			$1,$2,$3,$4,$5,$6,
			$7,$8,$9,$10,$11
		)`, p.schema)

	for _, c := range run.Segmentation.Customers {
		_, err = tx.ExecContext(ctx, insertCustomerSQL,
			uuid.New(),
			runID,
			c.CustomerID,
			c.Recency,
			c.Frequency,
			c.Monetary,
			c.RScore,
			c.FScore,
			c.MScore,
			c.RFMScore,
			string(c.Segment),
		)
		if err != nil {
			return "", err
		}
	}

	insertSegmentSQL := fmt.Sprintf(`
		INSERT INTO %s.report_segment_summary (
			id, run_id, segment, customers, avg_revenue
		) VALUES (
			$1,$2,$3,$4,$5
		)`, p.schema)

	for _, s := range run.Segmentation.Segments {
		_, err = tx.ExecContext(ctx, insertSegmentSQL,
			uuid.New(),
			runID,
			string(s.Segment),
			s.Customers,
			s.AvgRevenue,
		)
		if err != nil {
			return "", err
		}
	}

	insertMonthSQL := fmt.Sprintf(`
		INSERT INTO %s.report_monthly_sales (
			id, run_id, month, revenue, profit, orders, profit_margin
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7
		)`, p.schema)

	for _, m := range run.Monthly {
		_, err = tx.ExecContext(ctx, insertMonthSQL,
			uuid.New(),
			runID,
			m.Month,
			m.Revenue,
			m.Profit,
			m.Orders,
			nullFloat(m.ProfitMargin),
		)
		if err != nil {
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return runID.String(), nil
}

// EnsureSchema creates the schema and tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	schema := p.schema
	if _, err := p.db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema)); err != nil {
		return err
	}

	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.report_runs (
			id uuid PRIMARY KEY,
			input text NOT NULL,
			snapshot_date date NOT NULL,
			orders integer NOT NULL,
			customers integer NOT NULL,
			total_revenue double precision NOT NULL,
			total_profit double precision NOT NULL,
			average_order_value double precision,
			total_orders integer NOT NULL,
			unique_customers integer NOT NULL,
			average_profit_margin double precision,
			run_tag text,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.report_rfm_customers (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.report_runs(id) ON DELETE CASCADE,
			customer_id text NOT NULL,
			recency integer NOT NULL,
			frequency integer NOT NULL,
			monetary double precision NOT NULL,
			r_score smallint NOT NULL,
			f_score smallint NOT NULL,
			m_score smallint NOT NULL,
			rfm_score smallint NOT NULL,
			segment text NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.report_segment_summary (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.report_runs(id) ON DELETE CASCADE,
			segment text NOT NULL,
			customers integer NOT NULL,
			avg_revenue double precision NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.report_monthly_sales (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.report_runs(id) ON DELETE CASCADE,
			month text NOT NULL,
			revenue double precision NOT NULL,
			profit double precision NOT NULL,
			orders integer NOT NULL,
			profit_margin double precision,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_report_rfm_customers_run_idx ON %s.report_rfm_customers (run_id)`, schema, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_report_rfm_customers_segment_idx ON %s.report_rfm_customers (segment)`, schema, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_report_segment_summary_run_idx ON %s.report_segment_summary (run_id)`, schema, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_report_monthly_sales_run_idx ON %s.report_monthly_sales (run_id)`, schema, schema),
	}
	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// RunCount returns the number of stored runs.
func (p *Postgres) RunCount(ctx context.Context) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s.report_runs`, p.schema)).Scan(&count)
	return count, err
}

func nullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

// nullFloat stores undefined ratios as NULL.
func nullFloat(value float64) sql.NullFloat64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: value, Valid: true}
}

func dateOnly(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, value.Location())
}
