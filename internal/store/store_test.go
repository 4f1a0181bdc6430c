package store

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sales-kpi-report/internal/output"
	"sales-kpi-report/internal/reports"
	"sales-kpi-report/internal/rfm"
)

func TestSanitizeSchema(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
	}{
		{"sales_kpi", true},
		{" _reports2 ", true},
		{"", false},
		{"1abc", false},
		{"bad;drop", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := SanitizeSchema(tt.input)
			if (err == nil) != tt.ok {
				t.Fatalf("SanitizeSchema(%q) err=%v, want ok=%v", tt.input, err, tt.ok)
			}
		})
	}
}

func TestNullFloat(t *testing.T) {
	if nullFloat(math.NaN()).Valid {
		t.Fatal("NaN must be stored as NULL")
	}
	if v := nullFloat(12.5); !v.Valid || v.Float64 != 12.5 {
		t.Fatalf("unexpected %+v", v)
	}
}

func TestOpenPostgresRequiresURL(t *testing.T) {
	if _, err := OpenPostgres(context.Background(), Config{Schema: "x"}); err == nil {
		t.Fatal("expected error without URL")
	}
}

func TestPostgresStoreRun(t *testing.T) {
	url := os.Getenv("SALES_KPI_TEST_DB_URL")
	if url == "" {
		t.Skip("SALES_KPI_TEST_DB_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := OpenPostgres(ctx, Config{URL: url, Schema: "sales_kpi_test", Tag: "test"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer pg.Close()

	before, _ := pg.RunCount(ctx)
	run := Run{
		Input:  "orders.csv",
		Orders: 1,
		KPI:    reports.KPISummary{TotalRevenue: 10, AverageProfitMargin: math.NaN()},
		Segmentation: &rfm.Result{
			Snapshot: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Customers: []rfm.Customer{{
				Profile: rfm.Profile{CustomerID: "A", Recency: 1, Frequency: 1, Monetary: 10},
				RScore:  4, FScore: 1, MScore: 1, RFMScore: 6, Segment: rfm.SegmentPotential,
			}},
			Segments: []rfm.SegmentSummary{{Segment: rfm.SegmentPotential, Customers: 1, AvgRevenue: 10}},
		},
	}
	id, err := pg.Store(ctx, run)
	if err != nil || id == "" {
		t.Fatalf("store: id=%q err=%v", id, err)
	}
	after, _ := pg.RunCount(ctx)
	if after != before+1 {
		t.Fatalf("expected run count %d, got %d", before+1, after)
	}
}

func TestExportDuckDBKeepsIdentifiersAsText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.duckdb")
	customers := output.Table{
		Name:        "rfm_segmentation",
		Header:      []string{"CustomerID", "Monetary"},
		Rows:        [][]string{{"007", "12.5"}, {"9007199254740993", "8"}},
		TextColumns: []string{"CustomerID"},
	}
	ctx := context.Background()
	if err := ExportDuckDB(ctx, path, []output.Table{customers}); err != nil {
		t.Fatalf("export: %v", err)
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	defer db.Close()

	var ids []string
	rows, err := db.QueryContext(ctx, `SELECT "CustomerID" FROM "rfm_segmentation" ORDER BY "Monetary" DESC`)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan: %v", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(ids) != 2 || ids[0] != "007" || ids[1] != "9007199254740993" {
		t.Fatalf("expected identifiers kept verbatim, got %v", ids)
	}
}

func TestExportDuckDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.duckdb")
	segments := output.Table{
		Name:   "segment_summary",
		Header: []string{"Segment", "Customers", "AvgRevenue"},
		Rows:   [][]string{{"High-Value", "2", "150.5"}, {"Potential", "1", "NaN"}},
	}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := ExportDuckDB(ctx, path, []output.Table{segments}); err != nil {
			t.Fatalf("export %d: %v", i, err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "segment_summary"`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected table replaced with 2 rows, got %d", count)
	}
	var customers float64
	if err := db.QueryRowContext(ctx, `SELECT "Customers" FROM "segment_summary" WHERE "Segment" = 'High-Value'`).Scan(&customers); err != nil {
		t.Fatalf("select: %v", err)
	}
	if customers != 2 {
		t.Fatalf("expected 2 customers, got %v", customers)
	}
}
