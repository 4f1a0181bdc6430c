package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"sales-kpi-report/internal/output"
)

// ExportDuckDB writes each table into the DuckDB database at path, replacing
// tables of the same name. Columns whose every non-empty value is numeric
// become DOUBLE; everything else is VARCHAR.
func ExportDuckDB(ctx context.Context, path string, tables []output.Table) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create duckdb directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if err := exportTable(ctx, tx, t); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("export %s: %w", t.Name, err)
		}
	}
	return tx.Commit()
}

func exportTable(ctx context.Context, tx *sql.Tx, t output.Table) error {
	numeric := numericColumns(t)

	columns := make([]string, len(t.Header))
	placeholders := make([]string, len(t.Header))
	for i, name := range t.Header {
		kind := "VARCHAR"
		if numeric[i] {
			kind = "DOUBLE"
		}
		columns[i] = quoteIdent(name) + " " + kind
		placeholders[i] = "?"
	}

	table := quoteIdent(t.Name)
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(columns, ", "))); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, strings.Join(placeholders, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]interface{}, len(t.Header))
	for _, row := range t.Rows {
		for i := range t.Header {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			switch {
			case value == "":
				args[i] = nil
			case numeric[i]:
				parsed, _ := strconv.ParseFloat(value, 64)
				if math.IsNaN(parsed) {
					args[i] = nil
				} else {
					args[i] = parsed
				}
			default:
				args[i] = value
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

func numericColumns(t output.Table) []bool {
	numeric := make([]bool, len(t.Header))
	for i := range t.Header {
		if t.IsText(i) {
			continue
		}
		seen := false
		numeric[i] = true
		for _, row := range t.Rows {
			if i >= len(row) || row[i] == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(row[i], 64); err != nil {
				numeric[i] = false
				break
			}
		}
		if !seen {
			numeric[i] = false
		}
	}
	return numeric
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
