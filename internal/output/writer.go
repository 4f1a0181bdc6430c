package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// WriteCSV renders every table into a staging directory under dir and moves
// the files into place only once all of them rendered. On error nothing in
// dir is replaced. It returns the final file paths in table order.
func WriteCSV(dir string, tables []Table) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output folder: %w", err)
	}
	stage, err := os.MkdirTemp(dir, ".staging-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging folder: %w", err)
	}
	defer os.RemoveAll(stage)

	for _, t := range tables {
		if err := writeTableFile(filepath.Join(stage, t.File), t); err != nil {
			return nil, fmt.Errorf("write %s: %w", t.File, err)
		}
	}

	paths := make([]string, 0, len(tables))
	for _, t := range tables {
		final := filepath.Join(dir, t.File)
		if err := os.Rename(filepath.Join(stage, t.File), final); err != nil {
			return paths, fmt.Errorf("commit %s: %w", t.File, err)
		}
		paths = append(paths, final)
	}
	return paths, nil
}

func writeTableFile(path string, t Table) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(t.Header); err != nil {
		return err
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}
