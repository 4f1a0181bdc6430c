package output

import (
	"os"
	"time"

	"github.com/goccy/go-json"
)

// Manifest describes one completed run.
type Manifest struct {
	RunID        string          `json:"run_id"`
	Input        string          `json:"input"`
	GeneratedAt  time.Time       `json:"generated_at"`
	SnapshotDate string          `json:"snapshot_date"`
	RawRows      int             `json:"raw_rows"`
	Orders       int             `json:"orders"`
	Duplicates   int             `json:"duplicates_removed"`
	Customers    int             `json:"customers"`
	Segments     map[string]int  `json:"segments"`
	Undefined    []UndefinedNote `json:"undefined_ratios,omitempty"`
	Files        []string        `json:"files"`
}

// UndefinedNote names a ratio written as NaN.
type UndefinedNote struct {
	Table  string `json:"table"`
	Key    string `json:"key,omitempty"`
	Metric string `json:"metric"`
}

// WriteManifest stores m as indented JSON.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
