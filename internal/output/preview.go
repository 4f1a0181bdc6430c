package output

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// PreviewRows is how many rows of each table the console preview shows.
const PreviewRows = 5

// Preview prints the head of each table, skipping the cleaned dataset.
func Preview(w io.Writer, tables []Table) {
	for _, t := range tables {
		if t.Name == NameCleanedData {
			continue
		}
		fmt.Fprintf(w, "\n--- %s (%d rows) ---\n", t.Name, len(t.Rows))
		table := tablewriter.NewWriter(w)
		table.SetHeader(t.Header)
		table.SetAutoFormatHeaders(false)
		rows := t.Rows
		if len(rows) > PreviewRows {
			rows = rows[:PreviewRows]
		}
		table.AppendBulk(rows)
		table.Render()
	}
}
