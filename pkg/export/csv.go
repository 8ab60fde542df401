package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"
)

// Column maps a row key to the label shown in rendered output.
type Column struct {
	Key   string
	Label string
}

// Report is a tabular snapshot of a moderation queue.
type Report struct {
	Title       string
	GeneratedAt time.Time
	Columns     []Column
	Rows        []map[string]string
}

// CSVRenderer renders reports as CSV.
type CSVRenderer struct{}

// NewCSVRenderer builds a CSV renderer.
func NewCSVRenderer() *CSVRenderer {
	return &CSVRenderer{}
}

// Render encodes the report as one header row of column labels followed by
// one record per row. Keys absent from a row render as empty cells.
func (r *CSVRenderer) Render(report Report) ([]byte, error) {
	if len(report.Columns) == 0 {
		return nil, fmt.Errorf("report has no columns")
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	labels := make([]string, len(report.Columns))
	for i, col := range report.Columns {
		labels[i] = col.Label
	}
	if err := w.Write(labels); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(report.Columns))
	for _, row := range report.Rows {
		for i, col := range report.Columns {
			record[i] = row[col.Key]
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
