package export

import (
	"bytes"
	"encoding/csv"

	"worklistcore/internal/plate"
	"worklistcore/internal/worklist"
	"worklistcore/pkg/domain"
)

// WorklistCSV renders a worklist under domain.Columns.
func WorklistCSV(wl worklist.Worklist) ([]byte, error) {
	records := make([][]string, 0, len(wl.Rows))
	for _, row := range wl.Rows {
		records = append(records, row.Record())
	}
	return table(domain.Columns, records)
}

// SummaryCSV renders the input summary.
func SummaryCSV(s worklist.Summary) ([]byte, error) {
	return table(worklist.SummaryColumns, s.Records())
}

// PlateCSV renders a plate in grid layout.
func PlateCSV(p *plate.Plate) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.WriteGrid(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func table(header []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
