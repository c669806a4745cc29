package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cubegraph/cubegraph/internal/cube"
)

// ExportCSV writes table to dir/<cleanLabel>.csv and returns the file path.
func ExportCSV(dir string, table *cube.Table) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}
	path := filepath.Join(dir, table.Dataset.CleanLabel+".csv")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(table.Columns()); err != nil {
		return "", fmt.Errorf("failed to write export header: %w", err)
	}
	record := make([]string, 0, len(table.Dimensions)+3)
	for _, row := range table.Rows {
		record = append(record[:0], row.Index)
		record = append(record, row.Values...)
		record = append(record, row.MeasureType, row.Value)
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to write export row %s: %w", row.Index, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush export: %w", err)
	}
	return path, f.Close()
}
