// Package export writes the aggregated category table as CSV for the
// downstream rendering layer.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/GengGeng026/habitboard/internal/model"
)

// WriteCSV writes the table to path with a Category,Total Minutes
// header, creating parent directories as needed.
func WriteCSV(path string, table model.Table) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Category", "Total Minutes"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range table {
		record := []string{row.Category, strconv.FormatFloat(row.Total, 'f', -1, 64)}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	return nil
}

// Remove deletes the exported table if present. Used on reset: the
// table is derived from the checkpointed fetch, so clearing one
// invalidates the other.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove export file: %w", err)
	}
	return nil
}
