package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// Workbook appends rows to an xlsx file, one sheet per destination.
type Workbook struct {
	path string
	mu   sync.Mutex
}

func NewWorkbook(path string) *Workbook {
	return &Workbook{path: path}
}

func (w *Workbook) Write(_ context.Context, destination string, rows [][]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	next, err := ensureSheet(f, destination)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if err := setRow(f, destination, next, row); err != nil {
			return err
		}
		next++
	}

	if idx, err := f.GetSheetIndex(defaultSheet); err == nil && idx >= 0 && f.SheetCount > 1 {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("failed to drop default sheet: %w", err)
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func (w *Workbook) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return f, nil
}

// ensureSheet creates the sheet with its header row when missing and returns
// the next free row number.
func ensureSheet(f *excelize.File, sheet string) (int, error) {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return 0, fmt.Errorf("failed to look up sheet %s: %w", sheet, err)
	}

	if idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return 0, fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
		if err := setRow(f, sheet, 1, Headers[sheet]); err != nil {
			return 0, err
		}
		return 2, nil
	}

	existing, err := f.GetRows(sheet)
	if err != nil {
		return 0, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return len(existing) + 1, nil
}

func setRow(f *excelize.File, sheet string, row int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}

	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}
