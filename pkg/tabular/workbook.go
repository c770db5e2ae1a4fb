package tabular

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Workbook is a parsed spreadsheet: sheet names in file order, each with
// its table. Sheets that could not be read into a table are absent from
// Tables but still listed in Sheets.
type Workbook struct {
	Sheets []string
	Tables map[string]*Table
}

// Table returns the named sheet's table, if present.
func (w *Workbook) Table(sheet string) (*Table, bool) {
	t, ok := w.Tables[sheet]
	return t, ok
}

// HasSheet reports whether the workbook contains the named sheet.
func (w *Workbook) HasSheet(sheet string) bool {
	for _, s := range w.Sheets {
		if s == sheet {
			return true
		}
	}
	return false
}

// ReadWorkbook parses a spreadsheet file into a Workbook. The first row of
// each sheet is its header; sheets with no rows at all are skipped. CSV
// input is treated as a single-sheet workbook named after the file.
func ReadWorkbook(path string) (*Workbook, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return readCSVWorkbook(path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	wb := &Workbook{
		Sheets: f.GetSheetList(),
		Tables: make(map[string]*Table),
	}
	for _, sheet := range wb.Sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		wb.Tables[sheet] = NewTable(rows[0], rows[1:])
	}
	return wb, nil
}

func readCSVWorkbook(path string) (*Workbook, error) {
	table, err := ReadCSVFile(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &Workbook{
		Sheets: []string{name},
		Tables: map[string]*Table{name: table},
	}, nil
}
