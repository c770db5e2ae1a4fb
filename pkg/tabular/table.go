// Package tabular holds the in-memory table shape shared by the whole
// pipeline: ordered column names and string-valued rows. Values are carried
// verbatim from the source file; nothing here coerces types.
package tabular

// Table is one sheet's worth of data.
type Table struct {
	Columns []string
	Rows    [][]string // each row padded to len(Columns)
}

// NewTable builds a table, padding or truncating ragged rows to the
// column count.
func NewTable(columns []string, rows [][]string) *Table {
	t := &Table{
		Columns: append([]string(nil), columns...),
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, row := range rows {
		t.Rows = append(t.Rows, padRow(row, len(columns)))
	}
	return t
}

func padRow(row []string, width int) []string {
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of an exactly-named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Column returns all values of the named column in row order, or nil if
// the column does not exist.
func (t *Table) Column(name string) []string {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values
}

// SampleRecords returns up to n leading rows as column-keyed records, the
// shape serialized into classification prompts.
func (t *Table) SampleRecords(n int) []map[string]string {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	records := make([]map[string]string, 0, n)
	for _, row := range t.Rows[:n] {
		rec := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			rec[col] = row[i]
		}
		records = append(records, rec)
	}
	return records
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	return NewTable(t.Columns, t.Rows)
}
