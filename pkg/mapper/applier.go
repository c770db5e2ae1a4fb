package mapper

import (
	"sort"

	"github.com/ledgerline/sheetmap/pkg/tabular"
)

// Apply projects the source table into the canonical target shape. Output
// columns follow targetOrder (registry order), not mapping insertion
// order; targets with no mapping, or whose mapped source column is gone,
// simply do not appear. Values are copied verbatim, row order preserved.
func Apply(source *tabular.Table, mapping map[string]string, targetOrder []string) *tabular.Table {
	var (
		outColumns []string
		srcIndices []int
	)
	for _, target := range targetOrder {
		sourceName, ok := mapping[target]
		if !ok {
			continue
		}
		idx := source.ColumnIndex(sourceName)
		if idx < 0 {
			continue
		}
		outColumns = append(outColumns, target)
		srcIndices = append(srcIndices, idx)
	}

	rows := make([][]string, len(source.Rows))
	for i, srcRow := range source.Rows {
		row := make([]string, len(outColumns))
		for j, idx := range srcIndices {
			row[j] = srcRow[idx]
		}
		rows[i] = row
	}

	return &tabular.Table{Columns: outColumns, Rows: rows}
}

// DeleteRows returns a copy of the table without the given row indices.
// Indices not present are ignored, which makes the operation idempotent.
func DeleteRows(t *tabular.Table, indices map[int]struct{}) *tabular.Table {
	out := &tabular.Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]string, 0, len(t.Rows)),
	}
	for i, row := range t.Rows {
		if _, drop := indices[i]; drop {
			continue
		}
		out.Rows = append(out.Rows, append([]string(nil), row...))
	}
	return out
}

// RowIndexSet builds the index set DeleteRows takes, ignoring negatives.
func RowIndexSet(indices ...int) map[int]struct{} {
	set := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if i < 0 {
			continue
		}
		set[i] = struct{}{}
	}
	return set
}

// SortedKeys returns the mapping's target names sorted, for stable logs.
func SortedKeys(mapping map[string]string) []string {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
