package tabular

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSheetmap_Tabular_NewTable_PadsRaggedRows(t *testing.T) {
	t.Parallel()

	table := NewTable(
		[]string{"a", "b", "c"},
		[][]string{
			{"1"},
			{"1", "2", "3", "4"},
		},
	)

	require.Equal(t, []string{"1", "", ""}, table.Rows[0])
	require.Equal(t, []string{"1", "2", "3"}, table.Rows[1])
}

func TestSheetmap_Tabular_ColumnLookup(t *testing.T) {
	t.Parallel()

	table := NewTable(
		[]string{"Acct No", "Bal"},
		[][]string{{"AC1", "100"}, {"AC2", "200"}},
	)

	require.Equal(t, 0, table.ColumnIndex("Acct No"))
	require.Equal(t, -1, table.ColumnIndex("acct no")) // exact match only
	require.True(t, table.HasColumn("Bal"))
	require.Equal(t, []string{"100", "200"}, table.Column("Bal"))
	require.Nil(t, table.Column("missing"))
}

func TestSheetmap_Tabular_SampleRecords(t *testing.T) {
	t.Parallel()

	table := NewTable(
		[]string{"Acct No", "Bal"},
		[][]string{{"AC1", "100"}, {"AC2", "200"}, {"AC3", "300"}},
	)

	records := table.SampleRecords(2)
	require.Len(t, records, 2)
	require.Equal(t, map[string]string{"Acct No": "AC1", "Bal": "100"}, records[0])

	// Asking for more rows than exist returns them all.
	require.Len(t, table.SampleRecords(10), 3)
}

func TestSheetmap_Tabular_CSVRoundTrip(t *testing.T) {
	t.Parallel()

	table := NewTable(
		[]string{"account_id", "balance", "open_date"},
		[][]string{
			{"AC1", "100.50", "2020-01-15"},
			{"AC2", "", "2021-06-30"}, // missing value stays an empty field
		},
	)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))

	parsed, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Equal(t, table.Columns, parsed.Columns)
	require.Equal(t, table.Rows, parsed.Rows)
}

func TestSheetmap_Tabular_ReadCSV_EmptyInput(t *testing.T) {
	t.Parallel()

	_, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)
}

func TestSheetmap_Tabular_Clone_IsIndependent(t *testing.T) {
	t.Parallel()

	table := NewTable([]string{"a"}, [][]string{{"1"}})
	clone := table.Clone()
	clone.Rows[0][0] = "changed"
	require.Equal(t, "1", table.Rows[0][0])
}
