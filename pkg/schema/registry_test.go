package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSheetmap_Schema_NewRegistry_LowercasesNames(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry([]*TargetColumn{
		{Name: "Account_ID", DataType: "string"},
		{Name: " Balance ", DataType: "number"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"account_id", "balance"}, r.Names())

	col, ok := r.ByName("ACCOUNT_ID")
	require.True(t, ok)
	require.Equal(t, "account_id", col.Name)
}

func TestSheetmap_Schema_NewRegistry_RejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry([]*TargetColumn{
		{Name: "balance"},
		{Name: "Balance"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")
}

func TestSheetmap_Schema_NewRegistry_RejectsEmptyName(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry([]*TargetColumn{{Name: "  "}})
	require.Error(t, err)
}

func TestSheetmap_Schema_MergeAliases_PreservesOrderAndDedups(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry([]*TargetColumn{
		{Name: "account_id", HistoricalVariations: []string{"Acct No", "Account #"}},
		{Name: "balance"},
	})
	require.NoError(t, err)

	r.MergeAliases(map[string][]string{
		"account_id": {"Account #", "AcctNum"},
		"balance":    {"Bal"},
		"unknown":    {"Ignored"},
	})

	acct, _ := r.ByName("account_id")
	require.Equal(t, []string{"Acct No", "Account #", "AcctNum"}, acct.HistoricalVariations)

	bal, _ := r.ByName("balance")
	require.Equal(t, []string{"Bal"}, bal.HistoricalVariations)
}

func TestSheetmap_Schema_AddVariation_Idempotent(t *testing.T) {
	t.Parallel()

	col := &TargetColumn{Name: "status"}
	require.True(t, col.AddVariation("Acct Status"))
	require.False(t, col.AddVariation("Acct Status"))
	require.False(t, col.AddVariation(""))
	require.Equal(t, []string{"Acct Status"}, col.HistoricalVariations)
}

func TestSheetmap_Schema_CombinedAliases(t *testing.T) {
	t.Parallel()

	col := &TargetColumn{
		Name:                 "open_date",
		HistoricalVariations: []string{"Open Dt", "Opened"},
	}

	combined := col.CombinedAliases([]string{"Opened", "Date Opened"})
	require.Equal(t, []string{"Open Dt", "Opened", "Date Opened"}, combined)

	// Input slices are not mutated.
	require.Equal(t, []string{"Open Dt", "Opened"}, col.HistoricalVariations)
}

func TestSheetmap_Schema_DefaultColumns(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(DefaultColumns())
	require.NoError(t, err)
	require.Equal(t, []string{"account_id", "balance", "open_date", "status", "customer_name"}, r.Names())
}
