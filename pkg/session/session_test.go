package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/sheetmap/pkg/aliasstore"
	"github.com/ledgerline/sheetmap/pkg/logger"
	"github.com/ledgerline/sheetmap/pkg/schema"
	"github.com/ledgerline/sheetmap/pkg/tabular"
)

// sessionOracle plays both classifier roles: it answers the sheet
// question with a fixed sheet name and each column question from a
// script keyed by target name.
type sessionOracle struct {
	sheet   string
	columns map[string]string // target name -> source column

	mu          sync.Mutex
	sheetCalls  int
	columnCalls int
}

func (o *sessionOracle) Complete(_ context.Context, _ string, prompt string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if strings.HasPrefix(prompt, "You are tasked with identifying which sheet") {
		o.sheetCalls++
		return fmt.Sprintf(`{"target_sheet": %q}`, o.sheet), nil
	}
	o.columnCalls++
	for target, source := range o.columns {
		marker := fmt.Sprintf("the column that represents '%s'", target)
		if strings.Contains(prompt, marker) {
			return fmt.Sprintf(`{%q: %q}`, target, source), nil
		}
	}
	return `{"answer": "no idea"}`, nil
}

func (o *sessionOracle) calls() (sheet, column int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sheetCalls, o.columnCalls
}

func testLogger() *slog.Logger {
	return logger.NewWithWriter(os.Stderr, false)
}

func testColumns() []*schema.TargetColumn {
	return []*schema.TargetColumn{
		{Name: "account_id", DataType: "string", Description: "Unique account identifier"},
		{Name: "balance", DataType: "number", Description: "Current balance"},
	}
}

func testWorkbook() *tabular.Workbook {
	return &tabular.Workbook{
		Sheets: []string{"Notes", "Accounts"},
		Tables: map[string]*tabular.Table{
			"Notes": tabular.NewTable(
				[]string{"Comment"},
				[][]string{{"reviewed by ops"}},
			),
			"Accounts": tabular.NewTable(
				[]string{"Acct No", "Bal", "Branch"},
				[][]string{
					{"AC1", "100.00", "North"},
					{"AC2", "250.75", "South"},
				},
			),
		},
	}
}

func newTestSession(t *testing.T, oracle *sessionOracle) *Session {
	t.Helper()
	store := aliasstore.New(filepath.Join(t.TempDir(), "aliases.json"), testLogger())
	s, err := New(Config{
		Logger:     testLogger(),
		Oracle:     oracle,
		AliasStore: store,
		Workers:    2,
	})
	require.NoError(t, err)
	return s
}

func identified(t *testing.T, oracle *sessionOracle) *Session {
	t.Helper()
	s := newTestSession(t, oracle)
	require.NoError(t, s.SelectTable("public.accounts", testColumns()))
	require.NoError(t, s.LoadWorkbook(testWorkbook()))
	require.NoError(t, s.Identify(context.Background(), ""))
	return s
}

func TestSheetmap_Session_Identify_FullFlow(t *testing.T) {
	t.Parallel()

	oracle := &sessionOracle{
		sheet:   "Accounts",
		columns: map[string]string{"account_id": "Acct No", "balance": "Bal"},
	}
	s := identified(t, oracle)

	require.Equal(t, "Accounts", s.Sheet())
	require.Equal(t, map[string]string{"account_id": "Acct No", "balance": "Bal"}, s.Mapping())

	formatted := s.Formatted()
	require.NotNil(t, formatted)
	require.Equal(t, []string{"account_id", "balance"}, formatted.Columns)
	require.Equal(t, [][]string{{"AC1", "100.00"}, {"AC2", "250.75"}}, formatted.Rows)
}

func TestSheetmap_Session_Identify_RequiresTableAndWorkbook(t *testing.T) {
	t.Parallel()

	oracle := &sessionOracle{sheet: "Accounts"}
	s := newTestSession(t, oracle)

	require.Error(t, s.LoadWorkbook(testWorkbook()))
	require.Error(t, s.Identify(context.Background(), ""))

	require.NoError(t, s.SelectTable("public.accounts", testColumns()))
	require.Error(t, s.Identify(context.Background(), ""))
}

func TestSheetmap_Session_Identify_SheetFailureAbortsRun(t *testing.T) {
	t.Parallel()

	// The oracle names a sheet that does not exist in the workbook.
	oracle := &sessionOracle{sheet: "Summary"}
	s := newTestSession(t, oracle)
	require.NoError(t, s.SelectTable("public.accounts", testColumns()))
	require.NoError(t, s.LoadWorkbook(testWorkbook()))

	err := s.Identify(context.Background(), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "sheet identification")

	_, columnCalls := oracle.calls()
	require.Zero(t, columnCalls)
	require.Empty(t, s.Sheet())
	require.Nil(t, s.Formatted())
}

func TestSheetmap_Session_Identify_PartialColumnFailure(t *testing.T) {
	t.Parallel()

	// Only account_id is scripted; balance gets an off-contract answer.
	oracle := &sessionOracle{
		sheet:   "Accounts",
		columns: map[string]string{"account_id": "Acct No"},
	}
	s := identified(t, oracle)

	require.Equal(t, map[string]string{"account_id": "Acct No"}, s.Mapping())
	require.Equal(t, []string{"account_id"}, s.Formatted().Columns)
}

func TestSheetmap_Session_Identify_LearnsAliases(t *testing.T) {
	t.Parallel()

	oracle := &sessionOracle{
		sheet:   "Accounts",
		columns: map[string]string{"account_id": "Acct No", "balance": "Bal"},
	}
	store := aliasstore.New(filepath.Join(t.TempDir(), "aliases.json"), testLogger())
	s, err := New(Config{Logger: testLogger(), Oracle: oracle, AliasStore: store})
	require.NoError(t, err)

	require.NoError(t, s.SelectTable("public.accounts", testColumns()))
	require.NoError(t, s.LoadWorkbook(testWorkbook()))
	require.NoError(t, s.Identify(context.Background(), ""))

	partition, err := store.Partition("public.accounts")
	require.NoError(t, err)
	require.Equal(t, []string{"Acct No"}, partition["account_id"])
	require.Equal(t, []string{"Bal"}, partition["balance"])
}

func TestSheetmap_Session_OverrideSheet_DiscardsStaleMapping(t *testing.T) {
	t.Parallel()

	oracle := &sessionOracle{
		sheet:   "Accounts",
		columns: map[string]string{"account_id": "Acct No", "balance": "Bal"},
	}
	s := identified(t, oracle)

	// The Notes sheet has none of the scripted columns, so remapping
	// against it produces an empty mapping rather than a stale one.
	require.NoError(t, s.OverrideSheet(context.Background(), "Notes"))
	require.Equal(t, "Notes", s.Sheet())
	require.Empty(t, s.Mapping())
	require.Empty(t, s.Formatted().Columns)
}

func TestSheetmap_Session_OverrideSheet_UnknownSheet(t *testing.T) {
	t.Parallel()

	oracle := &sessionOracle{
		sheet:   "Accounts",
		columns: map[string]string{"account_id": "Acct No", "balance": "Bal"},
	}
	s := identified(t, oracle)

	require.Error(t, s.OverrideSheet(context.Background(), "Nope"))
	require.Equal(t, "Accounts", s.Sheet())
}

func TestSheetmap_Session_OverrideColumn_NoOracleCall(t *testing.T) {
	t.Parallel()

	oracle := &sessionOracle{
		sheet:   "Accounts",
		columns: map[string]string{"account_id": "Acct No", "balance": "Bal"},
	}
	s := identified(t, oracle)
	_, callsBefore := oracle.calls()

	require.NoError(t, s.OverrideColumn("balance", "Branch"))

	_, callsAfter := oracle.calls()
	require.Equal(t, callsBefore, callsAfter)
	require.Equal(t, "Branch", s.Mapping()["balance"])
	require.Equal(t, [][]string{{"AC1", "North"}, {"AC2", "South"}}, s.Formatted().Rows)
}

func TestSheetmap_Session_OverrideColumn_Validation(t *testing.T) {
	t.Parallel()

	oracle := &sessionOracle{
		sheet:   "Accounts",
		columns: map[string]string{"account_id": "Acct No", "balance": "Bal"},
	}
	s := identified(t, oracle)

	require.Error(t, s.OverrideColumn("no_such_target", "Bal"))
	require.Error(t, s.OverrideColumn("balance", "No Such Column"))
	// Target lookup is case-insensitive like the registry itself.
	require.NoError(t, s.OverrideColumn("BALANCE", "Bal"))
}

func TestSheetmap_Session_ClearColumn(t *testing.T) {
	t.Parallel()

	oracle := &sessionOracle{
		sheet:   "Accounts",
		columns: map[string]string{"account_id": "Acct No", "balance": "Bal"},
	}
	s := identified(t, oracle)

	require.NoError(t, s.ClearColumn("balance"))
	require.NotContains(t, s.Mapping(), "balance")
	require.Equal(t, []string{"account_id"}, s.Formatted().Columns)

	require.Error(t, s.ClearColumn("no_such_target"))
}

func TestSheetmap_Session_DeleteRows(t *testing.T) {
	t.Parallel()

	oracle := &sessionOracle{
		sheet:   "Accounts",
		columns: map[string]string{"account_id": "Acct No", "balance": "Bal"},
	}
	s := identified(t, oracle)

	require.NoError(t, s.DeleteRows(0, 7))
	require.Equal(t, [][]string{{"AC2", "250.75"}}, s.Formatted().Rows)
}

func TestSheetmap_Session_SelectTable_ResetsState(t *testing.T) {
	t.Parallel()

	oracle := &sessionOracle{
		sheet:   "Accounts",
		columns: map[string]string{"account_id": "Acct No", "balance": "Bal"},
	}
	s := identified(t, oracle)

	require.NoError(t, s.SelectTable("public.other", testColumns()))
	require.Empty(t, s.Sheet())
	require.Empty(t, s.Mapping())
	require.Nil(t, s.Formatted())
	require.Error(t, s.DeleteRows(0))
}

func TestSheetmap_Session_UseDefaultColumns(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, &sessionOracle{})
	require.NoError(t, s.UseDefaultColumns())
	require.Equal(t, "default", s.TableID())
	require.Equal(t, []string{"account_id", "balance", "open_date", "status", "customer_name"}, s.Registry().Names())
}

func TestSheetmap_Session_New_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Logger: testLogger(), Oracle: &sessionOracle{}})
	require.Error(t, err)
}
