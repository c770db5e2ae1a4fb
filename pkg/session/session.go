// Package session owns the state of one data-onboarding session and is
// the only place that state mutates: table selection, workbook, sheet
// choice, column mapping and the formatted result all change through
// named transitions, never ad hoc field writes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ledgerline/sheetmap/pkg/aliasstore"
	"github.com/ledgerline/sheetmap/pkg/classify"
	"github.com/ledgerline/sheetmap/pkg/llm"
	"github.com/ledgerline/sheetmap/pkg/mapper"
	"github.com/ledgerline/sheetmap/pkg/metrics"
	"github.com/ledgerline/sheetmap/pkg/schema"
	"github.com/ledgerline/sheetmap/pkg/tabular"
)

// Config configures a session.
type Config struct {
	Logger     *slog.Logger
	Oracle     llm.Client
	AliasStore *aliasstore.Store

	// Workers bounds concurrent column classification calls.
	Workers int

	// OracleRate throttles oracle call starts. Zero means the
	// coordinator default.
	OracleRate rate.Limit

	// CallTimeout bounds each oracle call. Zero means the coordinator
	// default.
	CallTimeout time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Oracle == nil {
		return errors.New("oracle client is required")
	}
	if cfg.AliasStore == nil {
		return errors.New("alias store is required")
	}
	return nil
}

// Session is the state machine for one user's onboarding flow.
type Session struct {
	log    *slog.Logger
	store  *aliasstore.Store
	sheets *classify.SheetClassifier
	coord  *mapper.Coordinator

	tableID   string
	registry  *schema.Registry
	partition map[string][]string
	workbook  *tabular.Workbook
	sheet     string
	mapping   map[string]string
	formatted *tabular.Table
}

// New validates the config and builds a session with no table or
// workbook selected.
func New(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	coord, err := mapper.NewCoordinator(mapper.CoordinatorConfig{
		Logger:      cfg.Logger,
		Classifier:  classify.NewColumnClassifier(cfg.Oracle, cfg.Logger),
		Workers:     cfg.Workers,
		OracleRate:  cfg.OracleRate,
		CallTimeout: cfg.CallTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &Session{
		log:    cfg.Logger,
		store:  cfg.AliasStore,
		sheets: classify.NewSheetClassifier(cfg.Oracle, cfg.Logger),
		coord:  coord,
	}, nil
}

// SelectTable activates a destination table: the registry is rebuilt
// wholesale from the given columns and the table's alias partition is
// loaded and folded into the columns' historical variations. Any mapping
// from a previously selected table is discarded.
func (s *Session) SelectTable(tableID string, columns []*schema.TargetColumn) error {
	if tableID == "" {
		return errors.New("table identifier is required")
	}
	registry, err := schema.NewRegistry(columns)
	if err != nil {
		return fmt.Errorf("build target column registry: %w", err)
	}

	partition, err := s.store.Partition(tableID)
	if err != nil {
		// Best effort: the run proceeds with an empty partition.
		s.log.Warn("could not load alias partition", "table", tableID, "error", err)
	}
	registry.MergeAliases(partition)

	s.tableID = tableID
	s.registry = registry
	s.partition = partition
	s.sheet = ""
	s.mapping = nil
	s.formatted = nil
	s.log.Info("destination table selected", "table", tableID, "targetColumns", registry.Len())
	return nil
}

// UseDefaultColumns selects the built-in banking column set instead of a
// database table. Learned aliases land in the "default" partition.
func (s *Session) UseDefaultColumns() error {
	return s.SelectTable("default", schema.DefaultColumns())
}

// LoadWorkbook attaches an uploaded workbook, discarding any sheet
// choice, mapping and formatted result from a previous file.
func (s *Session) LoadWorkbook(wb *tabular.Workbook) error {
	if s.registry == nil {
		return errors.New("no destination table selected")
	}
	if wb == nil || len(wb.Sheets) == 0 {
		return errors.New("workbook has no sheets")
	}
	s.workbook = wb
	s.sheet = ""
	s.mapping = nil
	s.formatted = nil
	s.log.Info("workbook loaded", "sheets", len(wb.Sheets))
	return nil
}

// Identify runs one full identification pass: sheet classification, then
// the per-column fan-out, alias learning and the formatted projection.
// A sheet failure aborts the run (nothing downstream is meaningful) and
// is surfaced distinctly; per-column failures only shrink the mapping.
func (s *Session) Identify(ctx context.Context, contextHint string) error {
	if s.workbook == nil {
		return errors.New("no workbook loaded")
	}

	runID := uuid.NewString()
	log := s.log.With("runID", runID)
	log.Info("identification run starting", "table", s.tableID)

	sheet, err := s.sheets.Classify(ctx, s.workbook, s.registry, contextHint)
	if err != nil {
		metrics.RecordIdentificationRun("sheet_failure", 0, s.registry.Len())
		return fmt.Errorf("sheet identification: %w", err)
	}
	s.sheet = sheet
	s.mapping = nil
	s.formatted = nil

	if err := s.mapColumns(ctx, log); err != nil {
		metrics.RecordIdentificationRun("error", len(s.mapping), s.registry.Len()-len(s.mapping))
		return err
	}

	metrics.RecordIdentificationRun("success", len(s.mapping), s.registry.Len()-len(s.mapping))
	log.Info("identification run complete", "sheet", s.sheet, "mapped", len(s.mapping))
	return nil
}

func (s *Session) mapColumns(ctx context.Context, log *slog.Logger) error {
	table, ok := s.workbook.Table(s.sheet)
	if !ok {
		return fmt.Errorf("no data for sheet %q", s.sheet)
	}

	mapping, err := s.coord.MapAll(ctx, table, s.registry, s.partition, true)
	if err != nil {
		return fmt.Errorf("column mapping: %w", err)
	}
	s.mapping = mapping

	// A write failure is reported but does not invalidate the mapping
	// already produced for this run.
	if err := s.store.MergeAndSave(s.tableID, s.partition); err != nil {
		log.Warn("could not persist learned aliases", "table", s.tableID, "error", err)
	}

	s.reformat()
	return nil
}

// OverrideSheet replaces the sheet choice and re-enters the pipeline at
// the column-mapping stage. Mappings for the previous sheet never
// survive a sheet change.
func (s *Session) OverrideSheet(ctx context.Context, sheet string) error {
	if s.workbook == nil {
		return errors.New("no workbook loaded")
	}
	if !s.workbook.HasSheet(sheet) {
		return fmt.Errorf("sheet %q not found in the workbook", sheet)
	}
	s.sheet = sheet
	s.mapping = nil
	s.formatted = nil
	s.log.Info("sheet overridden", "sheet", sheet)
	return s.mapColumns(ctx, s.log)
}

// OverrideColumn replaces one target's source column. Only the formatted
// result is recomputed; the sheet choice and every other column's
// mapping are untouched and no oracle call is made.
func (s *Session) OverrideColumn(target, source string) error {
	table, err := s.currentTable()
	if err != nil {
		return err
	}
	col, ok := s.registry.ByName(target)
	if !ok {
		return fmt.Errorf("unknown target column %q", target)
	}
	if !table.HasColumn(source) {
		return fmt.Errorf("column %q not found in sheet %q", source, s.sheet)
	}
	if s.mapping == nil {
		s.mapping = make(map[string]string, s.registry.Len())
	}
	s.mapping[col.Name] = source
	s.reformat()
	s.log.Info("column mapping overridden", "target", col.Name, "source", source)
	return nil
}

// ClearColumn removes one target's mapping entirely ("none selected" is
// the absence of an entry, not a sentinel value).
func (s *Session) ClearColumn(target string) error {
	col, ok := s.registry.ByName(target)
	if !ok {
		return fmt.Errorf("unknown target column %q", target)
	}
	delete(s.mapping, col.Name)
	s.reformat()
	return nil
}

// DeleteRows removes the given row indices from the formatted table.
// Unknown indices are ignored. Not reversible.
func (s *Session) DeleteRows(indices ...int) error {
	if s.formatted == nil {
		return errors.New("no formatted table to delete from")
	}
	before := s.formatted.NumRows()
	s.formatted = mapper.DeleteRows(s.formatted, mapper.RowIndexSet(indices...))
	s.log.Info("rows deleted", "requested", len(indices), "removed", before-s.formatted.NumRows())
	return nil
}

func (s *Session) reformat() {
	table, err := s.currentTable()
	if err != nil {
		s.formatted = nil
		return
	}
	s.formatted = mapper.Apply(table, s.mapping, s.registry.Names())
}

func (s *Session) currentTable() (*tabular.Table, error) {
	if s.workbook == nil {
		return nil, errors.New("no workbook loaded")
	}
	if s.sheet == "" {
		return nil, errors.New("no sheet selected")
	}
	table, ok := s.workbook.Table(s.sheet)
	if !ok {
		return nil, fmt.Errorf("no data for sheet %q", s.sheet)
	}
	return table, nil
}

// TableID returns the active destination table identifier.
func (s *Session) TableID() string { return s.tableID }

// Sheet returns the currently selected sheet name, empty until a sheet
// has been identified or overridden.
func (s *Session) Sheet() string { return s.sheet }

// Registry returns the active target column registry.
func (s *Session) Registry() *schema.Registry { return s.registry }

// Mapping returns a copy of the current target->source mapping.
func (s *Session) Mapping() map[string]string {
	out := make(map[string]string, len(s.mapping))
	for k, v := range s.mapping {
		out[k] = v
	}
	return out
}

// Formatted returns the current formatted table, nil before the first
// successful mapping.
func (s *Session) Formatted() *tabular.Table { return s.formatted }
