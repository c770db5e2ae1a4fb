package destdb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/sheetmap/pkg/schema"
	"github.com/ledgerline/sheetmap/pkg/tabular"
)

// sampleValueRows is how many rows feed each column's example values.
const sampleValueRows = 3

// WriteError reports a destination write that could not proceed.
type WriteError struct {
	Table  string
	Reason string
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write to %s: %s", e.Table, e.Reason)
}

// DB wraps the destination connection pool.
type DB struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func (db *DB) Close() {
	db.pool.Close()
}

const columnMetadataQuery = `
SELECT
    c.column_name,
    c.data_type,
    c.character_maximum_length,
    c.numeric_precision,
    c.numeric_scale,
    col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position) AS column_description
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`

// ListColumns introspects schemaName.tableName and builds target column
// definitions from its metadata: lower-cased names, rendered data types,
// the column comment as description and up to a few live values as
// examples.
func (db *DB) ListColumns(ctx context.Context, schemaName, tableName string) ([]*schema.TargetColumn, error) {
	rows, err := db.pool.Query(ctx, columnMetadataQuery, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query column metadata for %s.%s: %w", schemaName, tableName, err)
	}
	defer rows.Close()

	var columns []*schema.TargetColumn
	for rows.Next() {
		var (
			name, baseType       string
			charLen, prec, scale *int
			description          *string
		)
		if err := rows.Scan(&name, &baseType, &charLen, &prec, &scale, &description); err != nil {
			return nil, fmt.Errorf("scan column metadata: %w", err)
		}

		dataType := formatDataType(baseType, charLen, prec, scale)
		desc := ""
		if description != nil {
			desc = *description
		}
		if desc == "" {
			desc = fmt.Sprintf("Column %s with type %s", name, dataType)
		}

		columns = append(columns, &schema.TargetColumn{
			Name:        strings.ToLower(name),
			DataType:    dataType,
			Description: desc,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s.%s has no columns", schemaName, tableName)
	}

	if err := db.fillExamples(ctx, schemaName, tableName, columns); err != nil {
		// Examples are advisory only; classification works without them.
		db.log.Warn("could not sample example values", "table", tableName, "error", err)
	}

	db.log.Info("loaded destination columns", "table", fmt.Sprintf("%s.%s", schemaName, tableName), "columns", len(columns))
	return columns, nil
}

func (db *DB) fillExamples(ctx context.Context, schemaName, tableName string, columns []*schema.TargetColumn) error {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteQualified(schemaName, tableName), sampleValueRows)
	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return err
		}
		for i, v := range values {
			if i >= len(columns) || v == nil {
				continue
			}
			columns[i].Examples = append(columns[i].Examples, fmt.Sprintf("%v", v))
		}
	}
	return rows.Err()
}

// ReplaceRows replaces the table's contents with the formatted table in
// one transaction: delete everything, then insert every row. Matching
// between formatted columns and table columns is case-insensitive; a
// formatted column with no counterpart in the table is dropped, and zero
// matches is a WriteError before anything is touched. Empty cells become
// NULL.
func (db *DB) ReplaceRows(ctx context.Context, schemaName, tableName string, formatted *tabular.Table) error {
	qualified := fmt.Sprintf("%s.%s", schemaName, tableName)

	dbColumns, err := db.tableColumnNames(ctx, schemaName, tableName)
	if err != nil {
		return err
	}

	matched := matchColumns(formatted.Columns, dbColumns)
	if len(matched) == 0 {
		return &WriteError{Table: qualified, Reason: "no matching columns between formatted data and destination table"}
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %w", qualified, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", quoteQualified(schemaName, tableName))); err != nil {
		return fmt.Errorf("clear %s: %w", qualified, err)
	}

	insertSQL := buildInsertSQL(schemaName, tableName, matched)
	batch := &pgx.Batch{}
	for _, row := range formatted.Rows {
		args := make([]any, len(matched))
		for i, m := range matched {
			idx := formatted.ColumnIndex(m.formatted)
			if idx < 0 || row[idx] == "" {
				continue
			}
			args[i] = row[idx]
		}
		batch.Queue(insertSQL, args...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert into %s: %w", qualified, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", qualified, err)
	}

	db.log.Info("destination table replaced", "table", qualified, "rows", len(formatted.Rows), "columns", len(matched))
	return nil
}

func (db *DB) tableColumnNames(ctx context.Context, schemaName, tableName string) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2
		 ORDER BY ordinal_position`,
		schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns of %s.%s: %w", schemaName, tableName, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// columnMatch pairs a formatted column with its destination column.
type columnMatch struct {
	formatted string
	db        string
}

// matchColumns pairs destination columns with formatted columns by
// case-insensitive name, in destination column order. Each formatted
// column is used at most once.
func matchColumns(formattedColumns, dbColumns []string) []columnMatch {
	var matched []columnMatch
	used := make(map[string]bool, len(formattedColumns))
	for _, dbCol := range dbColumns {
		for _, fCol := range formattedColumns {
			if used[fCol] {
				continue
			}
			if strings.EqualFold(fCol, dbCol) {
				matched = append(matched, columnMatch{formatted: fCol, db: dbCol})
				used[fCol] = true
				break
			}
		}
	}
	return matched
}

func buildInsertSQL(schemaName, tableName string, matched []columnMatch) string {
	columns := make([]string, len(matched))
	placeholders := make([]string, len(matched))
	for i, m := range matched {
		columns[i] = quoteIdent(m.db)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteQualified(schemaName, tableName),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
}

// formatDataType renders an information_schema type the way it would be
// declared: varchar(50), numeric(12,2), date.
func formatDataType(baseType string, charLen, prec, scale *int) string {
	switch {
	case charLen != nil && *charLen > 0:
		return fmt.Sprintf("%s(%d)", baseType, *charLen)
	case prec != nil && scale != nil:
		return fmt.Sprintf("%s(%d,%d)", baseType, *prec, *scale)
	default:
		return baseType
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteQualified(schemaName, tableName string) string {
	return quoteIdent(schemaName) + "." + quoteIdent(tableName)
}
