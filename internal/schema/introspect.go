package schema

import (
	"context"
	"fmt"

	"pagesync/internal/dbexec"
	"pagesync/internal/sqlerr"
)

// Tables lists the table names present in a schema.
func (e *Ensurer) Tables(ctx context.Context, schemaName string) ([]string, error) {
	rows, err := e.exec.QueryContext(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = $1 ORDER BY table_name",
		schemaName)
	if err != nil {
		return nil, fmt.Errorf("list tables in %s: %w", schemaName, sqlerr.Classify(err))
	}
	return scanStrings(rows)
}

// Columns lists the column names of a table in ordinal order.
func (e *Ensurer) Columns(ctx context.Context, schemaName, table string) ([]string, error) {
	rows, err := e.exec.QueryContext(ctx,
		"SELECT column_name FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2 ORDER BY ordinal_position",
		schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s.%s: %w", schemaName, table, sqlerr.Classify(err))
	}
	return scanStrings(rows)
}

// ColumnDataType returns the declared data type of one column, or "" when
// the column does not exist.
func (e *Ensurer) ColumnDataType(ctx context.Context, schemaName, table, column string) (string, error) {
	rows, err := e.exec.QueryContext(ctx,
		"SELECT data_type FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2 AND column_name = $3",
		schemaName, table, column)
	if err != nil {
		return "", fmt.Errorf("column type of %s.%s.%s: %w", schemaName, table, column, sqlerr.Classify(err))
	}
	types, err := scanStrings(rows)
	if err != nil {
		return "", err
	}
	if len(types) == 0 {
		return "", nil
	}
	return types[0], nil
}

func scanStrings(rows dbexec.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
