// Package schema materializes tables on demand. All DDL is idempotent
// (IF NOT EXISTS / ADD COLUMN IF NOT EXISTS) so callers can re-ensure freely,
// typically after a write failed with an undefined-table or undefined-column
// error. Columns are additive only; drops and type changes are out of scope.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"pagesync/internal/dbexec"
	"pagesync/internal/sqlerr"
	"pagesync/internal/sqlutil"
)

// ColumnSpec is one column definition. Type is a SQL type token produced by
// this package's own mapping, never caller input.
type ColumnSpec struct {
	Name       string
	Type       string
	PrimaryKey bool
}

// TableSpec describes an entity table.
type TableSpec struct {
	Schema  string
	Name    string
	Columns []ColumnSpec
}

// JoinTableSpec describes a join table realizing a many-to-many relation.
// Both columns are UUID foreign keys to their entity table's primary key,
// cascade-deleting with the referent; the pair forms the composite primary
// key.
type JoinTableSpec struct {
	Schema       string
	Name         string
	Column1Name  string
	Column1Table string
	Column2Name  string
	Column2Table string
	// EntitySchema is where the referenced entity tables live.
	EntitySchema string
}

// Ensurer issues idempotent DDL.
type Ensurer struct {
	exec dbexec.QueryExecutor
	log  *slog.Logger
}

func NewEnsurer(exec dbexec.QueryExecutor, log *slog.Logger) *Ensurer {
	if log == nil {
		log = slog.Default()
	}
	return &Ensurer{exec: exec, log: log}
}

// EnsureSchema creates the schema if missing.
func (e *Ensurer) EnsureSchema(ctx context.Context, name string) error {
	_, err := e.exec.ExecContext(ctx,
		"CREATE SCHEMA IF NOT EXISTS "+sqlutil.QuoteIdentifier(name))
	if err != nil {
		return fmt.Errorf("ensure schema %s: %w", name, sqlerr.Classify(err))
	}
	return nil
}

// EnsureTable creates the table if missing, then adds any columns the spec
// names that the table does not have yet. Existing columns are never altered,
// so re-ensuring with a grown spec converges on the union.
func (e *Ensurer) EnsureTable(ctx context.Context, spec TableSpec) error {
	if len(spec.Columns) == 0 {
		return fmt.Errorf("ensure table %s: no columns", spec.Name)
	}

	defs := make([]string, len(spec.Columns))
	for i, col := range spec.Columns {
		defs[i] = columnDef(col)
	}

	target := sqlutil.QualifiedTable(spec.Schema, spec.Name)
	e.log.Debug("ensuring table",
		slog.String("table", target),
		slog.Int("columns", len(spec.Columns)))

	_, err := e.exec.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS "+target+" ("+strings.Join(defs, ", ")+")")
	if err != nil {
		return fmt.Errorf("ensure table %s: %w", spec.Name, sqlerr.Classify(err))
	}

	// The create is a no-op when the table predates this spec, so each column
	// still needs its own additive pass.
	for _, col := range spec.Columns {
		_, err := e.exec.ExecContext(ctx,
			"ALTER TABLE "+target+" ADD COLUMN IF NOT EXISTS "+columnDef(col))
		if err != nil {
			return fmt.Errorf("ensure column %s.%s: %w", spec.Name, col.Name, sqlerr.Classify(err))
		}
	}
	return nil
}

// EnsureJoinTable creates the join table if missing.
func (e *Ensurer) EnsureJoinTable(ctx context.Context, spec JoinTableSpec) error {
	target := sqlutil.QualifiedTable(spec.Schema, spec.Name)
	col1 := sqlutil.QuoteIdentifier(spec.Column1Name)
	col2 := sqlutil.QuoteIdentifier(spec.Column2Name)

	e.log.Debug("ensuring join table", slog.String("table", target))

	query := "CREATE TABLE IF NOT EXISTS " + target + " (" +
		col1 + " UUID, " +
		col2 + " UUID, " +
		"PRIMARY KEY (" + col1 + ", " + col2 + "), " +
		foreignKey(col1, spec.EntitySchema, spec.Column1Table) + ", " +
		foreignKey(col2, spec.EntitySchema, spec.Column2Table) +
		")"

	if _, err := e.exec.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure join table %s: %w", spec.Name, sqlerr.Classify(err))
	}
	return nil
}

func columnDef(col ColumnSpec) string {
	def := sqlutil.QuoteIdentifier(col.Name) + " " + col.Type
	if col.PrimaryKey {
		def += " PRIMARY KEY"
	}
	return def
}

func foreignKey(quotedCol, entitySchema, entityTable string) string {
	return "FOREIGN KEY (" + quotedCol + ") REFERENCES " +
		sqlutil.QualifiedTable(entitySchema, entityTable) +
		` ("primary_key_id") ON DELETE CASCADE`
}
