package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"pagesync/internal/sqlerr"
	"pagesync/internal/sqlutil"
)

// Strategy selects the conflict behavior for Upsert.
type Strategy int

const (
	// StrategyNone inserts without a conflict clause; duplicates error.
	StrategyNone Strategy = iota
	// StrategyOverwrite updates every non-key column from the incoming row.
	StrategyOverwrite
	// StrategyIgnore leaves the existing row untouched.
	StrategyIgnore
)

func (s Strategy) String() string {
	switch s {
	case StrategyOverwrite:
		return "overwrite"
	case StrategyIgnore:
		return "ignore"
	}
	return "none"
}

func classify(op string, err error) error {
	return fmt.Errorf("%s: %w", op, sqlerr.Classify(err))
}

// UpdateExisting sets the given columns on all rows matching the criteria
// and reports how many rows changed.
func (s *Store) UpdateExisting(ctx context.Context, table string, set map[string]any, criteria map[string]any) (int64, error) {
	if len(set) == 0 {
		return 0, fmt.Errorf("update %s: nothing to set", table)
	}

	b := s.sb.Update(s.table(table))
	for col, val := range set {
		b = b.Set(sqlutil.QuoteIdentifier(col), val)
	}
	if len(criteria) > 0 {
		eq := make(sq.Eq, len(criteria))
		for col, val := range criteria {
			eq[sqlutil.QuoteIdentifier(col)] = val
		}
		b = b.Where(eq)
	}
	return s.execAffected(ctx, "update", b)
}

// DeleteRecords removes all rows matching every column/value pair and
// reports how many rows went away. Refuses an empty criteria set; full-table
// deletes must be spelled out by the caller some other way.
func (s *Store) DeleteRecords(ctx context.Context, table string, criteria map[string]any) (int64, error) {
	if len(criteria) == 0 {
		return 0, fmt.Errorf("delete from %s: empty criteria", table)
	}
	eq := make(sq.Eq, len(criteria))
	for col, val := range criteria {
		eq[sqlutil.QuoteIdentifier(col)] = val
	}
	return s.execAffected(ctx, "delete", s.sb.Delete(s.table(table)).Where(eq))
}

// Upsert inserts one row, resolving conflicts on conflictColumns per the
// strategy. columns and values must pair up one-to-one.
func (s *Store) Upsert(ctx context.Context, table string, columns []string, values []any, conflictColumns []string, strategy Strategy) (int64, error) {
	if len(columns) != len(values) {
		return 0, fmt.Errorf("upsert into %s: %w: %d columns, %d values",
			table, sqlerr.ErrArityMismatch, len(columns), len(values))
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("upsert into %s: no columns", table)
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = sqlutil.QuoteIdentifier(col)
	}

	b := s.sb.Insert(s.table(table)).Columns(quoted...).Values(values...)

	switch strategy {
	case StrategyOverwrite:
		if len(conflictColumns) == 0 {
			return 0, fmt.Errorf("upsert into %s: overwrite needs conflict columns", table)
		}
		b = b.Suffix(overwriteSuffix(columns, conflictColumns))
	case StrategyIgnore:
		if len(conflictColumns) > 0 {
			b = b.Suffix("ON CONFLICT (" + joinQuoted(conflictColumns) + ") DO NOTHING")
		} else {
			b = b.Suffix("ON CONFLICT DO NOTHING")
		}
	case StrategyNone:
		// plain insert
	default:
		return 0, fmt.Errorf("upsert into %s: unknown strategy %d", table, int(strategy))
	}

	s.log.Debug("upserting record",
		slog.String("table", table),
		slog.String("strategy", strategy.String()))
	return s.execAffected(ctx, "upsert", b)
}

// InsertJoinRows inserts many rows in one statement with ON CONFLICT DO
// NOTHING, so re-sending known edges is a no-op. Every row must match the
// column arity.
func (s *Store) InsertJoinRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = sqlutil.QuoteIdentifier(col)
	}

	b := s.sb.Insert(s.table(table)).Columns(quoted...)
	for _, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("insert into %s: %w: %d columns, %d values",
				table, sqlerr.ErrArityMismatch, len(columns), len(row))
		}
		b = b.Values(row...)
	}
	b = b.Suffix("ON CONFLICT DO NOTHING")

	return s.execAffected(ctx, "insert", b)
}

func (s *Store) execAffected(ctx context.Context, op string, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s: %w", op, err)
	}
	s.log.Debug("executing statement", slog.String("sql", query))

	res, err := s.exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Not all drivers report affected rows; the statement itself succeeded.
		return 0, nil
	}
	return n, nil
}

// overwriteSuffix builds DO UPDATE SET assignments for every non-key column.
// With nothing left to assign the conflict degrades to DO NOTHING.
func overwriteSuffix(columns, conflictColumns []string) string {
	isKey := make(map[string]bool, len(conflictColumns))
	for _, col := range conflictColumns {
		isKey[col] = true
	}

	var assignments []string
	for _, col := range columns {
		if isKey[col] {
			continue
		}
		q := sqlutil.QuoteIdentifier(col)
		assignments = append(assignments, q+" = EXCLUDED."+q)
	}

	target := "ON CONFLICT (" + joinQuoted(conflictColumns) + ")"
	if len(assignments) == 0 {
		return target + " DO NOTHING"
	}
	return target + " DO UPDATE SET " + strings.Join(assignments, ", ")
}

func joinQuoted(columns []string) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = sqlutil.QuoteIdentifier(col)
	}
	return strings.Join(quoted, ", ")
}
