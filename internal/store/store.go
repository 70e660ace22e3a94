// Package store is the record-level data access layer. Every statement is
// built with squirrel against $n placeholders and executed through a
// dbexec.QueryExecutor, so the same code path serves live handles,
// transactions, and mocks. Rows come back as column-keyed maps because table
// shapes are driven by external schemas and only known at runtime.
package store

import (
	"context"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"pagesync/internal/dbexec"
	"pagesync/internal/filter"
	"pagesync/internal/sqlutil"
)

// Nulls controls NULL placement in an ORDER BY term.
type Nulls int

const (
	NullsDefault Nulls = iota
	NullsFirst
	NullsLast
)

// Sort is one ORDER BY term.
type Sort struct {
	Column string
	Desc   bool
	Nulls  Nulls
}

func (s Sort) term() string {
	t := sqlutil.QuoteIdentifier(s.Column)
	if s.Desc {
		t += " DESC"
	} else {
		t += " ASC"
	}
	switch s.Nulls {
	case NullsFirst:
		t += " NULLS FIRST"
	case NullsLast:
		t += " NULLS LAST"
	}
	return t
}

// Store executes record operations against one schema.
type Store struct {
	exec   dbexec.QueryExecutor
	schema string
	log    *slog.Logger
	sb     sq.StatementBuilderType
}

// New creates a store. schema may be empty for search_path resolution.
func New(exec dbexec.QueryExecutor, schema string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		exec:   exec,
		schema: schema,
		log:    log,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// WithExecutor returns a copy of the store bound to a different executor,
// typically a transaction.
func (s *Store) WithExecutor(exec dbexec.QueryExecutor) *Store {
	clone := *s
	clone.exec = exec
	return &clone
}

func (s *Store) table(name string) string {
	return sqlutil.QualifiedTable(s.schema, name)
}

// GetRecord fetches the single row where keyColumn equals key, or nil when
// no row matches.
func (s *Store) GetRecord(ctx context.Context, table, keyColumn string, key any) (map[string]any, error) {
	rows, err := s.query(ctx, s.sb.
		Select("*").
		From(s.table(table)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(keyColumn): key}).
		Limit(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// GetRecords fetches all rows whose column value appears in keys. An empty
// key list short-circuits to an empty result without touching the database.
func (s *Store) GetRecords(ctx context.Context, table, column string, keys []any) ([]map[string]any, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	return s.query(ctx, s.sb.
		Select("*").
		From(s.table(table)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(column): keys}))
}

// SearchRecords fetches rows matching every column/value pair exactly.
func (s *Store) SearchRecords(ctx context.Context, table string, criteria map[string]any) ([]map[string]any, error) {
	eq := make(sq.Eq, len(criteria))
	for col, val := range criteria {
		eq[sqlutil.QuoteIdentifier(col)] = val
	}
	b := s.sb.Select("*").From(s.table(table))
	if len(eq) > 0 {
		b = b.Where(eq)
	}
	return s.query(ctx, b)
}

// GetFilteredRecords fetches rows matching a rule-group tree, optionally
// sorted and limited. Empty groups mean no WHERE clause; limit 0 means no
// LIMIT.
func (s *Store) GetFilteredRecords(ctx context.Context, table string, groups []filter.Group, sorts []Sort, limit uint64) ([]map[string]any, error) {
	cond, err := filter.Build(groups)
	if err != nil {
		return nil, err
	}

	b := s.sb.Select("*").From(s.table(table))
	if cond != nil {
		b = b.Where(cond)
	}
	for _, srt := range sorts {
		b = b.OrderBy(srt.term())
	}
	if limit > 0 {
		b = b.Limit(limit)
	}
	return s.query(ctx, b)
}

// FetchTop fetches the n rows with the highest values in column, NULLs last.
func (s *Store) FetchTop(ctx context.Context, table, column string, n uint64) ([]map[string]any, error) {
	if n == 0 {
		return nil, fmt.Errorf("fetch top from %s: limit must be positive", table)
	}
	return s.query(ctx, s.sb.
		Select("*").
		From(s.table(table)).
		OrderBy(Sort{Column: column, Desc: true, Nulls: NullsLast}.term()).
		Limit(n))
}

// GetAllRecords fetches every row in the table.
func (s *Store) GetAllRecords(ctx context.Context, table string) ([]map[string]any, error) {
	return s.query(ctx, s.sb.Select("*").From(s.table(table)))
}

// MatchMode selects the comparison FuzzySearch uses.
type MatchMode int

const (
	// MatchILike is case-insensitive pattern matching.
	MatchILike MatchMode = iota
	// MatchLike is case-sensitive pattern matching.
	MatchLike
	// MatchRegex is case-insensitive regular-expression matching.
	MatchRegex
)

// FuzzySearch fetches rows whose column matches pattern under the given mode,
// optionally negated. Plain LIKE/ILIKE values are wrapped in %...%;
// caller-supplied wildcards and regex patterns pass through untouched.
func (s *Store) FuzzySearch(ctx context.Context, table, column, pattern string, mode MatchMode, negate bool) ([]map[string]any, error) {
	var op string
	switch mode {
	case MatchILike:
		op = "ILIKE"
		if negate {
			op = "NOT ILIKE"
		}
	case MatchLike:
		op = "LIKE"
		if negate {
			op = "NOT LIKE"
		}
	case MatchRegex:
		op = "~*"
		if negate {
			op = "!~*"
		}
	default:
		return nil, fmt.Errorf("fuzzy search %s: unsupported match mode %d", table, mode)
	}

	if mode != MatchRegex && !sqlutil.HasWildcard(pattern) {
		pattern = "%" + pattern + "%"
	}
	return s.query(ctx, s.sb.
		Select("*").
		From(s.table(table)).
		Where(sq.Expr(sqlutil.QuoteIdentifier(column)+" "+op+" ?", pattern)))
}

func (s *Store) query(ctx context.Context, b sq.SelectBuilder) ([]map[string]any, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	s.log.Debug("executing query", slog.String("sql", query))

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query", err)
	}
	return scanMaps(rows)
}
