// Package filter turns rule-group trees into parameterized SQL WHERE
// clauses. Groups combine with AND/OR against the preceding group; rules
// within a group combine with the group's own logic. Identifiers are always
// quoted as identifiers and values always flow through placeholders.
package filter

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"pagesync/internal/sqlerr"
	"pagesync/internal/sqlutil"
)

// Logic combines rules within a group, and a group with its predecessor.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// normalize folds case and defaults an empty tag to AND, matching how
// callers usually omit the first group's logic.
func (l Logic) normalize() (Logic, error) {
	switch Logic(strings.ToUpper(string(l))) {
	case LogicAnd, "":
		return LogicAnd, nil
	case LogicOr:
		return LogicOr, nil
	}
	return "", fmt.Errorf("%w: %q", sqlerr.ErrBadLogic, string(l))
}

// Operator is the fixed comparison vocabulary. Using a typed constant set
// (rather than dispatching on raw strings) keeps the switch in buildRule
// exhaustive and checkable.
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpGreaterThan    Operator = "greater_than"
	OpLessThan       Operator = "less_than"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpLessOrEqual    Operator = "less_or_equal"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not_contains"
	OpStartsWith     Operator = "starts_with"
	OpEndsWith       Operator = "ends_with"
	OpIsNull         Operator = "is_null"
	OpIsNotNull      Operator = "is_not_null"
	OpIsEmpty        Operator = "is_empty"
	OpIsNotEmpty     Operator = "is_not_empty"
)

// Rule compares one column against a value. is_* operators carry no value.
type Rule struct {
	Property string
	Operator Operator
	Value    any
}

// Group is an ordered list of rules joined by Logic. A query's WHERE clause
// is an ordered list of groups; each group's Logic joins it to the previous
// group (the first group's tag is ignored, nothing precedes it).
type Group struct {
	Logic Logic
	Rules []Rule
}

// Build renders a group list into a single squirrel condition. Returns
// (nil, nil) for an empty or all-empty group list, meaning no WHERE clause.
// Placeholders stay in '?' form; the statement builder applies the dialect's
// placeholder format at ToSql time.
func Build(groups []Group) (sq.Sqlizer, error) {
	parts := make([]sq.Sqlizer, 0, len(groups))
	seps := make([]string, 0, len(groups))

	for _, group := range groups {
		if len(group.Rules) == 0 {
			continue
		}
		logic, err := group.Logic.normalize()
		if err != nil {
			return nil, err
		}
		cond, err := buildGroup(group, logic)
		if err != nil {
			return nil, err
		}
		if len(parts) > 0 {
			seps = append(seps, string(logic))
		}
		parts = append(parts, cond)
	}

	if len(parts) == 0 {
		return nil, nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return sequence{parts: parts, seps: seps}, nil
}

func buildGroup(group Group, logic Logic) (sq.Sqlizer, error) {
	conds := make([]sq.Sqlizer, 0, len(group.Rules))
	for _, rule := range group.Rules {
		cond, err := buildRule(rule)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	// Conjunctions render with surrounding parentheses, which keeps group
	// boundaries intact in mixed AND/OR chains.
	if logic == LogicOr {
		return sq.Or(conds), nil
	}
	return sq.And(conds), nil
}

func buildRule(rule Rule) (sq.Sqlizer, error) {
	if rule.Property == "" || rule.Operator == "" {
		return nil, sqlerr.ErrMalformedRule
	}
	col := sqlutil.QuoteIdentifier(rule.Property)

	switch Operator(strings.ToLower(string(rule.Operator))) {
	case OpEquals:
		return sq.Expr(col+" = ?", rule.Value), nil
	case OpNotEquals:
		return sq.Expr(col+" != ?", rule.Value), nil
	case OpGreaterThan:
		return sq.Expr(col+" > ?", rule.Value), nil
	case OpLessThan:
		return sq.Expr(col+" < ?", rule.Value), nil
	case OpGreaterOrEqual:
		return sq.Expr(col+" >= ?", rule.Value), nil
	case OpLessOrEqual:
		return sq.Expr(col+" <= ?", rule.Value), nil
	case OpContains:
		return sq.Expr(col+" ILIKE ?", wrapPattern(rule.Value)), nil
	case OpNotContains:
		return sq.Expr(col+" NOT ILIKE ?", wrapPattern(rule.Value)), nil
	case OpStartsWith:
		return sq.Expr(col+" ILIKE ?", fmt.Sprintf("%v%%", rule.Value)), nil
	case OpEndsWith:
		return sq.Expr(col+" ILIKE ?", fmt.Sprintf("%%%v", rule.Value)), nil
	case OpIsNull:
		return sq.Expr(col + " IS NULL"), nil
	case OpIsNotNull:
		return sq.Expr(col + " IS NOT NULL"), nil
	case OpIsEmpty:
		// Text columns only; NULL and empty string collapse to "empty".
		return sq.Expr("(" + col + " IS NULL OR " + col + " = '')"), nil
	case OpIsNotEmpty:
		return sq.Expr("(" + col + " IS NOT NULL AND " + col + " != '')"), nil
	}
	return nil, fmt.Errorf("%w: %q", sqlerr.ErrUnsupportedOperator, string(rule.Operator))
}

// wrapPattern adds surrounding wildcards unless the caller already supplied
// their own pattern characters.
func wrapPattern(value any) string {
	s := fmt.Sprintf("%v", value)
	if sqlutil.HasWildcard(s) {
		return s
	}
	return "%" + s + "%"
}

// sequence joins already-parenthesized group conditions left-to-right with
// per-boundary logic tokens.
type sequence struct {
	parts []sq.Sqlizer
	seps  []string
}

func (s sequence) ToSql() (string, []any, error) {
	var sb strings.Builder
	var args []any
	for i, part := range s.parts {
		sql, partArgs, err := part.ToSql()
		if err != nil {
			return "", nil, err
		}
		if i > 0 {
			sb.WriteString(" " + s.seps[i-1] + " ")
		}
		sb.WriteString(sql)
		args = append(args, partArgs...)
	}
	return sb.String(), args, nil
}
