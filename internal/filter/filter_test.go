package filter

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesync/internal/sqlerr"
)

func render(t *testing.T, groups []Group) (string, []any) {
	t.Helper()
	cond, err := Build(groups)
	require.NoError(t, err)
	require.NotNil(t, cond)
	sql, args, err := cond.ToSql()
	require.NoError(t, err)
	return sql, args
}

func TestBuildEmpty(t *testing.T) {
	cond, err := Build(nil)
	assert.NoError(t, err)
	assert.Nil(t, cond)

	// Groups without rules contribute nothing.
	cond, err = Build([]Group{{Logic: LogicAnd}, {Logic: LogicOr}})
	assert.NoError(t, err)
	assert.Nil(t, cond)
}

func TestBuildSingleGroup(t *testing.T) {
	sql, args := render(t, []Group{{
		Logic: LogicAnd,
		Rules: []Rule{
			{Property: "status", Operator: OpEquals, Value: "open"},
			{Property: "quantity", Operator: OpGreaterThan, Value: 10},
		},
	}})

	assert.Equal(t, `("status" = ? AND "quantity" > ?)`, sql)
	assert.Equal(t, []any{"open", 10}, args)
}

func TestBuildOrWithinGroup(t *testing.T) {
	sql, args := render(t, []Group{{
		Logic: LogicOr,
		Rules: []Rule{
			{Property: "region", Operator: OpEquals, Value: "emea"},
			{Property: "region", Operator: OpEquals, Value: "apac"},
		},
	}})

	assert.Equal(t, `("region" = ? OR "region" = ?)`, sql)
	assert.Len(t, args, 2)
}

func TestBuildMultipleGroups(t *testing.T) {
	sql, args := render(t, []Group{
		{
			Logic: LogicAnd,
			Rules: []Rule{{Property: "status", Operator: OpEquals, Value: "open"}},
		},
		{
			Logic: LogicOr,
			Rules: []Rule{
				{Property: "priority", Operator: OpGreaterOrEqual, Value: 3},
				{Property: "escalated", Operator: OpEquals, Value: true},
			},
		},
	})

	assert.Equal(t, `("status" = ?) OR ("priority" >= ? OR "escalated" = ?)`, sql)
	assert.Equal(t, []any{"open", 3, true}, args)
}

func TestBuildFirstGroupLogicDefaultsToAnd(t *testing.T) {
	// An omitted logic tag reads as AND.
	sql, _ := render(t, []Group{
		{Rules: []Rule{{Property: "a", Operator: OpEquals, Value: 1}}},
		{Rules: []Rule{{Property: "b", Operator: OpEquals, Value: 2}}},
	})
	assert.Equal(t, `("a" = ?) AND ("b" = ?)`, sql)
}

func TestBuildContainsWrapsPattern(t *testing.T) {
	sql, args := render(t, []Group{{
		Rules: []Rule{{Property: "name", Operator: OpContains, Value: "widget"}},
	}})
	assert.Equal(t, `("name" ILIKE ?)`, sql)
	assert.Equal(t, []any{"%widget%"}, args)
}

func TestBuildContainsKeepsCallerPattern(t *testing.T) {
	_, args := render(t, []Group{{
		Rules: []Rule{{Property: "name", Operator: OpContains, Value: "widget%"}},
	}})
	assert.Equal(t, []any{"widget%"}, args)

	_, args = render(t, []Group{{
		Rules: []Rule{{Property: "sku", Operator: OpNotContains, Value: "w_dget"}},
	}})
	assert.Equal(t, []any{"w_dget"}, args)
}

func TestBuildAnchoredPatterns(t *testing.T) {
	sql, args := render(t, []Group{{
		Rules: []Rule{
			{Property: "name", Operator: OpStartsWith, Value: "acme"},
			{Property: "name", Operator: OpEndsWith, Value: "inc"},
		},
	}})
	assert.Equal(t, `("name" ILIKE ? AND "name" ILIKE ?)`, sql)
	assert.Equal(t, []any{"acme%", "%inc"}, args)
}

func TestBuildNullAndEmptyOperators(t *testing.T) {
	sql, args := render(t, []Group{{
		Rules: []Rule{{Property: "notes", Operator: OpIsEmpty}},
	}})
	assert.Equal(t, `(("notes" IS NULL OR "notes" = ''))`, sql)
	assert.Empty(t, args)

	sql, _ = render(t, []Group{{
		Rules: []Rule{
			{Property: "closed_at", Operator: OpIsNull},
			{Property: "owner", Operator: OpIsNotNull},
			{Property: "owner", Operator: OpIsNotEmpty},
		},
	}})
	assert.Equal(t, `("closed_at" IS NULL AND "owner" IS NOT NULL AND ("owner" IS NOT NULL AND "owner" != ''))`, sql)
}

func TestBuildQuotesIdentifiers(t *testing.T) {
	sql, _ := render(t, []Group{{
		Rules: []Rule{{Property: "Production Orders", Operator: OpEquals, Value: 1}},
	}})
	assert.Equal(t, `("Production Orders" = ?)`, sql)
}

func TestBuildRejectsMalformedRule(t *testing.T) {
	_, err := Build([]Group{{Rules: []Rule{{Operator: OpEquals, Value: 1}}}})
	assert.ErrorIs(t, err, sqlerr.ErrMalformedRule)

	_, err = Build([]Group{{Rules: []Rule{{Property: "a"}}}})
	assert.ErrorIs(t, err, sqlerr.ErrMalformedRule)
}

func TestBuildRejectsUnknownOperator(t *testing.T) {
	_, err := Build([]Group{{Rules: []Rule{{Property: "a", Operator: "between", Value: 1}}}})
	assert.ErrorIs(t, err, sqlerr.ErrUnsupportedOperator)
	assert.Contains(t, err.Error(), "between")
}

func TestBuildRejectsBadLogic(t *testing.T) {
	_, err := Build([]Group{{
		Logic: "XOR",
		Rules: []Rule{{Property: "a", Operator: OpEquals, Value: 1}},
	}})
	assert.ErrorIs(t, err, sqlerr.ErrBadLogic)
}

func TestBuildComposesWithStatementBuilder(t *testing.T) {
	cond, err := Build([]Group{{
		Rules: []Rule{{Property: "status", Operator: OpEquals, Value: "open"}},
	}})
	require.NoError(t, err)

	sql, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("*").
		From(`"public"."orders"`).
		Where(cond).
		ToSql()
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "public"."orders" WHERE ("status" = $1)`, sql)
	assert.Equal(t, []any{"open"}, args)
}
