package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesync/internal/dbexec"
	"pagesync/internal/filter"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(dbexec.NewStandardExecutor(db), "notion", nil), mock
}

func TestGetRecord(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "notion"."orders" WHERE "primary_key_id" = $1 LIMIT 1`)).
		WithArgs("abc123").
		WillReturnRows(sqlmock.NewRows([]string{"primary_key_id", "status"}).
			AddRow("abc123", "open"))

	rec, err := s.GetRecord(context.Background(), "orders", "primary_key_id", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", rec["primary_key_id"])
	assert.Equal(t, "open", rec["status"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecordNoRows(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM`).
		WillReturnRows(sqlmock.NewRows([]string{"primary_key_id"}))

	rec, err := s.GetRecord(context.Background(), "orders", "primary_key_id", "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGetRecordsInList(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "notion"."orders" WHERE "primary_key_id" IN ($1,$2)`)).
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"primary_key_id"}).AddRow("a").AddRow("b"))

	recs, err := s.GetRecords(context.Background(), "orders", "primary_key_id", []any{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecordsEmptyKeysSkipsQuery(t *testing.T) {
	s, mock := newMockStore(t)

	recs, err := s.GetRecords(context.Background(), "orders", "primary_key_id", nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchRecords(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "notion"."orders" WHERE "status" = $1`)).
		WithArgs("open").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("open"))

	recs, err := s.SearchRecords(context.Background(), "orders", map[string]any{"status": "open"})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestGetFilteredRecords(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "notion"."orders" WHERE ("status" = $1 AND "quantity" > $2) ORDER BY "created_at" DESC NULLS LAST LIMIT 5`)).
		WithArgs("open", 10).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("open"))

	recs, err := s.GetFilteredRecords(context.Background(), "orders",
		[]filter.Group{{
			Logic: filter.LogicAnd,
			Rules: []filter.Rule{
				{Property: "status", Operator: filter.OpEquals, Value: "open"},
				{Property: "quantity", Operator: filter.OpGreaterThan, Value: 10},
			},
		}},
		[]Sort{{Column: "created_at", Desc: true, Nulls: NullsLast}},
		5)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetFilteredRecordsNoFilter(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "notion"."orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	_, err := s.GetFilteredRecords(context.Background(), "orders", nil, nil, 0)
	require.NoError(t, err)
}

func TestGetFilteredRecordsBadOperator(t *testing.T) {
	s, _ := newMockStore(t)

	_, err := s.GetFilteredRecords(context.Background(), "orders",
		[]filter.Group{{Rules: []filter.Rule{{Property: "a", Operator: "near", Value: 1}}}},
		nil, 0)
	assert.Error(t, err)
}

func TestFetchTop(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "notion"."orders" ORDER BY "updated_at" DESC NULLS LAST LIMIT 3`)).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow("2026-01-01"))

	recs, err := s.FetchTop(context.Background(), "orders", "updated_at", 3)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	_, err = s.FetchTop(context.Background(), "orders", "updated_at", 0)
	assert.Error(t, err)
}

func TestFuzzySearchModes(t *testing.T) {
	tests := []struct {
		name    string
		mode    MatchMode
		negate  bool
		pattern string
		wantSQL string
		wantArg string
	}{
		{
			name:    "ilike wraps plain pattern",
			mode:    MatchILike,
			pattern: "widget",
			wantSQL: `SELECT * FROM "notion"."products" WHERE "name" ILIKE $1`,
			wantArg: "%widget%",
		},
		{
			name:    "ilike keeps caller wildcards",
			mode:    MatchILike,
			pattern: "widget_",
			wantSQL: `SELECT * FROM "notion"."products" WHERE "name" ILIKE $1`,
			wantArg: "widget_",
		},
		{
			name:    "like is case sensitive",
			mode:    MatchLike,
			pattern: "Widget",
			wantSQL: `SELECT * FROM "notion"."products" WHERE "name" LIKE $1`,
			wantArg: "%Widget%",
		},
		{
			name:    "negated ilike",
			mode:    MatchILike,
			negate:  true,
			pattern: "%@gmail.com",
			wantSQL: `SELECT * FROM "notion"."products" WHERE "name" NOT ILIKE $1`,
			wantArg: "%@gmail.com",
		},
		{
			name:    "regex passes pattern through",
			mode:    MatchRegex,
			pattern: "^[a-z]+[0-9]+@",
			wantSQL: `SELECT * FROM "notion"."products" WHERE "name" ~* $1`,
			wantArg: "^[a-z]+[0-9]+@",
		},
		{
			name:    "negated regex",
			mode:    MatchRegex,
			negate:  true,
			pattern: "deluxe$",
			wantSQL: `SELECT * FROM "notion"."products" WHERE "name" !~* $1`,
			wantArg: "deluxe$",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)

			mock.ExpectQuery(regexp.QuoteMeta(tt.wantSQL)).
				WithArgs(tt.wantArg).
				WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Widget Deluxe"))

			recs, err := s.FuzzySearch(context.Background(), "products", "name", tt.pattern, tt.mode, tt.negate)
			require.NoError(t, err)
			assert.Len(t, recs, 1)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFuzzySearchRejectsUnknownMode(t *testing.T) {
	s, _ := newMockStore(t)

	_, err := s.FuzzySearch(context.Background(), "products", "name", "widget", MatchMode(42), false)
	assert.Error(t, err)
}

func TestGetAllRecordsScansBytesAsStrings(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "notion"."orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow([]byte("bytes")))

	recs, err := s.GetAllRecords(context.Background(), "orders")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "bytes", recs[0]["name"])
}
