package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesync/internal/sqlerr"
)

func TestUpdateExisting(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "notion"."orders" SET "status" = $1 WHERE "primary_key_id" = $2`)).
		WithArgs("closed", "abc").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := s.UpdateExisting(context.Background(), "orders",
		map[string]any{"status": "closed"},
		map[string]any{"primary_key_id": "abc"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateExistingRejectsEmptySet(t *testing.T) {
	s, _ := newMockStore(t)
	_, err := s.UpdateExisting(context.Background(), "orders", nil, map[string]any{"a": 1})
	assert.Error(t, err)
}

func TestDeleteRecords(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "notion"."join_orders_products" WHERE "orders_id" = $1`)).
		WithArgs("abc").
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := s.DeleteRecords(context.Background(), "join_orders_products",
		map[string]any{"orders_id": "abc"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestDeleteRecordsRejectsEmptyCriteria(t *testing.T) {
	s, _ := newMockStore(t)
	_, err := s.DeleteRecords(context.Background(), "orders", nil)
	assert.Error(t, err)
}

func TestUpsertOverwrite(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "notion"."orders" ("primary_key_id","status") VALUES ($1,$2) ON CONFLICT ("primary_key_id") DO UPDATE SET "status" = EXCLUDED."status"`)).
		WithArgs("abc", "open").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := s.Upsert(context.Background(), "orders",
		[]string{"primary_key_id", "status"},
		[]any{"abc", "open"},
		[]string{"primary_key_id"},
		StrategyOverwrite)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertIgnore(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "notion"."orders" ("primary_key_id") VALUES ($1) ON CONFLICT ("primary_key_id") DO NOTHING`)).
		WithArgs("abc").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.Upsert(context.Background(), "orders",
		[]string{"primary_key_id"}, []any{"abc"},
		[]string{"primary_key_id"}, StrategyIgnore)
	require.NoError(t, err)
}

func TestUpsertPlainInsert(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "notion"."orders" ("primary_key_id") VALUES ($1)`)).
		WithArgs("abc").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := s.Upsert(context.Background(), "orders",
		[]string{"primary_key_id"}, []any{"abc"}, nil, StrategyNone)
	require.NoError(t, err)
}

func TestUpsertArityMismatch(t *testing.T) {
	s, _ := newMockStore(t)

	_, err := s.Upsert(context.Background(), "orders",
		[]string{"a", "b"}, []any{1}, nil, StrategyNone)
	assert.ErrorIs(t, err, sqlerr.ErrArityMismatch)
}

func TestUpsertOverwriteNeedsConflictColumns(t *testing.T) {
	s, _ := newMockStore(t)

	_, err := s.Upsert(context.Background(), "orders",
		[]string{"a"}, []any{1}, nil, StrategyOverwrite)
	assert.Error(t, err)
}

func TestUpsertClassifiesDriverErrors(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO`).
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "notion.orders" does not exist`})

	_, err := s.Upsert(context.Background(), "orders",
		[]string{"primary_key_id"}, []any{"abc"},
		[]string{"primary_key_id"}, StrategyIgnore)
	assert.ErrorIs(t, err, sqlerr.ErrUndefinedTable)
}

func TestInsertJoinRows(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "notion"."join_orders_products" ("orders_id","products_id") VALUES ($1,$2),($3,$4) ON CONFLICT DO NOTHING`)).
		WithArgs("o1", "p1", "o1", "p2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := s.InsertJoinRows(context.Background(), "join_orders_products",
		[]string{"orders_id", "products_id"},
		[][]any{{"o1", "p1"}, {"o1", "p2"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertJoinRowsEmptyIsNoop(t *testing.T) {
	s, mock := newMockStore(t)

	n, err := s.InsertJoinRows(context.Background(), "join_orders_products",
		[]string{"orders_id", "products_id"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertJoinRowsArityMismatch(t *testing.T) {
	s, _ := newMockStore(t)

	_, err := s.InsertJoinRows(context.Background(), "join_orders_products",
		[]string{"orders_id", "products_id"},
		[][]any{{"o1"}})
	assert.ErrorIs(t, err, sqlerr.ErrArityMismatch)
}
