// Package sqlerr defines the error taxonomy for the data-access layer and
// classifies driver errors by Postgres SQLSTATE so callers can branch on
// recoverable conditions (schema drift, foreign-key violations) without
// string-matching driver messages.
package sqlerr

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors. Wrap with fmt.Errorf("...: %w", ...) so errors.Is works
// across layers.
var (
	// ErrConnection marks transport-level connect failures. Not retried by
	// the connection manager beyond its single immediate attempt.
	ErrConnection = errors.New("database connection failed")

	// ErrMalformedRule marks a filter rule missing its property or operator.
	ErrMalformedRule = errors.New("filter rule must have a property and an operator")

	// ErrUnsupportedOperator marks a filter operator outside the fixed vocabulary.
	ErrUnsupportedOperator = errors.New("unsupported filter operator")

	// ErrBadLogic marks a group logic tag other than AND/OR.
	ErrBadLogic = errors.New("group logic must be AND or OR")

	// ErrArityMismatch marks a column/value count mismatch. Programmer error.
	ErrArityMismatch = errors.New("columns and values must have the same length")

	// ErrUndefinedTable marks SQLSTATE 42P01. Recovered by schema evolution.
	ErrUndefinedTable = errors.New("undefined table")

	// ErrUndefinedColumn marks SQLSTATE 42703. Recovered by schema evolution.
	ErrUndefinedColumn = errors.New("undefined column")

	// ErrForeignKeyViolation marks SQLSTATE 23503. Recovered by the
	// synchronizer's self-heal path, at most once per violating value.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrUnresolvableForeignKey marks a foreign-key violation the external
	// source of truth could not supply a referent for. Fatal.
	ErrUnresolvableForeignKey = errors.New("unresolvable foreign key")
)

// Postgres SQLSTATE codes this layer reacts to.
const (
	codeUndefinedTable      = "42P01"
	codeUndefinedColumn     = "42703"
	codeForeignKeyViolation = "23503"
)

// Classify wraps a driver error with the matching sentinel so callers can use
// errors.Is. The driver error stays in the wrap chain, so errors.As still
// reaches the PgError and its structured detail. Errors with no recognized
// SQLSTATE are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeUndefinedTable:
		return fmt.Errorf("%w: %w", ErrUndefinedTable, pgErr)
	case codeUndefinedColumn:
		return fmt.Errorf("%w: %w", ErrUndefinedColumn, pgErr)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %w", ErrForeignKeyViolation, pgErr)
	}
	return err
}

// fkDetailRe matches the value inside a foreign-key violation detail such as
//
//	Key (customer_id)=(05bd4bb2a91c4ea3b08a3e0716a3d900) is not present in table "customers".
var fkDetailRe = regexp.MustCompile(`\)=\(([^)]+)\)`)

// uuidRe matches a hyphenated or bare 32-hex-digit identifier anywhere in an
// error message; fallback when the structured detail is unavailable.
var uuidRe = regexp.MustCompile(`[0-9a-fA-F]{8}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{12}`)

// ViolatingKey extracts the key value named by a foreign-key violation.
// Returns the empty string when the error carries no parseable value.
func ViolatingKey(err error) string {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		if m := fkDetailRe.FindStringSubmatch(pgErr.Detail); m != nil {
			return m[1]
		}
	}
	if m := uuidRe.FindString(err.Error()); m != "" {
		return m
	}
	return ""
}
