// Package sqlutil provides SQL utility functions.
package sqlutil

import "strings"

// QuoteIdentifier quotes a SQL identifier (schema, table or column name)
// with double quotes and escapes any double quotes within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + escaped + `"`
}

// QualifiedTable returns a schema-qualified, quoted table reference.
// An empty schema yields just the quoted table name.
func QualifiedTable(schema, table string) string {
	if schema == "" {
		return QuoteIdentifier(table)
	}
	return QuoteIdentifier(schema) + "." + QuoteIdentifier(table)
}

// QuoteString quotes a SQL string literal with single quotes and escapes
// any single quotes within the string by doubling them.
func QuoteString(s string) string {
	escaped := strings.ReplaceAll(s, "'", "''")
	return "'" + escaped + "'"
}

// HasWildcard reports whether a LIKE pattern already carries its own
// wildcard characters. Values without wildcards get auto-wrapped by the
// filter engine; caller-supplied patterns are preserved as-is.
func HasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "%_")
}
