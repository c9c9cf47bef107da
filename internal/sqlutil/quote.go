// Package sqlutil provides SQL identifier helpers.
package sqlutil

import "strings"

// QuoteIdentifier quotes a SQL identifier (table name, column name, etc.)
// with backticks and escapes any backticks within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QuoteIdentifiers quotes every name with QuoteIdentifier.
func QuoteIdentifiers(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = QuoteIdentifier(name)
	}
	return out
}

// IndexName returns the secondary index name used for a column.
// MySQL limits identifiers to 64 characters; longer names are truncated.
func IndexName(table, column string) string {
	name := "idx_" + table + "_" + column
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}
