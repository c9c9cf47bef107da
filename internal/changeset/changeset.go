// Package changeset holds the column writes computed for one save or update.
package changeset

import (
	"sort"

	"cqlmapper/internal/storage"
)

// ChangeSet is the minimal set of column writes for a single row. It is
// consumed once by the mutation executor and never persisted.
type ChangeSet struct {
	Table   string
	Key     storage.RowKey
	Columns map[string]any
	// Create marks the write that brings the row into existence. Only a
	// create change set may carry primary-key columns in Columns.
	Create bool
}

// Empty reports whether the change set writes no columns. An empty change
// set never reaches storage.
func (cs ChangeSet) Empty() bool {
	return len(cs.Columns) == 0
}

// Len returns the number of columns written.
func (cs ChangeSet) Len() int {
	return len(cs.Columns)
}

// Names returns the written column names in sorted order.
func (cs ChangeSet) Names() []string {
	names := make([]string, 0, len(cs.Columns))
	for name := range cs.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether column is written by the change set.
func (cs ChangeSet) Has(column string) bool {
	_, ok := cs.Columns[column]
	return ok
}
