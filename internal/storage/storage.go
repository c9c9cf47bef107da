// Package storage defines the contract between the mutation engine and a
// wide-column store: keyed multi-column writes applied last-write-wins per
// column, keyed reads, and table lifecycle for setup harnesses.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cqlmapper/internal/schema"
)

var (
	// ErrNotFound is returned by Read when no row exists for the key.
	ErrNotFound = errors.New("row not found")
	// ErrNoTable is returned when a table has not been created.
	ErrNoTable = errors.New("table does not exist")
)

// KeyPart is one primary-key column of a row key.
type KeyPart struct {
	Column string
	Value  any
}

// RowKey is the ordered primary-key tuple addressing a row.
type RowKey []KeyPart

// Map returns the key as a column -> value mapping.
func (k RowKey) Map() map[string]any {
	out := make(map[string]any, len(k))
	for _, part := range k {
		out[part.Column] = part.Value
	}
	return out
}

// Value returns the value of the named key column.
func (k RowKey) Value(column string) (any, bool) {
	for _, part := range k {
		if part.Column == column {
			return part.Value, true
		}
	}
	return nil, false
}

func (k RowKey) String() string {
	parts := make([]string, len(k))
	for i, part := range k {
		parts[i] = fmt.Sprintf("%s=%v", part.Column, part.Value)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// KeyFor builds the row key for s from a column -> value mapping. Missing
// key columns are reported as an error listing the absent names.
func KeyFor(s *schema.Schema, values map[string]any) (RowKey, error) {
	pk := s.PrimaryKey()
	key := make(RowKey, 0, len(pk))
	var missing []string
	for _, name := range pk {
		v, ok := values[name]
		if !ok || v == nil {
			missing = append(missing, name)
			continue
		}
		key = append(key, KeyPart{Column: name, Value: v})
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing primary key columns: %s", strings.Join(missing, ", "))
	}
	return key, nil
}

// Write is a single keyed write covering exactly Columns.
type Write struct {
	Table   string
	Key     RowKey
	Columns map[string]any
	// Timestamp is the write time in microseconds since the Unix epoch. Stores
	// that resolve conflicts per cell keep the value with the highest timestamp.
	Timestamp int64
}

// Store is the storage collaborator consumed by the mutation engine.
type Store interface {
	Write(ctx context.Context, w Write) error
	Read(ctx context.Context, table string, key RowKey) (map[string]any, error)
	CreateTable(ctx context.Context, s *schema.Schema) error
	DropTable(ctx context.Context, table string) error
}

// Registrar is implemented by stores that need the schema of a table
// before they can read or write it.
type Registrar interface {
	Register(s *schema.Schema)
}
