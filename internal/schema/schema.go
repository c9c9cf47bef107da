// Package schema describes entity types as ordered column descriptors.
// A Schema is built once per entity type and shared, read-only, by every
// instance of that type.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrNoPrimaryKey is returned when a schema declares no primary-key column.
var ErrNoPrimaryKey = errors.New("no primary key")

// DefaultFunc produces a default value for a column. It may return a fresh
// value on every call (generated identifiers, timestamps).
type DefaultFunc func() any

// Column describes a single field of an entity type.
type Column struct {
	Name string
	Type Type
	// PrimaryKey columns together form the row's storage key and are
	// immutable once the row exists.
	PrimaryKey bool
	// PartitionKey marks the primary-key columns that choose the partition.
	// When no column sets it, the first primary-key column is the partition key.
	PartitionKey bool
	Required     bool
	Index        bool
	Default      DefaultFunc
}

// HasDefault reports whether the column declares a default provider.
func (c Column) HasDefault() bool {
	return c.Default != nil
}

// Schema is the immutable, ordered set of columns for one entity type.
type Schema struct {
	table     string
	columns   []Column
	byName    map[string]int
	pk        []string
	partition []string

	goType reflect.Type
	fields map[string][]int
}

// New builds a schema from explicit column descriptors.
func New(table string, columns ...Column) (*Schema, error) {
	if strings.TrimSpace(table) == "" {
		return nil, &SchemaError{Message: "table name cannot be empty"}
	}
	s := &Schema{
		table:   table,
		columns: make([]Column, 0, len(columns)),
		byName:  make(map[string]int, len(columns)),
	}
	for _, col := range columns {
		if strings.TrimSpace(col.Name) == "" {
			return nil, &SchemaError{Table: table, Message: "column name cannot be empty"}
		}
		if _, dup := s.byName[col.Name]; dup {
			return nil, &SchemaError{Table: table, Column: col.Name, Message: "duplicate column"}
		}
		if col.PartitionKey {
			col.PrimaryKey = true
		}
		s.byName[col.Name] = len(s.columns)
		s.columns = append(s.columns, col)
		if col.PrimaryKey {
			s.pk = append(s.pk, col.Name)
			if col.PartitionKey {
				s.partition = append(s.partition, col.Name)
			}
		}
	}
	if len(s.pk) == 0 {
		return nil, fmt.Errorf("table %s: %w", table, ErrNoPrimaryKey)
	}
	if len(s.partition) == 0 {
		s.partition = s.pk[:1]
	}
	return s, nil
}

// Table returns the storage table name.
func (s *Schema) Table() string {
	return s.table
}

// Columns returns the columns in declaration order.
func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Column looks up a column by name.
func (s *Schema) Column(name string) (Column, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return Column{}, false
	}
	return s.columns[idx], true
}

// Has reports whether the schema declares the named column.
func (s *Schema) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// PrimaryKey returns the primary-key column names in declaration order.
func (s *Schema) PrimaryKey() []string {
	return append([]string(nil), s.pk...)
}

// PartitionKey returns the partition-key column names.
func (s *Schema) PartitionKey() []string {
	return append([]string(nil), s.partition...)
}

// ClusteringKey returns the primary-key columns that are not partition-key columns.
func (s *Schema) ClusteringKey() []string {
	var out []string
	for _, name := range s.pk {
		if !s.isPartition(name) {
			out = append(out, name)
		}
	}
	return out
}

// IsPrimaryKey reports whether name is a primary-key column.
func (s *Schema) IsPrimaryKey(name string) bool {
	col, ok := s.Column(name)
	return ok && col.PrimaryKey
}

func (s *Schema) isPartition(name string) bool {
	for _, p := range s.partition {
		if p == name {
			return true
		}
	}
	return false
}

// GoType returns the struct type the schema was resolved from, or nil for
// schemas built with New.
func (s *Schema) GoType() reflect.Type {
	return s.goType
}

// FieldIndex returns the struct field index backing a column.
func (s *Schema) FieldIndex(column string) ([]int, bool) {
	idx, ok := s.fields[column]
	return idx, ok
}

// SchemaError reports an invalid schema declaration or a reference to a
// column the schema does not declare.
type SchemaError struct {
	Table   string
	Column  string
	Message string
}

func (e *SchemaError) Error() string {
	switch {
	case e.Table != "" && e.Column != "":
		return fmt.Sprintf("schema %s.%s: %s", e.Table, e.Column, e.Message)
	case e.Table != "":
		return fmt.Sprintf("schema %s: %s", e.Table, e.Message)
	default:
		return "schema: " + e.Message
	}
}

// UnknownColumn builds the error returned for a column missing from s.
func (s *Schema) UnknownColumn(name string) error {
	return &SchemaError{Table: s.table, Column: name, Message: "unknown column"}
}
