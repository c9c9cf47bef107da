// Package entity tracks the in-memory state of one row: current values, which
// columns were explicitly assigned since the last sync with storage, and
// whether the row is known to exist.
package entity

import (
	"fmt"
	"reflect"
	"sort"

	"cqlmapper/internal/schema"
	"cqlmapper/internal/storage"
)

type origin uint8

const (
	originUnset origin = iota
	// originDefault values came from a default provider and were never confirmed by storage.
	originDefault
	// originLoaded values are confirmed: read from storage or written by this instance.
	originLoaded
	// originAssigned values were set explicitly and not yet written.
	originAssigned
)

// Instance is the mutable state of one entity. Instances are not safe for
// concurrent use; each logical mutation works on its own instance.
type Instance struct {
	schema *schema.Schema
	values map[string]any
	origin map[string]origin
	dirty  map[string]struct{}
	// resolved records columns whose default provider has already run.
	resolved map[string]struct{}

	persisted bool
	key       storage.RowKey
	// generatedKey is set when a primary-key column was produced by its
	// default provider, i.e. the row cannot exist yet.
	generatedKey bool
	create       bool
}

// New builds a fresh instance from explicit values. Every supplied column is
// marked dirty; primary-key columns left out are filled by their default
// provider when one is declared.
func New(s *schema.Schema, values map[string]any) (*Instance, error) {
	inst := newInstance(s)
	for _, name := range sortedKeys(values) {
		if err := inst.Set(name, values[name]); err != nil {
			return nil, err
		}
	}
	for _, name := range s.PrimaryKey() {
		if _, ok := inst.values[name]; ok {
			continue
		}
		if inst.resolveDefault(name) {
			inst.generatedKey = true
		}
	}
	return inst, nil
}

// Load builds a clean, persisted instance from a row returned by storage.
// Columns the schema does not declare are dropped.
func Load(s *schema.Schema, row map[string]any) (*Instance, error) {
	inst := newInstance(s)
	for name, raw := range row {
		col, ok := s.Column(name)
		if !ok {
			continue
		}
		v, err := col.Type.Coerce(raw)
		if err != nil {
			return nil, fmt.Errorf("load %s.%s: %w", s.Table(), name, err)
		}
		inst.values[name] = v
		inst.origin[name] = originLoaded
	}
	key, err := storage.KeyFor(s, inst.values)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.Table(), err)
	}
	inst.key = key
	inst.persisted = true
	return inst, nil
}

func newInstance(s *schema.Schema) *Instance {
	return &Instance{
		schema:   s,
		values:   make(map[string]any),
		origin:   make(map[string]origin),
		dirty:    make(map[string]struct{}),
		resolved: make(map[string]struct{}),
	}
}

// Schema returns the shared schema of the instance.
func (i *Instance) Schema() *schema.Schema {
	return i.schema
}

// Set assigns a column and marks it dirty. Values are normalised to the
// column type when possible; values that cannot be normalised are kept as
// given and rejected by validation before any write.
func (i *Instance) Set(column string, value any) error {
	col, ok := i.schema.Column(column)
	if !ok {
		return i.schema.UnknownColumn(column)
	}
	if v, err := col.Type.Coerce(value); err == nil {
		value = v
	}
	i.values[column] = value
	i.origin[column] = originAssigned
	i.dirty[column] = struct{}{}
	return nil
}

// Get returns the current value of a column. On an instance that has not
// been synced with storage, an unset column with a default provider is
// resolved on first access without being marked dirty. A persisted instance
// reports only values it read, wrote or was assigned.
func (i *Instance) Get(column string) (any, bool) {
	if !i.schema.Has(column) {
		return nil, false
	}
	if _, ok := i.values[column]; !ok && !i.persisted {
		i.resolveDefault(column)
	}
	v, ok := i.values[column]
	return v, ok
}

// Values returns a copy of every column that currently holds a value.
func (i *Instance) Values() map[string]any {
	out := make(map[string]any, len(i.values))
	for k, v := range i.values {
		out[k] = v
	}
	return out
}

// Dirty returns the explicitly assigned, not yet written columns in sorted order.
func (i *Instance) Dirty() []string {
	return sortedKeys(i.dirty)
}

// IsDirty reports whether column was assigned since the last sync.
func (i *Instance) IsDirty(column string) bool {
	_, ok := i.dirty[column]
	return ok
}

// Persisted reports whether the instance was loaded from or written to storage.
func (i *Instance) Persisted() bool {
	return i.persisted
}

// RequestCreate marks the next full save as the row's creation even when the
// caller supplied the primary key.
func (i *Instance) RequestCreate() {
	i.create = true
}

// Creating reports whether the next full save creates the row: the instance
// is new and either its key was generated here or creation was requested.
func (i *Instance) Creating() bool {
	return !i.persisted && (i.generatedKey || i.create)
}

// Key returns the row key. For a persisted instance this is the key the row
// was stored under, regardless of later assignments to key columns.
func (i *Instance) Key() storage.RowKey {
	if i.persisted {
		return append(storage.RowKey(nil), i.key...)
	}
	var key storage.RowKey
	for _, name := range i.schema.PrimaryKey() {
		if v, ok := i.values[name]; ok && v != nil {
			key = append(key, storage.KeyPart{Column: name, Value: v})
		}
	}
	return key
}

// MaterializeDefaults runs the default provider of every column that is
// neither set nor dirty. Resolved defaults are not marked dirty. It does
// nothing on a persisted instance.
func (i *Instance) MaterializeDefaults() {
	if i.persisted {
		return
	}
	for _, col := range i.schema.Columns() {
		if _, set := i.values[col.Name]; set {
			continue
		}
		if i.IsDirty(col.Name) {
			continue
		}
		i.resolveDefault(col.Name)
	}
}

// resolveDefault invokes the provider for column at most once per instance.
func (i *Instance) resolveDefault(column string) bool {
	col, ok := i.schema.Column(column)
	if !ok || !col.HasDefault() {
		return false
	}
	if _, done := i.resolved[column]; done {
		return false
	}
	i.resolved[column] = struct{}{}
	v := col.Default()
	if coerced, err := col.Type.Coerce(v); err == nil {
		v = coerced
	}
	i.values[column] = v
	i.origin[column] = originDefault
	return true
}

// Bind copies the current values into dst, a pointer to the struct the
// schema was resolved from.
func (i *Instance) Bind(dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("bind %s: destination must be a non-nil pointer", i.schema.Table())
	}
	rv = rv.Elem()
	if gt := i.schema.GoType(); gt == nil || rv.Type() != gt {
		return fmt.Errorf("bind %s: destination %s does not match schema type", i.schema.Table(), rv.Type())
	}
	for _, col := range i.schema.Columns() {
		idx, ok := i.schema.FieldIndex(col.Name)
		if !ok {
			continue
		}
		field := rv.FieldByIndex(idx)
		v, _ := i.Get(col.Name)
		if err := assign(field, v); err != nil {
			return fmt.Errorf("bind %s.%s: %w", i.schema.Table(), col.Name, err)
		}
	}
	return nil
}

func assign(field reflect.Value, v any) error {
	if v == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	target := field.Type()
	if target.Kind() == reflect.Pointer {
		ptr := reflect.New(target.Elem())
		if err := assign(ptr.Elem(), v); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().ConvertibleTo(target) {
		return fmt.Errorf("cannot assign %T to %s", v, target)
	}
	field.Set(rv.Convert(target))
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
