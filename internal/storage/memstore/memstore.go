// Package memstore is an in-process wide-column store. Rows are grouped by
// partition key and every cell carries its own write timestamp, so
// concurrent writes to disjoint columns of one row are merged rather than
// replacing each other.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"cqlmapper/internal/schema"
	"cqlmapper/internal/storage"
)

type cell struct {
	value     any
	timestamp int64
}

type row struct {
	key   storage.RowKey
	cells map[string]cell
}

type table struct {
	schema     *schema.Schema
	partitions map[string]map[string]*row
}

// Store is a storage.Store held entirely in memory. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table

	writes atomic.Int64
	reads  atomic.Int64
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

// Writes returns the number of Write calls received, successful or not.
func (s *Store) Writes() int64 {
	return s.writes.Load()
}

// Reads returns the number of Read calls received.
func (s *Store) Reads() int64 {
	return s.reads.Load()
}

// CreateTable registers a table for sch. Creating an existing table is a no-op.
func (s *Store) CreateTable(_ context.Context, sch *schema.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[sch.Table()]; ok {
		return nil
	}
	s.tables[sch.Table()] = &table{
		schema:     sch,
		partitions: make(map[string]map[string]*row),
	}
	return nil
}

// DropTable removes a table and its rows. Dropping a missing table is a no-op.
func (s *Store) DropTable(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, name)
	return nil
}

// Write applies w cell by cell. A cell is replaced only when w.Timestamp is
// not older than the cell's current timestamp. Key columns in w.Columns are
// ignored; they are carried by w.Key.
func (s *Store) Write(ctx context.Context, w storage.Write) error {
	s.writes.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[w.Table]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNoTable, w.Table)
	}
	partKey, clusterKey, err := t.encodeKey(w.Key)
	if err != nil {
		return err
	}
	for name := range w.Columns {
		if !t.schema.Has(name) {
			return fmt.Errorf("table %s has no column %q", w.Table, name)
		}
	}

	partition, ok := t.partitions[partKey]
	if !ok {
		partition = make(map[string]*row)
		t.partitions[partKey] = partition
	}
	r, ok := partition[clusterKey]
	if !ok {
		r = &row{key: append(storage.RowKey(nil), w.Key...), cells: make(map[string]cell)}
		partition[clusterKey] = r
	}

	for name, value := range w.Columns {
		if t.schema.IsPrimaryKey(name) {
			continue
		}
		if existing, ok := r.cells[name]; ok && existing.timestamp > w.Timestamp {
			continue
		}
		r.cells[name] = cell{value: value, timestamp: w.Timestamp}
	}
	return nil
}

// Read returns the key columns and every non-null cell of the row.
func (s *Store) Read(ctx context.Context, name string, key storage.RowKey) (map[string]any, error) {
	s.reads.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNoTable, name)
	}
	partKey, clusterKey, err := t.encodeKey(key)
	if err != nil {
		return nil, err
	}
	r, ok := t.partitions[partKey][clusterKey]
	if !ok {
		return nil, storage.ErrNotFound
	}

	out := make(map[string]any, len(r.key)+len(r.cells))
	for _, part := range r.key {
		out[part.Column] = part.Value
	}
	for col, c := range r.cells {
		if c.value != nil {
			out[col] = c.value
		}
	}
	return out, nil
}

// Rows returns the number of rows stored in a table.
func (s *Store) Rows(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return 0
	}
	n := 0
	for _, partition := range t.partitions {
		n += len(partition)
	}
	return n
}

func (t *table) encodeKey(key storage.RowKey) (partition string, clustering string, err error) {
	values := key.Map()
	if len(values) != len(t.schema.PrimaryKey()) {
		return "", "", fmt.Errorf("row key %s does not match primary key (%s)",
			key, strings.Join(t.schema.PrimaryKey(), ", "))
	}
	encode := func(names []string) (string, error) {
		parts := make([]string, 0, len(names))
		for _, name := range names {
			v, ok := values[name]
			if !ok {
				return "", fmt.Errorf("row key %s is missing %q", key, name)
			}
			parts = append(parts, fmt.Sprintf("%T:%v", v, v))
		}
		return strings.Join(parts, "\x00"), nil
	}
	if partition, err = encode(t.schema.PartitionKey()); err != nil {
		return "", "", err
	}
	if clustering, err = encode(t.schema.ClusteringKey()); err != nil {
		return "", "", err
	}
	return partition, clustering, nil
}

// Tables lists the created tables in name order.
func (s *Store) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
