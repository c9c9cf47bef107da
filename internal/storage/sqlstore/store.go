// Package sqlstore implements storage.Store on a MySQL-compatible database
// (MySQL, TiDB). Each entity table maps to one SQL table; keyed writes are
// upserts limited to the supplied columns.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"cqlmapper/internal/dbexec"
	"cqlmapper/internal/logging"
	"cqlmapper/internal/observability"
	"cqlmapper/internal/schema"
	"cqlmapper/internal/storage"
)

const tracerName = "cqlmapper/sqlstore"

// Store is a storage.Store backed by SQL. Write timestamps are ignored: the
// database serialises concurrent upserts and the last committed one wins for
// each column it names.
type Store struct {
	exec   dbexec.QueryExecutor
	logger *logging.Logger

	mu     sync.RWMutex
	tables map[string]*schema.Schema
}

var _ storage.Store = (*Store)(nil)

// New creates a store executing through exec.
func New(exec dbexec.QueryExecutor, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Store{
		exec:   exec,
		logger: logger,
		tables: make(map[string]*schema.Schema),
	}
}

// Open creates a store on db that logs every statement at debug level.
func Open(db *sql.DB, logger *logging.Logger) *Store {
	return New(dbexec.NewLoggingExecutor(dbexec.NewStandardExecutor(db), logger), logger)
}

// Register makes a schema known to the store without issuing DDL, for
// tables that already exist.
func (s *Store) Register(sch *schema.Schema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[sch.Table()] = sch
}

func (s *Store) lookup(table string) (*schema.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sch, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNoTable, table)
	}
	return sch, nil
}

// CreateTable creates the table for sch if it does not exist and registers it.
func (s *Store) CreateTable(ctx context.Context, sch *schema.Schema) error {
	ctx, span := observability.StartSpan(ctx, tracerName, "sqlstore.create_table",
		attribute.String("db.table", sch.Table()))
	defer span.End()

	planned := PlanCreateTable(sch)
	if _, err := s.exec.ExecContext(ctx, planned.SQL); err != nil {
		observability.RecordSpanError(span, err)
		return err
	}
	s.Register(sch)
	s.logger.Debug("table created", slog.String("table", sch.Table()))
	return nil
}

// DropTable drops table if it exists and forgets its schema.
func (s *Store) DropTable(ctx context.Context, table string) error {
	ctx, span := observability.StartSpan(ctx, tracerName, "sqlstore.drop_table",
		attribute.String("db.table", table))
	defer span.End()

	planned := PlanDropTable(table)
	if _, err := s.exec.ExecContext(ctx, planned.SQL); err != nil {
		observability.RecordSpanError(span, err)
		return err
	}
	s.mu.Lock()
	delete(s.tables, table)
	s.mu.Unlock()
	s.logger.Debug("table dropped", slog.String("table", table))
	return nil
}

// Write upserts the columns of w. Driver errors are returned unchanged.
func (s *Store) Write(ctx context.Context, w storage.Write) error {
	sch, err := s.lookup(w.Table)
	if err != nil {
		return err
	}
	planned, err := PlanUpsert(sch, w)
	if err != nil {
		return err
	}

	ctx, span := observability.StartSpan(ctx, tracerName, "sqlstore.write",
		attribute.String("db.table", w.Table),
		attribute.Int("db.columns", len(w.Columns)),
	)
	defer span.End()

	if _, err := s.exec.ExecContext(ctx, planned.SQL, planned.Args...); err != nil {
		observability.RecordSpanError(span, err)
		return err
	}
	return nil
}

// Read selects the row addressed by key. Null columns are omitted from the result.
func (s *Store) Read(ctx context.Context, table string, key storage.RowKey) (map[string]any, error) {
	sch, err := s.lookup(table)
	if err != nil {
		return nil, err
	}
	planned, err := PlanSelect(sch, key)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, tracerName, "sqlstore.read",
		attribute.String("db.table", table))
	defer span.End()

	rows, err := s.exec.QueryContext(ctx, planned.SQL, planned.Args...)
	if err != nil {
		observability.RecordSpanError(span, err)
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			observability.RecordSpanError(span, err)
			return nil, err
		}
		return nil, storage.ErrNotFound
	}

	columns := sch.Columns()
	dest := make([]any, len(columns))
	for i, col := range columns {
		dest[i] = scanTarget(col.Type)
	}
	if err := rows.Scan(dest...); err != nil {
		observability.RecordSpanError(span, err)
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(columns))
	for i, col := range columns {
		v, err := decodeValue(col.Type, dest[i])
		if err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", table, col.Name, err)
		}
		if v != nil {
			out[col.Name] = v
		}
	}
	return out, nil
}

func scanTarget(t schema.Type) any {
	switch t {
	case schema.TypeInt:
		return &sql.NullInt64{}
	case schema.TypeFloat:
		return &sql.NullFloat64{}
	case schema.TypeBool:
		return &sql.NullBool{}
	case schema.TypeTimestamp:
		return &sql.NullTime{}
	default:
		return &sql.NullString{}
	}
}

func decodeValue(t schema.Type, target any) (any, error) {
	switch v := target.(type) {
	case *sql.NullInt64:
		if !v.Valid {
			return nil, nil
		}
		return v.Int64, nil
	case *sql.NullFloat64:
		if !v.Valid {
			return nil, nil
		}
		return v.Float64, nil
	case *sql.NullBool:
		if !v.Valid {
			return nil, nil
		}
		return v.Bool, nil
	case *sql.NullTime:
		if !v.Valid {
			return nil, nil
		}
		return t.Coerce(v.Time)
	case *sql.NullString:
		if !v.Valid {
			return nil, nil
		}
		return t.Coerce(v.String)
	}
	return nil, fmt.Errorf("unexpected scan target %T", target)
}
