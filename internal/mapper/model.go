// Package mapper is the application-facing surface of the mutation engine:
// models bound to a store, records that can be saved and partially updated,
// and keyed loads.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"cqlmapper/internal/changeset"
	"cqlmapper/internal/entity"
	"cqlmapper/internal/logging"
	"cqlmapper/internal/mutation"
	"cqlmapper/internal/observability"
	"cqlmapper/internal/schema"
	"cqlmapper/internal/storage"
	"cqlmapper/internal/validation"
)

const tracerName = "cqlmapper/mapper"

// ErrDoesNotExist matches every *DoesNotExistError via errors.Is.
var ErrDoesNotExist = errors.New("does not exist")

// DoesNotExistError is returned by Get when no row matches the key.
type DoesNotExistError struct {
	Table string
	Key   storage.RowKey
}

func (e *DoesNotExistError) Error() string {
	return fmt.Sprintf("%s %s does not exist", e.Table, e.Key)
}

// Is lets errors.Is(err, ErrDoesNotExist) match.
func (e *DoesNotExistError) Is(target error) bool {
	return target == ErrDoesNotExist
}

type options struct {
	logger  *logging.Logger
	metrics *observability.MutationMetrics
	clock   func() time.Time
}

// Option configures a Model.
type Option func(*options)

// WithLogger sets the logger used by the model and its executor.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records mutation metrics on m.
func WithMetrics(m *observability.MutationMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces the clock used for write timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// Model binds an entity schema to a store.
type Model struct {
	schema   *schema.Schema
	store    storage.Store
	executor *mutation.Executor
	metrics  *observability.MutationMetrics
	logger   *logging.Logger
}

// NewModel resolves the schema declared by decl's struct tags and binds it to store.
func NewModel(store storage.Store, decl any, opts ...Option) (*Model, error) {
	s, err := schema.Resolve(decl)
	if err != nil {
		return nil, err
	}
	return NewModelFromSchema(store, s, opts...), nil
}

// NewModelFromSchema binds an explicit schema to store.
func NewModelFromSchema(store storage.Store, s *schema.Schema, opts ...Option) *Model {
	o := options{logger: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if r, ok := store.(storage.Registrar); ok {
		r.Register(s)
	}
	logger := o.logger.WithTable(s.Table())
	execOpts := []mutation.Option{
		mutation.WithLogger(logger),
		mutation.WithMetrics(o.metrics),
	}
	if o.clock != nil {
		execOpts = append(execOpts, mutation.WithClock(o.clock))
	}
	return &Model{
		schema:   s,
		store:    store,
		executor: mutation.NewExecutor(store, execOpts...),
		metrics:  o.metrics,
		logger:   logger,
	}
}

// Schema returns the model schema.
func (m *Model) Schema() *schema.Schema {
	return m.schema
}

// Sync creates the model table if it does not exist.
func (m *Model) Sync(ctx context.Context) error {
	if err := m.store.CreateTable(ctx, m.schema); err != nil {
		return fmt.Errorf("sync table %s: %w", m.schema.Table(), err)
	}
	m.logger.Info("table synced")
	return nil
}

// Drop removes the model table.
func (m *Model) Drop(ctx context.Context) error {
	if err := m.store.DropTable(ctx, m.schema.Table()); err != nil {
		return fmt.Errorf("drop table %s: %w", m.schema.Table(), err)
	}
	m.logger.Info("table dropped")
	return nil
}

// New constructs a record from explicit values without writing it.
// Primary-key columns not supplied are generated by their default provider.
func (m *Model) New(values map[string]any) (*Record, error) {
	inst, err := entity.New(m.schema, values)
	if err != nil {
		return nil, err
	}
	return &Record{model: m, inst: inst}, nil
}

// Create constructs a record and writes it as a new row. Required columns
// are enforced.
func (m *Model) Create(ctx context.Context, values map[string]any) (*Record, error) {
	rec, err := m.New(values)
	if err != nil {
		return nil, err
	}
	rec.inst.RequestCreate()
	if err := rec.Save(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get loads the row addressed by the given primary-key values.
func (m *Model) Get(ctx context.Context, key map[string]any) (*Record, error) {
	ctx, span := observability.StartSpan(ctx, tracerName, "mapper.get",
		attribute.String("db.table", m.schema.Table()),
	)
	defer span.End()

	rowKey, err := m.rowKey(key)
	if err != nil {
		observability.RecordSpanError(span, err)
		return nil, err
	}

	row, err := m.store.Read(ctx, m.schema.Table(), rowKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &DoesNotExistError{Table: m.schema.Table(), Key: rowKey}
	}
	if err != nil {
		observability.RecordSpanError(span, err)
		return nil, fmt.Errorf("read %s %s: %w", m.schema.Table(), rowKey, err)
	}

	inst, err := entity.Load(m.schema, row)
	if err != nil {
		observability.RecordSpanError(span, err)
		return nil, err
	}
	return &Record{model: m, inst: inst}, nil
}

func (m *Model) rowKey(key map[string]any) (storage.RowKey, error) {
	names := make([]string, 0, len(key))
	for name := range key {
		names = append(names, name)
	}
	sort.Strings(names)

	coerced := make(map[string]any, len(key))
	for _, name := range names {
		col, ok := m.schema.Column(name)
		if !ok {
			return nil, &validation.ValidationError{Table: m.schema.Table(), Column: name, Reason: validation.ReasonUnknownColumn}
		}
		if !col.PrimaryKey {
			return nil, &validation.ValidationError{
				Table:  m.schema.Table(),
				Column: name,
				Reason: validation.ReasonInvalidValue,
				Detail: "not a primary key column",
			}
		}
		v, err := col.Type.Coerce(key[name])
		if err != nil {
			return nil, &validation.ValidationError{Table: m.schema.Table(), Column: name, Reason: validation.ReasonInvalidValue, Detail: err.Error()}
		}
		coerced[name] = v
	}
	for _, name := range m.schema.PrimaryKey() {
		if v, ok := coerced[name]; !ok || v == nil {
			return nil, &validation.ValidationError{Table: m.schema.Table(), Column: name, Reason: validation.ReasonPrimaryKeyMissing}
		}
	}
	return storage.KeyFor(m.schema, coerced)
}

func (m *Model) validate(ctx context.Context, cs changeset.ChangeSet, mode validation.Mode) error {
	err := validation.Validate(m.schema, cs, mode)
	if err == nil {
		return nil
	}
	reason := "unknown"
	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		reason = verr.Reason
	}
	m.metrics.RecordValidationFailure(ctx, m.schema.Table(), mode.String(), reason)
	m.logger.Debug("mutation rejected",
		slog.String("mode", mode.String()),
		slog.String("key", cs.Key.String()),
		slog.String("error", err.Error()),
	)
	return err
}
