// Package mutation turns validated change sets into storage writes.
package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"cqlmapper/internal/changeset"
	"cqlmapper/internal/logging"
	"cqlmapper/internal/observability"
	"cqlmapper/internal/storage"
)

const tracerName = "cqlmapper/mutation"

// Result describes the outcome of Execute.
type Result struct {
	// Elided is true when the change set was empty and no write was issued.
	Elided    bool
	Columns   int
	Timestamp int64
}

// Executor issues at most one storage write per change set.
type Executor struct {
	store   storage.Store
	metrics *observability.MutationMetrics
	logger  *logging.Logger
	now     func() time.Time
	last    atomic.Int64
}

// Option configures an Executor.
type Option func(*Executor)

// WithMetrics records write counters on m.
func WithMetrics(m *observability.MutationMetrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithLogger sets the executor logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithClock replaces the clock used for write timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// NewExecutor creates an executor writing to store.
func NewExecutor(store storage.Store, opts ...Option) *Executor {
	e := &Executor{
		store:  store,
		logger: logging.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Metrics returns the metrics the executor records to, possibly nil.
func (e *Executor) Metrics() *observability.MutationMetrics {
	return e.metrics
}

// Execute writes cs. An empty change set issues no storage call at all.
// Storage errors are returned wrapped but otherwise untouched.
func (e *Executor) Execute(ctx context.Context, cs changeset.ChangeSet) (Result, error) {
	if cs.Empty() {
		e.metrics.RecordElided(ctx, cs.Table)
		e.logger.Debug("mutation elided",
			slog.String("table", cs.Table),
			slog.String("key", cs.Key.String()),
		)
		return Result{Elided: true}, nil
	}

	ts := e.timestamp()
	ctx, span := observability.StartSpan(ctx, tracerName, "mutation.execute",
		attribute.String("db.table", cs.Table),
		attribute.Int("mutation.columns", cs.Len()),
		attribute.Bool("mutation.create", cs.Create),
	)
	defer span.End()

	start := time.Now()
	err := e.store.Write(ctx, storage.Write{
		Table:     cs.Table,
		Key:       cs.Key,
		Columns:   cs.Columns,
		Timestamp: ts,
	})
	e.metrics.RecordWrite(ctx, cs.Table, cs.Len(), time.Since(start), err)
	if err != nil {
		observability.RecordSpanError(span, err)
		e.logger.Warn("mutation write failed",
			slog.String("table", cs.Table),
			slog.String("key", cs.Key.String()),
			slog.String("error", err.Error()),
		)
		return Result{}, fmt.Errorf("write %s %s: %w", cs.Table, cs.Key, err)
	}

	e.logger.Debug("mutation written",
		slog.String("table", cs.Table),
		slog.String("key", cs.Key.String()),
		slog.Any("columns", cs.Names()),
		slog.Bool("create", cs.Create),
	)
	return Result{Columns: cs.Len(), Timestamp: ts}, nil
}

// timestamp returns a microsecond write time that strictly increases across
// calls on this executor.
func (e *Executor) timestamp() int64 {
	now := e.now().UnixMicro()
	for {
		last := e.last.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if e.last.CompareAndSwap(last, next) {
			return next
		}
	}
}
