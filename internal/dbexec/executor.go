// Package dbexec provides the SQL execution seam shared by SQL-backed stores,
// so a *sql.DB, a transaction or a test double can stand behind them.
package dbexec

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"cqlmapper/internal/logging"
)

// Rows is the subset of *sql.Rows a store reads results through.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryExecutor runs statements for a store.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// StandardExecutor runs statements directly on a database handle.
type StandardExecutor struct {
	db *sql.DB
}

// NewStandardExecutor creates an executor over db.
func NewStandardExecutor(db *sql.DB) *StandardExecutor {
	return &StandardExecutor{db: db}
}

func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.QueryContext(ctx, query, args...)
}

func (e *StandardExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.ExecContext(ctx, query, args...)
}

// LoggingExecutor logs every statement it forwards: at debug with its
// duration, or at warn when it fails. Argument values are never logged.
type LoggingExecutor struct {
	next   QueryExecutor
	logger *logging.Logger
}

// NewLoggingExecutor wraps next. A nil logger discards output.
func NewLoggingExecutor(next QueryExecutor, logger *logging.Logger) *LoggingExecutor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &LoggingExecutor{next: next, logger: logger}
}

func (e *LoggingExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	start := time.Now()
	rows, err := e.next.QueryContext(ctx, query, args...)
	e.log(ctx, "query", query, len(args), time.Since(start), err)
	return rows, err
}

func (e *LoggingExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := e.next.ExecContext(ctx, query, args...)
	e.log(ctx, "exec", query, len(args), time.Since(start), err)
	return res, err
}

func (e *LoggingExecutor) log(ctx context.Context, kind, query string, nargs int, elapsed time.Duration, err error) {
	attrs := []any{
		slog.String("kind", kind),
		slog.String("sql", query),
		slog.Int("args", nargs),
		slog.Duration("duration", elapsed),
	}
	if err != nil {
		e.logger.WarnContext(ctx, "statement failed", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	e.logger.DebugContext(ctx, "statement executed", attrs...)
}
