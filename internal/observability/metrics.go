package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MutationMetrics holds the counters recorded by the mutation executor.
// A nil *MutationMetrics records nothing.
type MutationMetrics struct {
	writesIssued       metric.Int64Counter
	writesElided       metric.Int64Counter
	writesFailed       metric.Int64Counter
	validationFailures metric.Int64Counter
	writeColumns       metric.Int64Histogram
	writeDuration      metric.Float64Histogram
}

// InitMutationMetrics creates the mutation metrics on the global meter provider.
func InitMutationMetrics() (*MutationMetrics, error) {
	return NewMutationMetrics(otel.Meter("cqlmapper"))
}

// NewMutationMetrics creates the mutation metrics on meter.
func NewMutationMetrics(meter metric.Meter) (*MutationMetrics, error) {
	writesIssued, err := meter.Int64Counter(
		"cqlmapper.writes.issued",
		metric.WithDescription("Number of writes sent to storage"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create writes issued counter: %w", err)
	}

	writesElided, err := meter.Int64Counter(
		"cqlmapper.writes.elided",
		metric.WithDescription("Number of mutations skipped because nothing changed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create writes elided counter: %w", err)
	}

	writesFailed, err := meter.Int64Counter(
		"cqlmapper.writes.failed",
		metric.WithDescription("Number of writes rejected by storage"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create writes failed counter: %w", err)
	}

	validationFailures, err := meter.Int64Counter(
		"cqlmapper.validation.failures",
		metric.WithDescription("Number of mutations rejected before reaching storage"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation failures counter: %w", err)
	}

	writeColumns, err := meter.Int64Histogram(
		"cqlmapper.write.columns",
		metric.WithDescription("Number of columns covered by a write"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create write columns histogram: %w", err)
	}

	writeDuration, err := meter.Float64Histogram(
		"cqlmapper.write.duration",
		metric.WithDescription("Duration of storage writes in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create write duration histogram: %w", err)
	}

	return &MutationMetrics{
		writesIssued:       writesIssued,
		writesElided:       writesElided,
		writesFailed:       writesFailed,
		validationFailures: validationFailures,
		writeColumns:       writeColumns,
		writeDuration:      writeDuration,
	}, nil
}

// RecordWrite records a write sent to storage and its outcome.
func (m *MutationMetrics) RecordWrite(ctx context.Context, table string, columns int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("table", table))
	m.writesIssued.Add(ctx, 1, attrs)
	m.writeColumns.Record(ctx, int64(columns), attrs)
	m.writeDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.writesFailed.Add(ctx, 1, attrs)
	}
}

// RecordElided records a mutation that produced no writes.
func (m *MutationMetrics) RecordElided(ctx context.Context, table string) {
	if m == nil {
		return
	}
	m.writesElided.Add(ctx, 1, metric.WithAttributes(attribute.String("table", table)))
}

// RecordValidationFailure records a mutation rejected before storage.
func (m *MutationMetrics) RecordValidationFailure(ctx context.Context, table, mode, reason string) {
	if m == nil {
		return
	}
	m.validationFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("mode", mode),
		attribute.String("reason", reason),
	))
}
