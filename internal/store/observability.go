package store

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

func (s *Store) initMetrics(meter metric.Meter) {
	s.queryCount, _ = meter.Int64Counter("postfeed.store.query.count",
		metric.WithDescription("Total number of SQL queries executed"),
		metric.WithUnit("{query}"),
	)
	s.queryDuration, _ = meter.Float64Histogram("postfeed.store.query.duration",
		metric.WithDescription("Query execution duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000),
	)
	s.queryErrors, _ = meter.Int64Counter("postfeed.store.query.errors",
		metric.WithDescription("Total number of failed SQL queries"),
		metric.WithUnit("{error}"),
	)
}

// observe runs fn inside a span and records query metrics. The returned error
// is already translated to the store's sentinel errors.
func (s *Store) observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "store."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", s.driver),
			attribute.String("db.operation", op),
		),
	)
	defer span.End()

	start := time.Now()
	err := translate(fn(ctx))
	elapsed := time.Since(start)

	attrs := metric.WithAttributes(
		attribute.String("db.operation", op),
		attribute.String("db.system", s.driver),
	)
	if s.queryCount != nil {
		s.queryCount.Add(ctx, 1, attrs)
	}
	if s.queryDuration != nil {
		s.queryDuration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}

	// a missing row is an answer, not a failure
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if s.queryErrors != nil {
			s.queryErrors.Add(ctx, 1, attrs)
		}
	}
	return err
}
