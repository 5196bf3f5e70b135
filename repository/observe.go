package repository

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jacentio/trove/store"
)

// Outcome labels of trove_repository_operations_total.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Metrics holds the Prometheus collectors shared by repositories.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates the repository collectors and registers them with reg.
// One Metrics value is meant to be shared by every repository of a process.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trove_repository_operations_total",
				Help: "Total repository operations by outcome.",
			},
			[]string{"collection", "operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trove_repository_operation_duration_seconds",
				Help:    "Repository operation latency in seconds.",
				Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"collection", "operation"},
		),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.operations, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) observe(collection, operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(collection, operation, outcome).Inc()
	m.duration.WithLabelValues(collection, operation).Observe(d.Seconds())
}

// outcome classifies an operation error for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrInvalidFormat), errors.Is(err, ErrMismatchedLengths),
		errors.Is(err, ErrBatchTooLarge), errors.Is(err, ErrInvalidLimit),
		errors.Is(err, store.ErrInvalidPredicate):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}

// observe starts a span for operation and returns the context to run it in
// and a function that ends the span and records metrics and logs.
func (r *Repository[T]) observe(ctx context.Context, operation string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "trove."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("trove.collection", r.collection)),
	)

	return ctx, func(err error) {
		elapsed := time.Since(start)
		result := outcome(err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		r.metrics.observe(r.collection, operation, result, elapsed)

		r.logger.Debug("repository operation",
			zap.String("collection", r.collection),
			zap.String("operation", operation),
			zap.String("outcome", result),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	}
}
