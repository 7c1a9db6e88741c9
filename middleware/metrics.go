package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for jobrepo metrics.
const meterName = "github.com/xraph/jobrepo"

// Metrics returns middleware that records per-operation metrics using the
// global OTel MeterProvider.
//
// Instruments:
//   - jobrepo.operation.duration (Float64Histogram): seconds, with
//     attributes op, entity, outcome
//   - jobrepo.operation.calls (Int64Counter): total calls, with
//     attributes op, entity, outcome
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	duration, dErr := meter.Float64Histogram(
		"jobrepo.operation.duration",
		metric.WithDescription("Duration of repository operations in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	calls, cErr := meter.Int64Counter(
		"jobrepo.operation.calls",
		metric.WithDescription("Total number of repository operations"),
		metric.WithUnit("{call}"),
	)
	_ = cErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, op Operation, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		attrs := metric.WithAttributes(
			attribute.String("op", op.Name),
			attribute.String("entity", op.Entity),
			attribute.String("outcome", Outcome(err)),
		)
		duration.Record(ctx, elapsed, attrs)
		calls.Add(ctx, 1, attrs)
		return err
	}
}
