package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for jobrepo tracing.
const tracerName = "github.com/xraph/jobrepo"

// Tracing returns middleware that wraps each operation in an OpenTelemetry
// span. With no TracerProvider configured globally the noop tracer is used.
//
// Span attributes: jobrepo.op, jobrepo.entity, jobrepo.id, jobrepo.job_name,
// jobrepo.outcome.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, op Operation, next Handler) error {
		ctx, span := tracer.Start(ctx, "jobrepo."+op.Name,
			trace.WithAttributes(
				attribute.String("jobrepo.op", op.Name),
				attribute.String("jobrepo.entity", op.Entity),
				attribute.Int64("jobrepo.id", op.ID),
				attribute.String("jobrepo.job_name", op.JobName),
			),
			trace.WithSpanKind(trace.SpanKindClient),
		)
		defer span.End()

		err := next(ctx)
		span.SetAttributes(attribute.String("jobrepo.outcome", Outcome(err)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}
