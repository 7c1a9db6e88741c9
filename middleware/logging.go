package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs each operation at Debug and failures
// at Warn (expected conflicts) or Error (everything else).
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, op Operation, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		attrs := []any{
			slog.String("op", op.Name),
			slog.String("entity", op.Entity),
			slog.Duration("elapsed", elapsed),
		}
		if op.ID != 0 {
			attrs = append(attrs, slog.Int64("id", op.ID))
		}
		if op.JobName != "" {
			attrs = append(attrs, slog.String("job_name", op.JobName))
		}

		switch outcome := Outcome(err); outcome {
		case "ok":
			logger.DebugContext(ctx, "jobrepo operation", attrs...)
		case "not_found", "conflict":
			logger.WarnContext(ctx, "jobrepo operation rejected",
				append(attrs, slog.String("outcome", outcome), slog.String("error", err.Error()))...)
		default:
			logger.ErrorContext(ctx, "jobrepo operation failed",
				append(attrs, slog.String("outcome", outcome), slog.String("error", err.Error()))...)
		}
		return err
	}
}
