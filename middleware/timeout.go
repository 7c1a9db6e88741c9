package middleware

import (
	"context"
	"time"
)

// Timeout returns middleware that bounds every operation with d. A zero or
// negative d disables it. An earlier deadline already on ctx wins.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ Operation, next Handler) error {
		if d <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
