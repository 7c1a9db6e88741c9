// Package middleware provides composable middleware for repository
// operations.
//
// A [Middleware] is a function that wraps one repository call. Middleware
// are composed into a chain using [Chain] and applied around every
// operation the repository performs. The first middleware in the slice is
// the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging]: logs operation name, entity, duration, and outcome
//   - [Recover]: catches panics and converts them to errors
//   - [Timeout]: bounds each operation with a context deadline
//   - [Tracing]: wraps the operation in an OpenTelemetry span
//   - [Metrics]: records per-operation duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, op middleware.Operation, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
