package middleware

import (
	"context"
	"errors"

	"github.com/xraph/jobrepo"
)

// Operation describes the repository call being wrapped.
type Operation struct {
	// Name is the repository method, e.g. "CreateExecution".
	Name string
	// Entity is the record kind touched: "job instance", "job execution",
	// "step execution", "sequence" or "schema".
	Entity string
	// ID is the record the call targets, zero when not yet known.
	ID int64
	// JobName is set for calls scoped to a job.
	JobName string
}

// Handler is the terminal function that performs the store call.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic.
type Middleware func(ctx context.Context, op Operation, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// The first middleware in the list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, op Operation, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, op, prev)
			}
		}
		return h(ctx)
	}
}

// Outcome classifies err into a low-cardinality label for logs, spans and
// metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, jobrepo.ErrBackendUnavailable):
		return "unavailable"
	case errors.Is(err, jobrepo.ErrInstanceNotFound),
		errors.Is(err, jobrepo.ErrExecutionNotFound),
		errors.Is(err, jobrepo.ErrStepExecutionNotFound),
		errors.Is(err, jobrepo.ErrReferenceNotFound):
		return "not_found"
	case errors.Is(err, jobrepo.ErrDuplicateInstance),
		errors.Is(err, jobrepo.ErrInvalidTransition),
		errors.Is(err, jobrepo.ErrExecutionAlreadyRunning),
		errors.Is(err, jobrepo.ErrInstanceAlreadyComplete):
		return "conflict"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
