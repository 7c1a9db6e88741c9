package execution

import (
	"context"

	"github.com/xraph/jobrepo/status"
)

// Store defines the persistence contract for job executions.
type Store interface {
	// CreateExecution persists a new execution whose ID has already been
	// allocated. Parent existence is the caller's concern.
	CreateExecution(ctx context.Context, exec *JobExecution) error

	// GetExecution retrieves an execution by ID.
	GetExecution(ctx context.Context, executionID int64) (*JobExecution, error)

	// TransitionExecution applies t only if the persisted status still
	// equals t.From. On mismatch it returns a *jobrepo.TransitionError
	// carrying the status actually stored.
	TransitionExecution(ctx context.Context, executionID int64, t status.Transition) (*JobExecution, error)

	// ListExecutions returns the executions of an instance ordered by ID
	// descending.
	ListExecutions(ctx context.Context, instanceID int64) ([]*JobExecution, error)

	// ListExecutionsByStatus returns the executions of an instance in the
	// given status ordered by ID descending.
	ListExecutionsByStatus(ctx context.Context, instanceID int64, st status.Status) ([]*JobExecution, error)

	// ListRunningExecutions returns executions of any of the given instances
	// whose status is STARTING, STARTED or STOPPING, ordered by ID descending.
	ListRunningExecutions(ctx context.Context, instanceIDs []int64) ([]*JobExecution, error)
}
