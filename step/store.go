package step

import "context"

// Store defines the persistence contract for step executions.
type Store interface {
	// CreateStepExecution persists a new step execution whose ID has
	// already been allocated.
	CreateStepExecution(ctx context.Context, se *StepExecution) error

	// GetStepExecution retrieves a step execution by ID.
	GetStepExecution(ctx context.Context, stepExecutionID int64) (*StepExecution, error)

	// TransitionStepExecution applies t only if the persisted status still
	// equals t.From. Non-nil t.Counts are written with the status.
	TransitionStepExecution(ctx context.Context, stepExecutionID int64, t Transition) (*StepExecution, error)

	// ListStepExecutions returns the steps of a job execution ordered by ID
	// ascending, which is the order they were started in.
	ListStepExecutions(ctx context.Context, jobExecutionID int64) ([]*StepExecution, error)
}
