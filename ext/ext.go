package ext

import (
	"context"

	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Instance hooks
// ──────────────────────────────────────────────────

// InstanceCreated is called after a job instance is stored.
type InstanceCreated interface {
	OnInstanceCreated(ctx context.Context, inst *instance.JobInstance) error
}

// ──────────────────────────────────────────────────
// Execution hooks
// ──────────────────────────────────────────────────

// ExecutionCreated is called after a job execution is stored.
type ExecutionCreated interface {
	OnExecutionCreated(ctx context.Context, exec *execution.JobExecution) error
}

// ExecutionTransitioned is called after a job execution moves from one
// status to another. exec carries the new status.
type ExecutionTransitioned interface {
	OnExecutionTransitioned(ctx context.Context, exec *execution.JobExecution, from status.Status) error
}

// ──────────────────────────────────────────────────
// Step hooks
// ──────────────────────────────────────────────────

// StepExecutionCreated is called after a step execution is stored.
type StepExecutionCreated interface {
	OnStepExecutionCreated(ctx context.Context, se *step.StepExecution) error
}

// StepTransitioned is called after a step execution changes status.
type StepTransitioned interface {
	OnStepTransitioned(ctx context.Context, se *step.StepExecution, from status.Status) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called when the repository closes.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
