package ext

import (
	"context"
	"log/slog"

	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time.
type instanceCreatedEntry struct {
	name string
	hook InstanceCreated
}

type executionCreatedEntry struct {
	name string
	hook ExecutionCreated
}

type executionTransitionedEntry struct {
	name string
	hook ExecutionTransitioned
}

type stepExecutionCreatedEntry struct {
	name string
	hook StepExecutionCreated
}

type stepTransitionedEntry struct {
	name string
	hook StepTransitioned
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	instanceCreated       []instanceCreatedEntry
	executionCreated      []executionCreatedEntry
	executionTransitioned []executionTransitionedEntry
	stepExecutionCreated  []stepExecutionCreatedEntry
	stepTransitioned      []stepTransitionedEntry
	shutdown              []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(InstanceCreated); ok {
		r.instanceCreated = append(r.instanceCreated, instanceCreatedEntry{name, h})
	}
	if h, ok := e.(ExecutionCreated); ok {
		r.executionCreated = append(r.executionCreated, executionCreatedEntry{name, h})
	}
	if h, ok := e.(ExecutionTransitioned); ok {
		r.executionTransitioned = append(r.executionTransitioned, executionTransitionedEntry{name, h})
	}
	if h, ok := e.(StepExecutionCreated); ok {
		r.stepExecutionCreated = append(r.stepExecutionCreated, stepExecutionCreatedEntry{name, h})
	}
	if h, ok := e.(StepTransitioned); ok {
		r.stepTransitioned = append(r.stepTransitioned, stepTransitionedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Emitters
// ──────────────────────────────────────────────────

// EmitInstanceCreated notifies all extensions that implement InstanceCreated.
func (r *Registry) EmitInstanceCreated(ctx context.Context, inst *instance.JobInstance) {
	for _, e := range r.instanceCreated {
		if err := e.hook.OnInstanceCreated(ctx, inst); err != nil {
			r.logHookError("OnInstanceCreated", e.name, err)
		}
	}
}

// EmitExecutionCreated notifies all extensions that implement ExecutionCreated.
func (r *Registry) EmitExecutionCreated(ctx context.Context, exec *execution.JobExecution) {
	for _, e := range r.executionCreated {
		if err := e.hook.OnExecutionCreated(ctx, exec); err != nil {
			r.logHookError("OnExecutionCreated", e.name, err)
		}
	}
}

// EmitExecutionTransitioned notifies all extensions that implement ExecutionTransitioned.
func (r *Registry) EmitExecutionTransitioned(ctx context.Context, exec *execution.JobExecution, from status.Status) {
	for _, e := range r.executionTransitioned {
		if err := e.hook.OnExecutionTransitioned(ctx, exec, from); err != nil {
			r.logHookError("OnExecutionTransitioned", e.name, err)
		}
	}
}

// EmitStepExecutionCreated notifies all extensions that implement StepExecutionCreated.
func (r *Registry) EmitStepExecutionCreated(ctx context.Context, se *step.StepExecution) {
	for _, e := range r.stepExecutionCreated {
		if err := e.hook.OnStepExecutionCreated(ctx, se); err != nil {
			r.logHookError("OnStepExecutionCreated", e.name, err)
		}
	}
}

// EmitStepTransitioned notifies all extensions that implement StepTransitioned.
func (r *Registry) EmitStepTransitioned(ctx context.Context, se *step.StepExecution, from status.Status) {
	for _, e := range r.stepTransitioned {
		if err := e.hook.OnStepTransitioned(ctx, se, from); err != nil {
			r.logHookError("OnStepTransitioned", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
