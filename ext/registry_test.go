package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/ext"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
	froms []status.Status
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnInstanceCreated(_ context.Context, _ *instance.JobInstance) error {
	e.calls = append(e.calls, "OnInstanceCreated")
	return nil
}

func (e *allHooksExt) OnExecutionCreated(_ context.Context, _ *execution.JobExecution) error {
	e.calls = append(e.calls, "OnExecutionCreated")
	return nil
}

func (e *allHooksExt) OnExecutionTransitioned(_ context.Context, _ *execution.JobExecution, from status.Status) error {
	e.calls = append(e.calls, "OnExecutionTransitioned")
	e.froms = append(e.froms, from)
	return nil
}

func (e *allHooksExt) OnStepExecutionCreated(_ context.Context, _ *step.StepExecution) error {
	e.calls = append(e.calls, "OnStepExecutionCreated")
	return nil
}

func (e *allHooksExt) OnStepTransitioned(_ context.Context, _ *step.StepExecution, from status.Status) error {
	e.calls = append(e.calls, "OnStepTransitioned")
	e.froms = append(e.froms, from)
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// instanceOnlyExt only implements the instance hook.
type instanceOnlyExt struct {
	calls []string
}

func (e *instanceOnlyExt) Name() string { return "instance-only" }

func (e *instanceOnlyExt) OnInstanceCreated(_ context.Context, _ *instance.JobInstance) error {
	e.calls = append(e.calls, "OnInstanceCreated")
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnInstanceCreated(_ context.Context, _ *instance.JobInstance) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	r.Register(&allHooksExt{})

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	io := &instanceOnlyExt{}
	r.Register(all)
	r.Register(io)

	ctx := context.Background()

	r.EmitInstanceCreated(ctx, &instance.JobInstance{ID: 1, JobName: "payroll"})
	if len(all.calls) != 1 || len(io.calls) != 1 {
		t.Fatalf("expected both called once, got all=%v io=%v", all.calls, io.calls)
	}

	r.EmitExecutionCreated(ctx, &execution.JobExecution{ID: 1})
	if len(all.calls) != 2 || all.calls[1] != "OnExecutionCreated" {
		t.Fatalf("all: expected OnExecutionCreated as 2nd, got %v", all.calls)
	}
	if len(io.calls) != 1 {
		t.Fatalf("io: should still have 1 call, got %v", io.calls)
	}
}

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	exec := &execution.JobExecution{ID: 7, Status: status.Started}
	se := &step.StepExecution{ID: 9, Status: status.Completed}

	r.EmitInstanceCreated(ctx, &instance.JobInstance{})
	r.EmitExecutionCreated(ctx, exec)
	r.EmitExecutionTransitioned(ctx, exec, status.Starting)
	r.EmitStepExecutionCreated(ctx, se)
	r.EmitStepTransitioned(ctx, se, status.Started)
	r.EmitShutdown(ctx)

	expected := []string{
		"OnInstanceCreated", "OnExecutionCreated", "OnExecutionTransitioned",
		"OnStepExecutionCreated", "OnStepTransitioned", "OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}

	wantFroms := []status.Status{status.Starting, status.Started}
	for i, want := range wantFroms {
		if all.froms[i] != want {
			t.Errorf("from[%d] = %q, want %q", i, all.froms[i], want)
		}
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}

	r.Register(&failingExt{})
	r.Register(all)

	ctx := context.Background()
	r.EmitInstanceCreated(ctx, &instance.JobInstance{})
	r.EmitShutdown(ctx)

	if len(all.calls) != 2 {
		t.Fatalf("all: expected 2 calls despite failing ext, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(nil)
	ctx := context.Background()

	r.EmitInstanceCreated(ctx, &instance.JobInstance{})
	r.EmitExecutionCreated(ctx, &execution.JobExecution{})
	r.EmitExecutionTransitioned(ctx, &execution.JobExecution{}, status.Starting)
	r.EmitStepExecutionCreated(ctx, &step.StepExecution{})
	r.EmitStepTransitioned(ctx, &step.StepExecution{}, status.Starting)
	r.EmitShutdown(ctx)
}

func TestRegistry_MultipleExtensionsOrderPreserved(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ext1 := &allHooksExt{}
	ext2 := &allHooksExt{}
	r.Register(ext1)
	r.Register(ext2)

	r.EmitInstanceCreated(context.Background(), &instance.JobInstance{})

	if len(ext1.calls) != 1 {
		t.Errorf("ext1: expected 1 call, got %d", len(ext1.calls))
	}
	if len(ext2.calls) != 1 {
		t.Errorf("ext2: expected 1 call, got %d", len(ext2.calls))
	}
}
