package repository_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/jobkey"
	mw "github.com/xraph/jobrepo/middleware"
	"github.com/xraph/jobrepo/repository"
	"github.com/xraph/jobrepo/sequence"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
	"github.com/xraph/jobrepo/store/memory"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newRepo(t *testing.T, opts ...repository.Option) *repository.Repository {
	t.Helper()
	base := []repository.Option{
		repository.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		repository.WithClock(func() time.Time { return fixedNow }),
	}
	r, err := repository.New(memory.New(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("repository.New: %v", err)
	}
	if err := r.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return r
}

func mustInstance(t *testing.T, r *repository.Repository, name, key string) *instance.JobInstance {
	t.Helper()
	inst, err := r.CreateInstance(context.Background(), name, key)
	if err != nil {
		t.Fatalf("CreateInstance(%q, %q): %v", name, key, err)
	}
	return inst
}

func mustExecution(t *testing.T, r *repository.Repository, instanceID int64) *execution.JobExecution {
	t.Helper()
	exec, err := r.CreateExecution(context.Background(), instanceID, nil)
	if err != nil {
		t.Fatalf("CreateExecution(%d): %v", instanceID, err)
	}
	return exec
}

func TestNew_NilStore(t *testing.T) {
	if _, err := repository.New(nil); !errors.Is(err, jobrepo.ErrNoStore) {
		t.Fatalf("New(nil) error = %v, want ErrNoStore", err)
	}
}

func TestUnmigratedStore(t *testing.T) {
	r, err := repository.New(memory.New())
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.CreateInstance(context.Background(), "payroll", "k")
	if !errors.Is(err, jobrepo.ErrStoreNotInitialized) {
		t.Fatalf("error = %v, want ErrStoreNotInitialized", err)
	}
}

// ──────────────────────────────────────────────────
// Instances
// ──────────────────────────────────────────────────

func TestCreateInstance_AllocatesSequentialIDs(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	for i, key := range []string{"a", "b", "c"} {
		inst := mustInstance(t, r, "payroll", key)
		if inst.ID != int64(i+1) {
			t.Errorf("instance %q ID = %d, want %d", key, inst.ID, i+1)
		}
		if !inst.CreatedAt.Equal(fixedNow) {
			t.Errorf("CreatedAt = %v, want %v", inst.CreatedAt, fixedNow)
		}
	}

	list, err := r.ListInstances(ctx, "payroll", instance.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	var ids []int64
	for _, inst := range list {
		ids = append(ids, inst.ID)
	}
	if len(ids) != 3 || ids[0] != 3 || ids[1] != 2 || ids[2] != 1 {
		t.Fatalf("ListInstances ids = %v, want [3 2 1]", ids)
	}

	last, err := r.LastInstance(ctx, "payroll")
	if err != nil {
		t.Fatal(err)
	}
	if last.ID != 3 {
		t.Errorf("LastInstance ID = %d, want 3", last.ID)
	}

	n, err := r.CountInstances(ctx, "payroll")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("CountInstances = %d, want 3", n)
	}
}

func TestCreateInstance_Validation(t *testing.T) {
	r := newRepo(t)
	if _, err := r.CreateInstance(context.Background(), "", "k"); !errors.Is(err, jobrepo.ErrInvalidArgument) {
		t.Fatalf("empty name error = %v, want ErrInvalidArgument", err)
	}
	_, err := r.ListInstances(context.Background(), "payroll", instance.ListOpts{Limit: -1})
	if !errors.Is(err, jobrepo.ErrInvalidArgument) {
		t.Fatalf("negative limit error = %v, want ErrInvalidArgument", err)
	}
}

func TestCreateInstance_Duplicate(t *testing.T) {
	r := newRepo(t)
	mustInstance(t, r, "payroll", "k")

	_, err := r.CreateInstance(context.Background(), "payroll", "k")
	var dup *jobrepo.DuplicateInstanceError
	if !errors.As(err, &dup) {
		t.Fatalf("error = %v, want DuplicateInstanceError", err)
	}
	if dup.JobName != "payroll" || dup.JobKey != "k" {
		t.Errorf("dup = %+v", dup)
	}
}

func TestCreateInstance_ConcurrentDuplicates(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	var created, duplicates atomic.Int32
	var g errgroup.Group
	for range 16 {
		g.Go(func() error {
			_, err := r.CreateInstance(ctx, "payroll", "same-key")
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, jobrepo.ErrDuplicateInstance):
				duplicates.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if created.Load() != 1 || duplicates.Load() != 15 {
		t.Fatalf("created=%d duplicates=%d, want 1/15", created.Load(), duplicates.Load())
	}
}

func TestGetOrCreateInstance(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	first, created, err := r.GetOrCreateInstance(ctx, "payroll", "k")
	if err != nil || !created {
		t.Fatalf("first call: created=%v err=%v", created, err)
	}
	second, created, err := r.GetOrCreateInstance(ctx, "payroll", "k")
	if err != nil || created {
		t.Fatalf("second call: created=%v err=%v", created, err)
	}
	if first.ID != second.ID {
		t.Errorf("ids differ: %d vs %d", first.ID, second.ID)
	}
}

func TestCreateInstanceForParameters(t *testing.T) {
	r := newRepo(t)
	params := jobkey.Parameters{
		"date": jobkey.Identifying("2026-03-14"),
		"run":  jobkey.NonIdentifying(7),
	}
	inst, err := r.CreateInstanceForParameters(context.Background(), "payroll", params)
	if err != nil {
		t.Fatal(err)
	}
	if inst.JobKey != jobkey.Generate(params) {
		t.Errorf("JobKey = %q, want %q", inst.JobKey, jobkey.Generate(params))
	}

	found, err := r.FindInstance(context.Background(), "payroll", jobkey.Generate(jobkey.Parameters{
		"date": jobkey.Identifying("2026-03-14"),
	}))
	if err != nil {
		t.Fatalf("FindInstance ignoring non-identifying params: %v", err)
	}
	if found.ID != inst.ID {
		t.Errorf("found ID = %d, want %d", found.ID, inst.ID)
	}
}

func TestInstanceLookups_NotFound(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	if _, err := r.GetInstance(ctx, 99); !errors.Is(err, jobrepo.ErrInstanceNotFound) {
		t.Errorf("GetInstance error = %v", err)
	}
	if _, err := r.FindInstance(ctx, "payroll", "missing"); !errors.Is(err, jobrepo.ErrInstanceNotFound) {
		t.Errorf("FindInstance error = %v", err)
	}
	if _, err := r.LastInstance(ctx, "payroll"); !errors.Is(err, jobrepo.ErrInstanceNotFound) {
		t.Errorf("LastInstance error = %v", err)
	}
}

func TestJobNames(t *testing.T) {
	r := newRepo(t)
	mustInstance(t, r, "reports", "a")
	mustInstance(t, r, "payroll", "a")
	mustInstance(t, r, "payroll", "b")

	names, err := r.JobNames(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "payroll" || names[1] != "reports" {
		t.Fatalf("JobNames = %v", names)
	}
}

// ──────────────────────────────────────────────────
// Executions
// ──────────────────────────────────────────────────

func TestCreateExecution(t *testing.T) {
	r := newRepo(t)
	inst := mustInstance(t, r, "payroll", "k")

	exec := mustExecution(t, r, inst.ID)
	if exec.ID != 1 || exec.JobInstanceID != inst.ID {
		t.Errorf("exec = %+v", exec)
	}
	if exec.Status != status.Starting {
		t.Errorf("Status = %s, want STARTING", exec.Status)
	}
	if exec.StartTime != nil || exec.EndTime != nil {
		t.Errorf("new execution has timestamps: %+v", exec)
	}
	if !exec.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v", exec.CreatedAt)
	}
}

func TestCreateExecution_MissingInstance(t *testing.T) {
	r := newRepo(t)
	_, err := r.CreateExecution(context.Background(), 42, nil)
	var ref *jobrepo.ReferenceError
	if !errors.As(err, &ref) {
		t.Fatalf("error = %v, want ReferenceError", err)
	}
	if ref.Entity != "job instance" || ref.ID != 42 {
		t.Errorf("ref = %+v", ref)
	}

	seqs, err := r.Sequences(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if seqs[sequence.JobExecution] != 0 {
		t.Errorf("execution counter advanced to %d", seqs[sequence.JobExecution])
	}
}

func TestUpdateExecutionStatus_Lifecycle(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	inst := mustInstance(t, r, "payroll", "k")
	exec := mustExecution(t, r, inst.ID)

	started, err := r.UpdateExecutionStatus(ctx, exec.ID, status.Update{To: status.Started})
	if err != nil {
		t.Fatalf("STARTED: %v", err)
	}
	if started.StartTime == nil || !started.StartTime.Equal(fixedNow) {
		t.Errorf("StartTime = %v, want %v", started.StartTime, fixedNow)
	}
	if started.EndTime != nil {
		t.Errorf("EndTime set on STARTED")
	}

	done, err := r.UpdateExecutionStatus(ctx, exec.ID, status.Update{To: status.Completed})
	if err != nil {
		t.Fatalf("COMPLETED: %v", err)
	}
	if done.EndTime == nil || !done.EndTime.Equal(fixedNow) {
		t.Errorf("EndTime = %v", done.EndTime)
	}
	if done.ExitCode != "COMPLETED" {
		t.Errorf("ExitCode = %q, want COMPLETED", done.ExitCode)
	}
	if done.StartTime == nil {
		t.Errorf("StartTime lost on completion")
	}

	_, err = r.UpdateExecutionStatus(ctx, exec.ID, status.Update{To: status.Started})
	var te *jobrepo.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("update after COMPLETED error = %v, want TransitionError", err)
	}
	if te.From != status.Completed || te.To != status.Started {
		t.Errorf("te = %+v", te)
	}

	got, err := r.GetExecution(ctx, exec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != status.Completed {
		t.Errorf("stored status = %s after rejected update", got.Status)
	}
}

func TestUpdateExecutionStatus_Errors(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	inst := mustInstance(t, r, "payroll", "k")
	exec := mustExecution(t, r, inst.ID)

	tests := []struct {
		name   string
		id     int64
		update status.Update
		want   error
	}{
		{"unknown status", exec.ID, status.Update{To: "PAUSED"}, jobrepo.ErrInvalidArgument},
		{"missing execution", 999, status.Update{To: status.Started}, jobrepo.ErrExecutionNotFound},
		{"illegal edge", exec.ID, status.Update{To: status.Stopped}, jobrepo.ErrInvalidTransition},
		{"self transition", exec.ID, status.Update{To: status.Starting}, jobrepo.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.UpdateExecutionStatus(ctx, tt.id, tt.update)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUpdateExecutionStatus_KeepsCallerValues(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	inst := mustInstance(t, r, "payroll", "k")
	exec := mustExecution(t, r, inst.ID)

	start := fixedNow.Add(-time.Hour)
	if _, err := r.UpdateExecutionStatus(ctx, exec.ID, status.Update{To: status.Started, StartTime: &start}); err != nil {
		t.Fatal(err)
	}
	failed, err := r.UpdateExecutionStatus(ctx, exec.ID, status.Update{
		To:          status.Failed,
		ExitCode:    "E42",
		ExitMessage: "disk full",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !failed.StartTime.Equal(start) {
		t.Errorf("StartTime = %v, want %v", failed.StartTime, start)
	}
	if failed.ExitCode != "E42" || failed.ExitMessage != "disk full" {
		t.Errorf("exit = %q/%q", failed.ExitCode, failed.ExitMessage)
	}
}

func TestConcurrentUpdates_SingleWinner(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	inst := mustInstance(t, r, "payroll", "k")
	exec := mustExecution(t, r, inst.ID)
	if _, err := r.UpdateExecutionStatus(ctx, exec.ID, status.Update{To: status.Started}); err != nil {
		t.Fatal(err)
	}

	var wins, losses atomic.Int32
	var g errgroup.Group
	for _, to := range []status.Status{status.Completed, status.Failed, status.Abandoned, status.Completed} {
		g.Go(func() error {
			_, err := r.UpdateExecutionStatus(ctx, exec.ID, status.Update{To: to})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, jobrepo.ErrInvalidTransition):
				losses.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if wins.Load() != 1 || losses.Load() != 3 {
		t.Fatalf("wins=%d losses=%d, want 1/3", wins.Load(), losses.Load())
	}
}

func TestExecutionQueries(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	inst := mustInstance(t, r, "payroll", "k")

	e1 := mustExecution(t, r, inst.ID)
	if _, err := r.UpdateExecutionStatus(ctx, e1.ID, status.Update{To: status.Failed}); err != nil {
		t.Fatal(err)
	}
	e2 := mustExecution(t, r, inst.ID)
	if _, err := r.UpdateExecutionStatus(ctx, e2.ID, status.Update{To: status.Failed}); err != nil {
		t.Fatal(err)
	}
	e3 := mustExecution(t, r, inst.ID)

	all, err := r.FindExecutionsByInstance(ctx, inst.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != e3.ID || all[2].ID != e1.ID {
		t.Fatalf("FindExecutionsByInstance order wrong: %v", execIDs(all))
	}

	failed, err := r.FindExecutionsByInstanceAndStatus(ctx, inst.ID, status.Failed)
	if err != nil {
		t.Fatal(err)
	}
	if ids := execIDs(failed); len(ids) != 2 || ids[0] != e2.ID || ids[1] != e1.ID {
		t.Fatalf("failed executions = %v", ids)
	}

	if _, err := r.FindExecutionsByInstanceAndStatus(ctx, inst.ID, "BOGUS"); !errors.Is(err, jobrepo.ErrInvalidArgument) {
		t.Errorf("bogus status error = %v", err)
	}

	last, err := r.LastExecution(ctx, inst.ID)
	if err != nil {
		t.Fatal(err)
	}
	if last.ID != e3.ID {
		t.Errorf("LastExecution = %d, want %d", last.ID, e3.ID)
	}

	other := mustInstance(t, r, "payroll", "other")
	if _, err := r.LastExecution(ctx, other.ID); !errors.Is(err, jobrepo.ErrExecutionNotFound) {
		t.Errorf("LastExecution on empty instance error = %v", err)
	}
}

func TestFindRunningExecutions(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	a := mustInstance(t, r, "payroll", "a")
	b := mustInstance(t, r, "payroll", "b")
	c := mustInstance(t, r, "reports", "c")

	running1 := mustExecution(t, r, a.ID)
	done := mustExecution(t, r, a.ID)
	if _, err := r.UpdateExecutionStatus(ctx, done.ID, status.Update{To: status.Failed}); err != nil {
		t.Fatal(err)
	}
	running2 := mustExecution(t, r, b.ID)
	if _, err := r.UpdateExecutionStatus(ctx, running2.ID, status.Update{To: status.Started}); err != nil {
		t.Fatal(err)
	}
	mustExecution(t, r, c.ID)

	got, err := r.FindRunningExecutions(ctx, "payroll")
	if err != nil {
		t.Fatal(err)
	}
	if ids := execIDs(got); len(ids) != 2 || ids[0] != running2.ID || ids[1] != running1.ID {
		t.Fatalf("running = %v, want [%d %d]", ids, running2.ID, running1.ID)
	}

	none, err := r.FindRunningExecutions(ctx, "unknown-job")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("unknown job running = %v", execIDs(none))
	}
}

func TestCreateExecutionIfIdle(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	inst := mustInstance(t, r, "payroll", "k")

	first, err := r.CreateExecutionIfIdle(ctx, inst.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateExecutionIfIdle(ctx, inst.ID, nil); !errors.Is(err, jobrepo.ErrExecutionAlreadyRunning) {
		t.Fatalf("while running error = %v", err)
	}

	if _, err := r.UpdateExecutionStatus(ctx, first.ID, status.Update{To: status.Failed}); err != nil {
		t.Fatal(err)
	}
	retry, err := r.CreateExecutionIfIdle(ctx, inst.ID, nil)
	if err != nil {
		t.Fatalf("after failure: %v", err)
	}

	if _, err := r.UpdateExecutionStatus(ctx, retry.ID, status.Update{To: status.Started}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.UpdateExecutionStatus(ctx, retry.ID, status.Update{To: status.Completed}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateExecutionIfIdle(ctx, inst.ID, nil); !errors.Is(err, jobrepo.ErrInstanceAlreadyComplete) {
		t.Fatalf("after completion error = %v", err)
	}

	if _, err := r.CreateExecutionIfIdle(ctx, 404, nil); !errors.Is(err, jobrepo.ErrReferenceNotFound) {
		t.Fatalf("missing instance error = %v", err)
	}
}

func execIDs(execs []*execution.JobExecution) []int64 {
	ids := make([]int64, len(execs))
	for i, e := range execs {
		ids[i] = e.ID
	}
	return ids
}

// ──────────────────────────────────────────────────
// Steps
// ──────────────────────────────────────────────────

func TestStepExecutions(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	inst := mustInstance(t, r, "payroll", "k")
	exec := mustExecution(t, r, inst.ID)

	var steps []*step.StepExecution
	for _, name := range []string{"extract", "transform", "load"} {
		se, err := r.CreateStepExecution(ctx, exec.ID, name)
		if err != nil {
			t.Fatalf("CreateStepExecution(%q): %v", name, err)
		}
		if se.Status != status.Starting || se.StepName != name {
			t.Errorf("step = %+v", se)
		}
		steps = append(steps, se)
	}

	if _, err := r.UpdateStepStatus(ctx, steps[0].ID, step.Update{Update: status.Update{To: status.Started}}); err != nil {
		t.Fatal(err)
	}
	done, err := r.UpdateStepStatus(ctx, steps[0].ID, step.Update{Update: status.Update{To: status.Completed}})
	if err != nil {
		t.Fatal(err)
	}
	if done.ExitCode != "COMPLETED" || done.EndTime == nil || done.StartTime == nil {
		t.Errorf("completed step = %+v", done)
	}
	if _, err := r.UpdateStepStatus(ctx, steps[0].ID, step.Update{Update: status.Update{To: status.Failed}}); !errors.Is(err, jobrepo.ErrInvalidTransition) {
		t.Errorf("update after completion error = %v", err)
	}

	list, err := r.FindStepExecutionsByJobExecution(ctx, exec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].StepName != "extract" || list[2].StepName != "load" {
		t.Fatalf("steps out of creation order")
	}

	got, err := r.GetStepExecution(ctx, steps[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.StepName != "transform" {
		t.Errorf("GetStepExecution name = %q", got.StepName)
	}
}

func TestStepExecutions_Errors(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.CreateStepExecution(ctx, 7, "extract")
	var ref *jobrepo.ReferenceError
	if !errors.As(err, &ref) || ref.Entity != "job execution" || ref.ID != 7 {
		t.Fatalf("error = %v, want ReferenceError for job execution 7", err)
	}
	if _, err := r.CreateStepExecution(ctx, 7, ""); !errors.Is(err, jobrepo.ErrInvalidArgument) {
		t.Errorf("empty step name error = %v", err)
	}
	if _, err := r.GetStepExecution(ctx, 1); !errors.Is(err, jobrepo.ErrStepExecutionNotFound) {
		t.Errorf("GetStepExecution error = %v", err)
	}
	if _, err := r.UpdateStepStatus(ctx, 1, step.Update{Update: status.Update{To: status.Started}}); !errors.Is(err, jobrepo.ErrStepExecutionNotFound) {
		t.Errorf("UpdateStepStatus error = %v", err)
	}
}

func TestUpdateStepStatus_Counts(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	inst := mustInstance(t, r, "payroll", "k")
	exec := mustExecution(t, r, inst.ID)
	se, err := r.CreateStepExecution(ctx, exec.ID, "load")
	if err != nil {
		t.Fatal(err)
	}

	progress := step.Counts{ReadCount: 120, WriteCount: 118, FilterCount: 2, CommitCount: 12, ReadSkipCount: 1}
	got, err := r.UpdateStepStatus(ctx, se.ID, step.Update{Update: status.Update{To: status.Started}, Counts: &progress})
	if err != nil {
		t.Fatal(err)
	}
	if got.Counts != progress || got.SkipCount() != 1 {
		t.Errorf("counts = %+v", got.Counts)
	}

	// A status change without counters keeps the stored ones.
	if _, err := r.UpdateStepStatus(ctx, se.ID, step.Update{Update: status.Update{To: status.Stopping}}); err != nil {
		t.Fatal(err)
	}
	stored, err := r.GetStepExecution(ctx, se.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Counts != progress {
		t.Errorf("counts after update without counters = %+v", stored.Counts)
	}

	bad := step.Counts{RollbackCount: -1}
	_, err = r.UpdateStepStatus(ctx, se.ID, step.Update{Update: status.Update{To: status.Stopped}, Counts: &bad})
	if !errors.Is(err, jobrepo.ErrInvalidArgument) {
		t.Errorf("negative count error = %v", err)
	}
	stored, err = r.GetStepExecution(ctx, se.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != status.Stopping {
		t.Errorf("status after rejected update = %s", stored.Status)
	}
}

func TestLaunch(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	params := jobkey.Parameters{
		"run.date": jobkey.Identifying("2024-01-31"),
		"chunk":    jobkey.NonIdentifying(int64(500)),
	}

	exec, err := r.Launch(ctx, "payroll", params)
	if err != nil {
		t.Fatal(err)
	}
	if exec.Parameters["chunk"].Value != int64(500) || !exec.Parameters["run.date"].Identifying {
		t.Errorf("Parameters = %+v", exec.Parameters)
	}
	inst, err := r.FindInstance(ctx, "payroll", jobkey.Generate(params))
	if err != nil {
		t.Fatal(err)
	}
	if exec.JobInstanceID != inst.ID {
		t.Errorf("JobInstanceID = %d, want %d", exec.JobInstanceID, inst.ID)
	}

	stored, err := r.GetExecution(ctx, exec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.Parameters) != 2 || stored.Parameters["run.date"].Value != "2024-01-31" {
		t.Errorf("stored Parameters = %+v", stored.Parameters)
	}

	// Same identifying parameters while running.
	if _, err := r.Launch(ctx, "payroll", params); !errors.Is(err, jobrepo.ErrExecutionAlreadyRunning) {
		t.Errorf("second Launch error = %v", err)
	}

	// Changing only a non-identifying parameter still targets the same
	// instance.
	params["chunk"] = jobkey.NonIdentifying(int64(50))
	if _, err := r.UpdateExecutionStatus(ctx, exec.ID, status.Update{To: status.Failed}); err != nil {
		t.Fatal(err)
	}
	retry, err := r.Launch(ctx, "payroll", params)
	if err != nil {
		t.Fatal(err)
	}
	if retry.JobInstanceID != inst.ID || retry.Parameters["chunk"].Value != int64(50) {
		t.Errorf("retry = %+v", retry)
	}
}

// ──────────────────────────────────────────────────
// Extensions and middleware
// ──────────────────────────────────────────────────

type recordingExt struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingExt) Name() string { return "recording" }

func (e *recordingExt) record(s string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, s)
	return nil
}

func (e *recordingExt) OnInstanceCreated(_ context.Context, _ *instance.JobInstance) error {
	return e.record("instance.created")
}

func (e *recordingExt) OnExecutionCreated(_ context.Context, _ *execution.JobExecution) error {
	return e.record("execution.created")
}

func (e *recordingExt) OnExecutionTransitioned(_ context.Context, exec *execution.JobExecution, from status.Status) error {
	return e.record("execution." + string(from) + "->" + string(exec.Status))
}

func (e *recordingExt) OnStepExecutionCreated(_ context.Context, _ *step.StepExecution) error {
	return e.record("step.created")
}

func (e *recordingExt) OnStepTransitioned(_ context.Context, se *step.StepExecution, from status.Status) error {
	return e.record("step." + string(from) + "->" + string(se.Status))
}

func (e *recordingExt) OnShutdown(_ context.Context) error {
	return e.record("shutdown")
}

func TestExtensionsReceiveHooks(t *testing.T) {
	rec := &recordingExt{}
	r := newRepo(t, repository.WithExtension(rec))
	ctx := context.Background()

	inst := mustInstance(t, r, "payroll", "k")
	exec := mustExecution(t, r, inst.ID)
	if _, err := r.UpdateExecutionStatus(ctx, exec.ID, status.Update{To: status.Started}); err != nil {
		t.Fatal(err)
	}
	se, err := r.CreateStepExecution(ctx, exec.ID, "extract")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.UpdateStepStatus(ctx, se.ID, step.Update{Update: status.Update{To: status.Failed}}); err != nil {
		t.Fatal(err)
	}
	// Rejected updates do not fire hooks.
	_, _ = r.UpdateStepStatus(ctx, se.ID, step.Update{Update: status.Update{To: status.Started}})

	if err := r.Close(ctx); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"instance.created",
		"execution.created",
		"execution.STARTING->STARTED",
		"step.created",
		"step.STARTING->FAILED",
		"shutdown",
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, rec.events[i], want[i])
		}
	}
}

func TestMiddlewareSeesOperations(t *testing.T) {
	var mu sync.Mutex
	var seen []mw.Operation
	spy := func(ctx context.Context, op mw.Operation, next mw.Handler) error {
		mu.Lock()
		seen = append(seen, op)
		mu.Unlock()
		return next(ctx)
	}
	r := newRepo(t, repository.WithMiddleware(spy))

	inst := mustInstance(t, r, "payroll", "k")
	if _, err := r.GetInstance(context.Background(), inst.ID); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	// Migrate, CreateInstance, GetInstance.
	if len(seen) != 3 {
		t.Fatalf("seen %d operations, want 3", len(seen))
	}
	if seen[1].Name != "CreateInstance" || seen[1].JobName != "payroll" {
		t.Errorf("create op = %+v", seen[1])
	}
	if seen[2].Name != "GetInstance" || seen[2].ID != inst.ID || seen[2].Entity != "job instance" {
		t.Errorf("get op = %+v", seen[2])
	}
}

func TestOperationTimeout(t *testing.T) {
	block := func(ctx context.Context, _ mw.Operation, _ mw.Handler) error {
		<-ctx.Done()
		return ctx.Err()
	}
	r, err := repository.New(memory.New(),
		repository.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		repository.WithTimeout(20*time.Millisecond),
		repository.WithMiddleware(block),
	)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	_, err = r.JobNames(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("timeout not applied")
	}
}

func TestWithConfig(t *testing.T) {
	cfg := jobrepo.DefaultConfig()
	cfg.OperationTimeout = 20 * time.Millisecond
	block := func(ctx context.Context, _ mw.Operation, _ mw.Handler) error {
		<-ctx.Done()
		return ctx.Err()
	}
	r, err := repository.New(memory.New(), repository.WithConfig(cfg), repository.WithMiddleware(block))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.JobNames(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want DeadlineExceeded", err)
	}
}

func TestSequencesAndIndexes(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	inst := mustInstance(t, r, "payroll", "k")
	mustExecution(t, r, inst.ID)
	mustExecution(t, r, inst.ID)

	seqs, err := r.Sequences(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if seqs[sequence.JobInstance] != 1 || seqs[sequence.JobExecution] != 2 || seqs[sequence.StepExecution] != 0 {
		t.Errorf("Sequences = %v", seqs)
	}

	idx, err := r.Indexes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(idx) == 0 {
		t.Fatal("no indexes after Migrate")
	}
	if err := r.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
