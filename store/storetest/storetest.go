// Package storetest is the conformance suite every store.Store backend
// must pass. Backend packages call Run from their own tests with a factory
// that returns an empty, unmigrated store isolated from every other call.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/jobkey"
	"github.com/xraph/jobrepo/schema"
	"github.com/xraph/jobrepo/sequence"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
	"github.com/xraph/jobrepo/store"
)

// Factory returns a fresh, unmigrated store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run executes the full suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"SequenceNotInitialized", testSequenceNotInitialized},
		{"SequenceIncreasing", testSequenceIncreasing},
		{"SequenceConcurrent", testSequenceConcurrent},
		{"MigrateIdempotent", testMigrateIdempotent},
		{"IndexesDeclaredOnce", testIndexesDeclaredOnce},
		{"InstanceCreateAndFind", testInstanceCreateAndFind},
		{"InstanceDuplicate", testInstanceDuplicate},
		{"InstanceConcurrentCreate", testInstanceConcurrentCreate},
		{"InstanceListDescending", testInstanceListDescending},
		{"InstanceNamesAndCount", testInstanceNamesAndCount},
		{"ExecutionLifecycle", testExecutionLifecycle},
		{"ExecutionStaleTransition", testExecutionStaleTransition},
		{"ExecutionNotFound", testExecutionNotFound},
		{"ExecutionListByStatus", testExecutionListByStatus},
		{"ExecutionListRunning", testExecutionListRunning},
		{"StepLifecycle", testStepLifecycle},
		{"StepListOrder", testStepListOrder},
		{"StepCounts", testStepCounts},
		{"ExecutionParameters", testExecutionParameters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			if tt.name != "SequenceNotInitialized" {
				if err := s.Migrate(context.Background()); err != nil {
					t.Fatalf("Migrate: %v", err)
				}
			}
			tt.fn(t, s)
		})
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func next(t *testing.T, s store.Store, kind sequence.Kind) int64 {
	t.Helper()
	v, err := s.NextValue(context.Background(), kind)
	if err != nil {
		t.Fatalf("NextValue(%s): %v", kind, err)
	}
	return v
}

func createInstance(t *testing.T, s store.Store, jobName, jobKey string) *instance.JobInstance {
	t.Helper()
	inst := &instance.JobInstance{
		ID:        next(t, s, sequence.JobInstance),
		JobName:   jobName,
		JobKey:    jobKey,
		CreatedAt: now(),
	}
	if err := s.CreateInstance(context.Background(), inst); err != nil {
		t.Fatalf("CreateInstance(%s, %s): %v", jobName, jobKey, err)
	}
	return inst
}

func createExecution(t *testing.T, s store.Store, instanceID int64) *execution.JobExecution {
	t.Helper()
	ts := now()
	exec := &execution.JobExecution{
		Entity:        jobrepo.Entity{CreatedAt: ts, UpdatedAt: ts},
		ID:            next(t, s, sequence.JobExecution),
		JobInstanceID: instanceID,
		Status:        status.Starting,
	}
	if err := s.CreateExecution(context.Background(), exec); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}
	return exec
}

func transitionExecution(t *testing.T, s store.Store, id int64, from, to status.Status) *execution.JobExecution {
	t.Helper()
	tr := status.Update{To: to}.Resolve(from, false, now())
	exec, err := s.TransitionExecution(context.Background(), id, tr)
	if err != nil {
		t.Fatalf("TransitionExecution %s -> %s: %v", from, to, err)
	}
	return exec
}

func createStep(t *testing.T, s store.Store, jobExecutionID int64, name string) *step.StepExecution {
	t.Helper()
	ts := now()
	se := &step.StepExecution{
		Entity:         jobrepo.Entity{CreatedAt: ts, UpdatedAt: ts},
		ID:             next(t, s, sequence.StepExecution),
		JobExecutionID: jobExecutionID,
		StepName:       name,
		Status:         status.Starting,
	}
	if err := s.CreateStepExecution(context.Background(), se); err != nil {
		t.Fatalf("CreateStepExecution: %v", err)
	}
	return se
}

func executionIDs(execs []*execution.JobExecution) []int64 {
	ids := make([]int64, len(execs))
	for i, e := range execs {
		ids[i] = e.ID
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ──────────────────────────────────────────────────
// Sequences
// ──────────────────────────────────────────────────

func testSequenceNotInitialized(t *testing.T, s store.Store) {
	_, err := s.NextValue(context.Background(), sequence.JobInstance)
	if !errors.Is(err, jobrepo.ErrStoreNotInitialized) {
		t.Fatalf("expected ErrStoreNotInitialized, got %v", err)
	}
	var seqErr *jobrepo.SequenceError
	if !errors.As(err, &seqErr) {
		t.Fatalf("expected *SequenceError, got %T", err)
	}
	if seqErr.Kind != string(sequence.JobInstance) {
		t.Errorf("Kind = %q, want %q", seqErr.Kind, sequence.JobInstance)
	}
}

func testSequenceIncreasing(t *testing.T, s store.Store) {
	for _, kind := range sequence.Kinds() {
		var last int64
		for i := 0; i < 5; i++ {
			v := next(t, s, kind)
			if v <= last {
				t.Fatalf("%s: value %d not greater than %d", kind, v, last)
			}
			last = v
		}
	}

	// Kinds are independent counters.
	seqs, err := s.Sequences(context.Background())
	if err != nil {
		t.Fatalf("Sequences: %v", err)
	}
	for _, kind := range sequence.Kinds() {
		if seqs[kind] != 5 {
			t.Errorf("Sequences[%s] = %d, want 5", kind, seqs[kind])
		}
	}
}

func testSequenceConcurrent(t *testing.T, s store.Store) {
	const workers, perWorker = 8, 25

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
	)

	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			var last int64
			for i := 0; i < perWorker; i++ {
				v, err := s.NextValue(ctx, sequence.JobExecution)
				if err != nil {
					return err
				}
				if v <= last {
					return fmt.Errorf("value %d not greater than previous %d", v, last)
				}
				last = v

				mu.Lock()
				if _, dup := seen[v]; dup {
					mu.Unlock()
					return fmt.Errorf("value %d issued twice", v)
				}
				seen[v] = struct{}{}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if len(seen) != workers*perWorker {
		t.Errorf("got %d distinct values, want %d", len(seen), workers*perWorker)
	}
}

// ──────────────────────────────────────────────────
// Setup
// ──────────────────────────────────────────────────

func testMigrateIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()

	next(t, s, sequence.JobInstance)
	next(t, s, sequence.JobInstance)
	next(t, s, sequence.StepExecution)

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	seqs, err := s.Sequences(ctx)
	if err != nil {
		t.Fatalf("Sequences: %v", err)
	}
	want := map[sequence.Kind]int64{
		sequence.JobInstance:   2,
		sequence.JobExecution:  0,
		sequence.StepExecution: 1,
	}
	if len(seqs) != len(want) {
		t.Fatalf("got %d sequence records, want %d: %v", len(seqs), len(want), seqs)
	}
	for k, v := range want {
		if seqs[k] != v {
			t.Errorf("Sequences[%s] = %d, want %d", k, seqs[k], v)
		}
	}

	if v := next(t, s, sequence.JobInstance); v != 3 {
		t.Errorf("NextValue after re-migrate = %d, want 3", v)
	}
}

func testIndexesDeclaredOnce(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	got, err := s.ListIndexes(ctx)
	if err != nil {
		t.Fatalf("ListIndexes: %v", err)
	}
	for _, idx := range schema.Indexes() {
		n := 0
		for _, name := range got[idx.Collection] {
			if name == idx.Name {
				n++
			}
		}
		if n != 1 {
			t.Errorf("%s.%s present %d times, want 1 (have %v)", idx.Collection, idx.Name, n, got[idx.Collection])
		}
	}
}

// ──────────────────────────────────────────────────
// Instances
// ──────────────────────────────────────────────────

func testInstanceCreateAndFind(t *testing.T, s store.Store) {
	ctx := context.Background()
	created := createInstance(t, s, "payroll", "keyA")

	got, err := s.GetInstance(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if got.JobName != "payroll" || got.JobKey != "keyA" {
		t.Errorf("GetInstance = %+v", got)
	}

	found, err := s.FindInstance(ctx, "payroll", "keyA")
	if err != nil {
		t.Fatalf("FindInstance: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("FindInstance ID = %d, want %d", found.ID, created.ID)
	}

	if _, err := s.FindInstance(ctx, "payroll", "keyB"); !errors.Is(err, jobrepo.ErrInstanceNotFound) {
		t.Errorf("FindInstance(missing) = %v, want ErrInstanceNotFound", err)
	}
	if _, err := s.GetInstance(ctx, created.ID+1000); !errors.Is(err, jobrepo.ErrInstanceNotFound) {
		t.Errorf("GetInstance(missing) = %v, want ErrInstanceNotFound", err)
	}
}

func testInstanceDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := createInstance(t, s, "payroll", "keyA")

	dup := &instance.JobInstance{
		ID:        next(t, s, sequence.JobInstance),
		JobName:   "payroll",
		JobKey:    "keyA",
		CreatedAt: now(),
	}
	err := s.CreateInstance(ctx, dup)
	if !errors.Is(err, jobrepo.ErrDuplicateInstance) {
		t.Fatalf("expected ErrDuplicateInstance, got %v", err)
	}
	var dupErr *jobrepo.DuplicateInstanceError
	if !errors.As(err, &dupErr) || dupErr.JobName != "payroll" || dupErr.JobKey != "keyA" {
		t.Errorf("expected DuplicateInstanceError for payroll/keyA, got %v", err)
	}

	got, err := s.FindInstance(ctx, "payroll", "keyA")
	if err != nil {
		t.Fatalf("FindInstance: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("stored ID = %d, want original %d", got.ID, first.ID)
	}
	if n, _ := s.CountInstances(ctx, "payroll"); n != 1 {
		t.Errorf("CountInstances = %d, want 1", n)
	}

	// Same name with a different key is a distinct instance.
	createInstance(t, s, "payroll", "keyB")
}

func testInstanceConcurrentCreate(t *testing.T, s store.Store) {
	ctx := context.Background()

	const racers = 2
	ids := make([]int64, racers)
	errs := make([]error, racers)
	for i := range ids {
		ids[i] = next(t, s, sequence.JobInstance)
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = s.CreateInstance(ctx, &instance.JobInstance{
				ID: ids[i], JobName: "payroll", JobKey: "keyA", CreatedAt: now(),
			})
		}(i)
	}
	close(start)
	wg.Wait()

	winner := int64(0)
	for i, err := range errs {
		switch {
		case err == nil:
			if winner != 0 {
				t.Fatal("both racers succeeded")
			}
			winner = ids[i]
		case errors.Is(err, jobrepo.ErrDuplicateInstance):
		default:
			t.Fatalf("racer %d: unexpected error %v", i, err)
		}
	}
	if winner == 0 {
		t.Fatal("no racer succeeded")
	}

	got, err := s.FindInstance(ctx, "payroll", "keyA")
	if err != nil {
		t.Fatalf("FindInstance: %v", err)
	}
	if got.ID != winner {
		t.Errorf("re-fetch ID = %d, want winner %d", got.ID, winner)
	}
}

func testInstanceListDescending(t *testing.T, s store.Store) {
	ctx := context.Background()
	var want []int64
	for i := 0; i < 3; i++ {
		inst := createInstance(t, s, "payroll", fmt.Sprintf("key%d", i))
		want = append([]int64{inst.ID}, want...)
	}
	createInstance(t, s, "billing", "key0")

	got, err := s.ListInstances(ctx, "payroll", instance.ListOpts{})
	if err != nil {
		t.Fatalf("ListInstances: %v", err)
	}
	gotIDs := make([]int64, len(got))
	for i, inst := range got {
		gotIDs[i] = inst.ID
	}
	if !equalIDs(gotIDs, want) {
		t.Errorf("ListInstances IDs = %v, want %v", gotIDs, want)
	}

	page, err := s.ListInstances(ctx, "payroll", instance.ListOpts{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("ListInstances(page): %v", err)
	}
	if len(page) != 1 || page[0].ID != want[1] {
		t.Errorf("page = %v, want [%d]", page, want[1])
	}

	empty, err := s.ListInstances(ctx, "payroll", instance.ListOpts{Offset: 10})
	if err != nil {
		t.Fatalf("ListInstances(past end): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("past-end page has %d entries", len(empty))
	}
}

func testInstanceNamesAndCount(t *testing.T, s store.Store) {
	ctx := context.Background()
	createInstance(t, s, "payroll", "a")
	createInstance(t, s, "payroll", "b")
	createInstance(t, s, "billing", "a")

	names, err := s.JobNames(ctx)
	if err != nil {
		t.Fatalf("JobNames: %v", err)
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "billing" || names[1] != "payroll" {
		t.Errorf("JobNames = %v", names)
	}

	tests := []struct {
		name string
		want int64
	}{
		{"payroll", 2},
		{"billing", 1},
		{"missing", 0},
	}
	for _, tt := range tests {
		n, err := s.CountInstances(ctx, tt.name)
		if err != nil {
			t.Fatalf("CountInstances(%s): %v", tt.name, err)
		}
		if n != tt.want {
			t.Errorf("CountInstances(%s) = %d, want %d", tt.name, n, tt.want)
		}
	}
}

// ──────────────────────────────────────────────────
// Executions
// ──────────────────────────────────────────────────

func testExecutionLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	inst := createInstance(t, s, "payroll", "keyA")
	exec := createExecution(t, s, inst.ID)

	got, err := s.GetExecution(ctx, exec.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if got.Status != status.Starting || got.JobInstanceID != inst.ID {
		t.Errorf("GetExecution = %+v", got)
	}
	if got.StartTime != nil || got.EndTime != nil {
		t.Errorf("new execution has times start=%v end=%v", got.StartTime, got.EndTime)
	}

	started := transitionExecution(t, s, exec.ID, status.Starting, status.Started)
	if started.Status != status.Started || started.StartTime == nil {
		t.Fatalf("after STARTED: %+v", started)
	}

	tr := status.Update{To: status.Completed, ExitMessage: "done"}.Resolve(status.Started, true, now())
	completed, err := s.TransitionExecution(ctx, exec.ID, tr)
	if err != nil {
		t.Fatalf("STARTED -> COMPLETED: %v", err)
	}
	if completed.EndTime == nil || completed.StartTime == nil {
		t.Errorf("completed times start=%v end=%v", completed.StartTime, completed.EndTime)
	}
	if completed.ExitCode != "COMPLETED" || completed.ExitMessage != "done" {
		t.Errorf("exit = %q/%q", completed.ExitCode, completed.ExitMessage)
	}

	reread, err := s.GetExecution(ctx, exec.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if reread.Status != status.Completed || reread.EndTime == nil {
		t.Errorf("persisted = %+v", reread)
	}
	if reread.StartTime == nil || reread.StartTime.Sub(*started.StartTime).Abs() > time.Millisecond {
		t.Errorf("start time changed: %v -> %v", started.StartTime, reread.StartTime)
	}

	// Terminal records are immutable.
	tr = status.Update{To: status.Started}.Resolve(status.Completed, true, now())
	_, err = s.TransitionExecution(ctx, exec.ID, tr)
	if !errors.Is(err, jobrepo.ErrInvalidTransition) {
		t.Fatalf("COMPLETED -> STARTED: expected ErrInvalidTransition, got %v", err)
	}
}

func testExecutionStaleTransition(t *testing.T, s store.Store) {
	ctx := context.Background()
	inst := createInstance(t, s, "payroll", "keyA")
	exec := createExecution(t, s, inst.ID)
	transitionExecution(t, s, exec.ID, status.Starting, status.Started)

	// A replay of the first update no longer matches the stored status.
	tr := status.Update{To: status.Started}.Resolve(status.Starting, false, now())
	_, err := s.TransitionExecution(ctx, exec.ID, tr)
	var trErr *jobrepo.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected *TransitionError, got %v", err)
	}
	if trErr.From != status.Started || trErr.To != status.Started || trErr.ID != exec.ID {
		t.Errorf("TransitionError = %+v", trErr)
	}

	got, err := s.GetExecution(ctx, exec.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if got.Status != status.Started {
		t.Errorf("status = %s, want STARTED", got.Status)
	}
}

func testExecutionParameters(t *testing.T, s store.Store) {
	ctx := context.Background()
	inst := createInstance(t, s, "payroll", "keyA")

	day := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	params := jobkey.Parameters{
		"run.date":  jobkey.Identifying(day),
		"region":    jobkey.Identifying("eu-west"),
		"batch":     jobkey.Identifying(int64(42)),
		"threshold": jobkey.NonIdentifying(0.75),
		"dry.run":   jobkey.NonIdentifying(false),
	}
	ts := now()
	exec := &execution.JobExecution{
		Entity:        jobrepo.Entity{CreatedAt: ts, UpdatedAt: ts},
		ID:            next(t, s, sequence.JobExecution),
		JobInstanceID: inst.ID,
		Status:        status.Starting,
		Parameters:    params,
	}
	if err := s.CreateExecution(ctx, exec); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}
	bare := createExecution(t, s, inst.ID)

	check := func(label string, got *execution.JobExecution) {
		t.Helper()
		if len(got.Parameters) != len(params) {
			t.Fatalf("%s: Parameters = %+v", label, got.Parameters)
		}
		for name, want := range params {
			p := got.Parameters[name]
			if p.Identifying != want.Identifying {
				t.Errorf("%s: %s identifying = %t", label, name, p.Identifying)
			}
		}
		if v, ok := got.Parameters["run.date"].Value.(time.Time); !ok || !v.Equal(day) {
			t.Errorf("%s: run.date = %#v", label, got.Parameters["run.date"].Value)
		}
		if got.Parameters["batch"].Value != int64(42) || got.Parameters["threshold"].Value != 0.75 ||
			got.Parameters["dry.run"].Value != false || got.Parameters["region"].Value != "eu-west" {
			t.Errorf("%s: Parameters = %+v", label, got.Parameters)
		}
		if jobkey.Generate(got.Parameters) != jobkey.Generate(params) {
			t.Errorf("%s: stored parameters generate a different job key", label)
		}
	}

	got, err := s.GetExecution(ctx, exec.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	check("get", got)

	tr := status.Update{To: status.Started}.Resolve(status.Starting, false, now())
	moved, err := s.TransitionExecution(ctx, exec.ID, tr)
	if err != nil {
		t.Fatalf("TransitionExecution: %v", err)
	}
	check("transition", moved)

	list, err := s.ListExecutions(ctx, inst.ID)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(list) != 2 || list[1].ID != exec.ID {
		t.Fatalf("ListExecutions = %v", executionIDs(list))
	}
	check("list", list[1])
	if len(list[0].Parameters) != 0 || list[0].ID != bare.ID {
		t.Errorf("execution without parameters = %+v", list[0])
	}
}

func testExecutionNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()

	if _, err := s.GetExecution(ctx, 4242); !errors.Is(err, jobrepo.ErrExecutionNotFound) {
		t.Errorf("GetExecution = %v, want ErrExecutionNotFound", err)
	}
	tr := status.Update{To: status.Started}.Resolve(status.Starting, false, now())
	if _, err := s.TransitionExecution(ctx, 4242, tr); !errors.Is(err, jobrepo.ErrExecutionNotFound) {
		t.Errorf("TransitionExecution = %v, want ErrExecutionNotFound", err)
	}
	if _, err := s.GetStepExecution(ctx, 4242); !errors.Is(err, jobrepo.ErrStepExecutionNotFound) {
		t.Errorf("GetStepExecution = %v, want ErrStepExecutionNotFound", err)
	}
	if _, err := s.TransitionStepExecution(ctx, 4242, step.Transition{Transition: tr}); !errors.Is(err, jobrepo.ErrStepExecutionNotFound) {
		t.Errorf("TransitionStepExecution = %v, want ErrStepExecutionNotFound", err)
	}
}

func testExecutionListByStatus(t *testing.T, s store.Store) {
	ctx := context.Background()
	inst := createInstance(t, s, "payroll", "keyA")
	other := createInstance(t, s, "payroll", "keyB")

	e1 := createExecution(t, s, inst.ID)
	transitionExecution(t, s, e1.ID, status.Starting, status.Failed)
	e2 := createExecution(t, s, inst.ID)
	transitionExecution(t, s, e2.ID, status.Starting, status.Started)
	e3 := createExecution(t, s, inst.ID)
	transitionExecution(t, s, e3.ID, status.Starting, status.Started)
	o1 := createExecution(t, s, other.ID)
	transitionExecution(t, s, o1.ID, status.Starting, status.Started)

	all, err := s.ListExecutions(ctx, inst.ID)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if want := []int64{e3.ID, e2.ID, e1.ID}; !equalIDs(executionIDs(all), want) {
		t.Errorf("ListExecutions = %v, want %v", executionIDs(all), want)
	}

	started, err := s.ListExecutionsByStatus(ctx, inst.ID, status.Started)
	if err != nil {
		t.Fatalf("ListExecutionsByStatus: %v", err)
	}
	if want := []int64{e3.ID, e2.ID}; !equalIDs(executionIDs(started), want) {
		t.Errorf("ListExecutionsByStatus(STARTED) = %v, want %v", executionIDs(started), want)
	}
	for _, e := range started {
		if e.Status != status.Started {
			t.Errorf("execution %d has status %s", e.ID, e.Status)
		}
	}

	none, err := s.ListExecutionsByStatus(ctx, inst.ID, status.Completed)
	if err != nil {
		t.Fatalf("ListExecutionsByStatus: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ListExecutionsByStatus(COMPLETED) = %v", executionIDs(none))
	}
}

func testExecutionListRunning(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := createInstance(t, s, "payroll", "keyA")
	b := createInstance(t, s, "payroll", "keyB")
	c := createInstance(t, s, "billing", "keyA")

	ea := createExecution(t, s, a.ID) // STARTING
	eb := createExecution(t, s, b.ID)
	transitionExecution(t, s, eb.ID, status.Starting, status.Stopping)
	done := createExecution(t, s, b.ID)
	transitionExecution(t, s, done.ID, status.Starting, status.Abandoned)
	createExecution(t, s, c.ID)

	running, err := s.ListRunningExecutions(ctx, []int64{a.ID, b.ID})
	if err != nil {
		t.Fatalf("ListRunningExecutions: %v", err)
	}
	if want := []int64{eb.ID, ea.ID}; !equalIDs(executionIDs(running), want) {
		t.Errorf("ListRunningExecutions = %v, want %v", executionIDs(running), want)
	}

	empty, err := s.ListRunningExecutions(ctx, nil)
	if err != nil {
		t.Fatalf("ListRunningExecutions(nil): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListRunningExecutions(nil) = %v", executionIDs(empty))
	}
}

// ──────────────────────────────────────────────────
// Steps
// ──────────────────────────────────────────────────

func testStepLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	inst := createInstance(t, s, "payroll", "keyA")
	exec := createExecution(t, s, inst.ID)
	se := createStep(t, s, exec.ID, "extract")

	got, err := s.GetStepExecution(ctx, se.ID)
	if err != nil {
		t.Fatalf("GetStepExecution: %v", err)
	}
	if got.StepName != "extract" || got.JobExecutionID != exec.ID || got.Status != status.Starting {
		t.Errorf("GetStepExecution = %+v", got)
	}

	tr := step.Update{Update: status.Update{To: status.Started}}.Resolve(status.Starting, false, now())
	if _, err := s.TransitionStepExecution(ctx, se.ID, tr); err != nil {
		t.Fatalf("STARTING -> STARTED: %v", err)
	}
	tr = step.Update{Update: status.Update{To: status.Failed, ExitMessage: "boom"}}.Resolve(status.Started, true, now())
	failed, err := s.TransitionStepExecution(ctx, se.ID, tr)
	if err != nil {
		t.Fatalf("STARTED -> FAILED: %v", err)
	}
	if failed.EndTime == nil || failed.ExitMessage != "boom" {
		t.Errorf("failed step = %+v", failed)
	}

	tr = step.Update{Update: status.Update{To: status.Abandoned}}.Resolve(status.Failed, true, now())
	_, err = s.TransitionStepExecution(ctx, se.ID, tr)
	var trErr *jobrepo.TransitionError
	if !errors.As(err, &trErr) || trErr.From != status.Failed {
		t.Fatalf("FAILED -> ABANDONED: expected TransitionError from FAILED, got %v", err)
	}
}

func testStepCounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	inst := createInstance(t, s, "payroll", "keyA")
	exec := createExecution(t, s, inst.ID)
	se := createStep(t, s, exec.ID, "load")

	got, err := s.GetStepExecution(ctx, se.ID)
	if err != nil {
		t.Fatalf("GetStepExecution: %v", err)
	}
	if got.Counts != (step.Counts{}) {
		t.Errorf("new step counts = %+v, want zero", got.Counts)
	}

	progress := step.Counts{
		ReadCount: 1000, WriteCount: 990, FilterCount: 7, CommitCount: 10, RollbackCount: 1,
		ReadSkipCount: 1, ProcessSkipCount: 2, WriteSkipCount: 3,
	}
	tr := step.Update{Update: status.Update{To: status.Started}, Counts: &progress}.Resolve(status.Starting, false, now())
	started, err := s.TransitionStepExecution(ctx, se.ID, tr)
	if err != nil {
		t.Fatalf("STARTING -> STARTED: %v", err)
	}
	if started.Counts != progress {
		t.Errorf("counts after transition = %+v, want %+v", started.Counts, progress)
	}

	// No counters in the update leaves the stored ones.
	tr = step.Update{Update: status.Update{To: status.Stopping}}.Resolve(status.Started, true, now())
	stopping, err := s.TransitionStepExecution(ctx, se.ID, tr)
	if err != nil {
		t.Fatalf("STARTED -> STOPPING: %v", err)
	}
	if stopping.Counts != progress {
		t.Errorf("counts after transition without counts = %+v", stopping.Counts)
	}

	final := progress
	final.ReadCount, final.WriteCount, final.CommitCount = 1200, 1185, 12
	tr = step.Update{Update: status.Update{To: status.Stopped}, Counts: &final}.Resolve(status.Stopping, true, now())
	if _, err := s.TransitionStepExecution(ctx, se.ID, tr); err != nil {
		t.Fatalf("STOPPING -> STOPPED: %v", err)
	}

	// A rejected transition writes no counters.
	bogus := step.Counts{ReadCount: 1}
	tr = step.Update{Update: status.Update{To: status.Completed}, Counts: &bogus}.Resolve(status.Started, true, now())
	if _, err := s.TransitionStepExecution(ctx, se.ID, tr); !errors.Is(err, jobrepo.ErrInvalidTransition) {
		t.Fatalf("stale transition = %v, want ErrInvalidTransition", err)
	}

	list, err := s.ListStepExecutions(ctx, exec.ID)
	if err != nil {
		t.Fatalf("ListStepExecutions: %v", err)
	}
	if len(list) != 1 || list[0].Counts != final || list[0].SkipCount() != 6 {
		t.Errorf("listed step = %+v", list)
	}
}

func testStepListOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	inst := createInstance(t, s, "payroll", "keyA")
	exec := createExecution(t, s, inst.ID)
	other := createExecution(t, s, inst.ID)

	var want []int64
	for _, name := range []string{"extract", "transform", "load"} {
		want = append(want, createStep(t, s, exec.ID, name).ID)
	}
	createStep(t, s, other.ID, "extract")

	got, err := s.ListStepExecutions(ctx, exec.ID)
	if err != nil {
		t.Fatalf("ListStepExecutions: %v", err)
	}
	gotIDs := make([]int64, len(got))
	for i, se := range got {
		gotIDs[i] = se.ID
	}
	if !equalIDs(gotIDs, want) {
		t.Errorf("ListStepExecutions = %v, want %v", gotIDs, want)
	}
	if len(got) == 3 && (got[0].StepName != "extract" || got[2].StepName != "load") {
		t.Errorf("step order = %s, %s, %s", got[0].StepName, got[1].StepName, got[2].StepName)
	}
}
