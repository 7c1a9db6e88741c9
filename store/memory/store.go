package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/schema"
	"github.com/xraph/jobrepo/sequence"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each contract.
var (
	_ sequence.Store   = (*Store)(nil)
	_ instance.Store   = (*Store)(nil)
	_ execution.Store  = (*Store)(nil)
	_ step.Store       = (*Store)(nil)
	_ schema.Inspector = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	sequences  map[sequence.Kind]int64
	instances  map[int64]*instance.JobInstance
	keys       map[instanceKey]int64
	executions map[int64]*execution.JobExecution
	steps      map[int64]*step.StepExecution
	indexes    map[schema.Collection]map[string]string // name -> key spec
}

type instanceKey struct {
	jobName string
	jobKey  string
}

// New returns a new empty Store. Call Migrate before allocating IDs.
func New() *Store {
	return &Store{
		sequences:  make(map[sequence.Kind]int64),
		instances:  make(map[int64]*instance.JobInstance),
		keys:       make(map[instanceKey]int64),
		executions: make(map[int64]*execution.JobExecution),
		steps:      make(map[int64]*step.StepExecution),
		indexes:    make(map[schema.Collection]map[string]string),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate seeds missing counters and records the declared indexes.
func (m *Store) Migrate(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range sequence.Kinds() {
		if _, ok := m.sequences[k]; !ok {
			m.sequences[k] = 0
		}
	}

	for _, idx := range schema.Indexes() {
		existing := m.indexes[idx.Collection]
		if existing == nil {
			existing = make(map[string]string)
			m.indexes[idx.Collection] = existing
		}
		if hasKey(existing, idx.Key()) {
			continue
		}
		existing[idx.Name] = idx.Key()
	}
	return nil
}

func hasKey(existing map[string]string, key string) bool {
	for _, k := range existing {
		if k == key {
			return true
		}
	}
	return false
}

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ListIndexes returns the recorded index names per collection.
func (m *Store) ListIndexes(_ context.Context) (map[schema.Collection][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[schema.Collection][]string, len(m.indexes))
	for c, idxs := range m.indexes {
		names := make([]string, 0, len(idxs))
		for name := range idxs {
			names = append(names, name)
		}
		sort.Strings(names)
		out[c] = names
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Sequence Store
// ──────────────────────────────────────────────────

// NextValue increments and returns the counter for kind.
func (m *Store) NextValue(_ context.Context, kind sequence.Kind) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.sequences[kind]
	if !ok {
		return 0, &jobrepo.SequenceError{Kind: string(kind)}
	}
	v++
	m.sequences[kind] = v
	return v, nil
}

// Sequences returns a snapshot of every counter.
func (m *Store) Sequences(_ context.Context) (map[sequence.Kind]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[sequence.Kind]int64, len(m.sequences))
	for k, v := range m.sequences {
		out[k] = v
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Instance Store
// ──────────────────────────────────────────────────

// CreateInstance persists a new job instance.
func (m *Store) CreateInstance(_ context.Context, inst *instance.JobInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := instanceKey{jobName: inst.JobName, jobKey: inst.JobKey}
	if _, exists := m.keys[key]; exists {
		return &jobrepo.DuplicateInstanceError{JobName: inst.JobName, JobKey: inst.JobKey}
	}
	cp := *inst
	m.instances[inst.ID] = &cp
	m.keys[key] = inst.ID
	return nil
}

// GetInstance retrieves a job instance by ID.
func (m *Store) GetInstance(_ context.Context, instanceID int64) (*instance.JobInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.instances[instanceID]
	if !ok {
		return nil, jobrepo.ErrInstanceNotFound
	}
	cp := *inst
	return &cp, nil
}

// FindInstance retrieves the instance for a job name and key.
func (m *Store) FindInstance(_ context.Context, jobName, jobKey string) (*instance.JobInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.keys[instanceKey{jobName: jobName, jobKey: jobKey}]
	if !ok {
		return nil, jobrepo.ErrInstanceNotFound
	}
	cp := *m.instances[id]
	return &cp, nil
}

// ListInstances returns instances of jobName, newest first.
func (m *Store) ListInstances(_ context.Context, jobName string, opts instance.ListOpts) ([]*instance.JobInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*instance.JobInstance, 0)
	for _, inst := range m.instances {
		if inst.JobName != jobName {
			continue
		}
		cp := *inst
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].ID > result[k].ID
	})

	// Apply offset / limit.
	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// JobNames returns the distinct job names, sorted.
func (m *Store) JobNames(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, inst := range m.instances {
		seen[inst.JobName] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CountInstances returns the number of instances of jobName.
func (m *Store) CountInstances(_ context.Context, jobName string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, inst := range m.instances {
		if inst.JobName == jobName {
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Execution Store
// ──────────────────────────────────────────────────

// CreateExecution persists a new job execution.
func (m *Store) CreateExecution(_ context.Context, exec *execution.JobExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executions[exec.ID] = copyExecution(exec)
	return nil
}

// GetExecution retrieves a job execution by ID.
func (m *Store) GetExecution(_ context.Context, executionID int64) (*execution.JobExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exec, ok := m.executions[executionID]
	if !ok {
		return nil, jobrepo.ErrExecutionNotFound
	}
	return copyExecution(exec), nil
}

// TransitionExecution applies t if the stored status equals t.From.
func (m *Store) TransitionExecution(_ context.Context, executionID int64, t status.Transition) (*execution.JobExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exec, ok := m.executions[executionID]
	if !ok {
		return nil, jobrepo.ErrExecutionNotFound
	}
	if exec.Status != t.From || !status.CanTransition(exec.Status, t.To) {
		return nil, &jobrepo.TransitionError{Entity: "job execution", ID: executionID, From: exec.Status, To: t.To}
	}
	exec.Apply(t)
	return copyExecution(exec), nil
}

// ListExecutions returns the executions of an instance, newest first.
func (m *Store) ListExecutions(_ context.Context, instanceID int64) ([]*execution.JobExecution, error) {
	return m.filterExecutions(func(e *execution.JobExecution) bool {
		return e.JobInstanceID == instanceID
	}), nil
}

// ListExecutionsByStatus returns the executions of an instance in st.
func (m *Store) ListExecutionsByStatus(_ context.Context, instanceID int64, st status.Status) ([]*execution.JobExecution, error) {
	return m.filterExecutions(func(e *execution.JobExecution) bool {
		return e.JobInstanceID == instanceID && e.Status == st
	}), nil
}

// ListRunningExecutions returns running executions of the given instances.
func (m *Store) ListRunningExecutions(_ context.Context, instanceIDs []int64) ([]*execution.JobExecution, error) {
	ids := make(map[int64]struct{}, len(instanceIDs))
	for _, id := range instanceIDs {
		ids[id] = struct{}{}
	}
	return m.filterExecutions(func(e *execution.JobExecution) bool {
		_, ok := ids[e.JobInstanceID]
		return ok && e.Status.IsRunning()
	}), nil
}

func (m *Store) filterExecutions(keep func(*execution.JobExecution) bool) []*execution.JobExecution {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*execution.JobExecution, 0)
	for _, e := range m.executions {
		if !keep(e) {
			continue
		}
		result = append(result, copyExecution(e))
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].ID > result[k].ID
	})
	return result
}

func copyExecution(e *execution.JobExecution) *execution.JobExecution {
	cp := *e
	cp.Parameters = e.Parameters.Clone()
	return &cp
}

// ──────────────────────────────────────────────────
// Step Store
// ──────────────────────────────────────────────────

// CreateStepExecution persists a new step execution.
func (m *Store) CreateStepExecution(_ context.Context, se *step.StepExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *se
	m.steps[se.ID] = &cp
	return nil
}

// GetStepExecution retrieves a step execution by ID.
func (m *Store) GetStepExecution(_ context.Context, stepExecutionID int64) (*step.StepExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	se, ok := m.steps[stepExecutionID]
	if !ok {
		return nil, jobrepo.ErrStepExecutionNotFound
	}
	cp := *se
	return &cp, nil
}

// TransitionStepExecution applies t if the stored status equals t.From.
func (m *Store) TransitionStepExecution(_ context.Context, stepExecutionID int64, t step.Transition) (*step.StepExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	se, ok := m.steps[stepExecutionID]
	if !ok {
		return nil, jobrepo.ErrStepExecutionNotFound
	}
	if se.Status != t.From || !status.CanTransition(se.Status, t.To) {
		return nil, &jobrepo.TransitionError{Entity: "step execution", ID: stepExecutionID, From: se.Status, To: t.To}
	}
	se.Apply(t)
	cp := *se
	return &cp, nil
}

// ListStepExecutions returns the steps of a job execution in start order.
func (m *Store) ListStepExecutions(_ context.Context, jobExecutionID int64) ([]*step.StepExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*step.StepExecution, 0)
	for _, se := range m.steps {
		if se.JobExecutionID != jobExecutionID {
			continue
		}
		cp := *se
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].ID < result[k].ID
	})
	return result, nil
}
