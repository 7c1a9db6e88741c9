package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/jobkey"
	mw "github.com/xraph/jobrepo/middleware"
	"github.com/xraph/jobrepo/sequence"
	"github.com/xraph/jobrepo/status"
)

const entityExecution = "job execution"

// CreateExecution stores a new execution of instanceID in STARTING along
// with its launch parameters. A missing instance yields
// *jobrepo.ReferenceError.
func (r *Repository) CreateExecution(ctx context.Context, instanceID int64, params jobkey.Parameters) (*execution.JobExecution, error) {
	var exec *execution.JobExecution
	op := mw.Operation{Name: "CreateExecution", Entity: entityExecution}
	err := r.run(ctx, op, func(ctx context.Context) error {
		if err := r.requireInstance(ctx, instanceID); err != nil {
			return err
		}
		var err error
		exec, err = r.insertExecution(ctx, instanceID, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.extensions.EmitExecutionCreated(ctx, exec)
	return exec, nil
}

// CreateExecutionIfIdle creates an execution only when the instance has no
// running execution (ErrExecutionAlreadyRunning) and has never completed
// (ErrInstanceAlreadyComplete).
func (r *Repository) CreateExecutionIfIdle(ctx context.Context, instanceID int64, params jobkey.Parameters) (*execution.JobExecution, error) {
	var exec *execution.JobExecution
	op := mw.Operation{Name: "CreateExecutionIfIdle", Entity: entityExecution}
	err := r.run(ctx, op, func(ctx context.Context) error {
		if err := r.requireInstance(ctx, instanceID); err != nil {
			return err
		}

		existing, err := r.store.ListExecutions(ctx, instanceID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			switch {
			case e.Status.IsRunning():
				return fmt.Errorf("%w: execution %d is %s", jobrepo.ErrExecutionAlreadyRunning, e.ID, e.Status)
			case e.Status == status.Completed:
				return fmt.Errorf("%w: execution %d completed", jobrepo.ErrInstanceAlreadyComplete, e.ID)
			}
		}

		exec, err = r.insertExecution(ctx, instanceID, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.extensions.EmitExecutionCreated(ctx, exec)
	return exec, nil
}

// Launch finds or creates the instance keyed by the identifying parameters
// of params and starts a new execution of it carrying the full parameter
// set. It fails like CreateExecutionIfIdle when the instance is running or
// already complete.
func (r *Repository) Launch(ctx context.Context, jobName string, params jobkey.Parameters) (*execution.JobExecution, error) {
	inst, _, err := r.GetOrCreateInstance(ctx, jobName, jobkey.Generate(params))
	if err != nil {
		return nil, err
	}
	return r.CreateExecutionIfIdle(ctx, inst.ID, params)
}

func (r *Repository) requireInstance(ctx context.Context, instanceID int64) error {
	if _, err := r.store.GetInstance(ctx, instanceID); err != nil {
		if errors.Is(err, jobrepo.ErrInstanceNotFound) {
			return &jobrepo.ReferenceError{Entity: entityInstance, ID: instanceID}
		}
		return err
	}
	return nil
}

func (r *Repository) insertExecution(ctx context.Context, instanceID int64, params jobkey.Parameters) (*execution.JobExecution, error) {
	id, err := r.alloc.Next(ctx, sequence.JobExecution)
	if err != nil {
		return nil, err
	}
	now := r.now()
	exec := &execution.JobExecution{
		Entity:        jobrepo.Entity{CreatedAt: now, UpdatedAt: now},
		ID:            id,
		JobInstanceID: instanceID,
		Status:        status.Starting,
		Parameters:    params.Clone(),
	}
	if err := r.store.CreateExecution(ctx, exec); err != nil {
		return nil, err
	}
	return exec, nil
}

// UpdateExecutionStatus moves an execution to u.To. The change is resolved
// against the persisted status and applied as a compare-and-set, so an
// illegal, stale or replayed update yields *jobrepo.TransitionError.
func (r *Repository) UpdateExecutionStatus(ctx context.Context, executionID int64, u status.Update) (*execution.JobExecution, error) {
	if !u.To.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", jobrepo.ErrInvalidArgument, u.To)
	}

	var (
		exec *execution.JobExecution
		from status.Status
	)
	op := mw.Operation{Name: "UpdateExecutionStatus", Entity: entityExecution, ID: executionID}
	err := r.run(ctx, op, func(ctx context.Context) error {
		current, err := r.store.GetExecution(ctx, executionID)
		if err != nil {
			return err
		}
		from = current.Status
		t := u.Resolve(current.Status, current.StartTime != nil, r.now())
		exec, err = r.store.TransitionExecution(ctx, executionID, t)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.extensions.EmitExecutionTransitioned(ctx, exec, from)
	return exec, nil
}

// GetExecution returns the execution with the given ID.
func (r *Repository) GetExecution(ctx context.Context, executionID int64) (*execution.JobExecution, error) {
	var exec *execution.JobExecution
	op := mw.Operation{Name: "GetExecution", Entity: entityExecution, ID: executionID}
	err := r.run(ctx, op, func(ctx context.Context) error {
		var err error
		exec, err = r.store.GetExecution(ctx, executionID)
		return err
	})
	return exec, err
}

// LastExecution returns the newest execution of an instance.
func (r *Repository) LastExecution(ctx context.Context, instanceID int64) (*execution.JobExecution, error) {
	execs, err := r.FindExecutionsByInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if len(execs) == 0 {
		return nil, jobrepo.ErrExecutionNotFound
	}
	return execs[0], nil
}

// FindExecutionsByInstance returns every execution of an instance, newest
// first.
func (r *Repository) FindExecutionsByInstance(ctx context.Context, instanceID int64) ([]*execution.JobExecution, error) {
	var out []*execution.JobExecution
	op := mw.Operation{Name: "FindExecutionsByInstance", Entity: entityExecution, ID: instanceID}
	err := r.run(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = r.store.ListExecutions(ctx, instanceID)
		return err
	})
	return out, err
}

// FindExecutionsByInstanceAndStatus returns the executions of an instance
// currently in st, newest first.
func (r *Repository) FindExecutionsByInstanceAndStatus(ctx context.Context, instanceID int64, st status.Status) ([]*execution.JobExecution, error) {
	if !st.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", jobrepo.ErrInvalidArgument, st)
	}

	var out []*execution.JobExecution
	op := mw.Operation{Name: "FindExecutionsByInstanceAndStatus", Entity: entityExecution, ID: instanceID}
	err := r.run(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = r.store.ListExecutionsByStatus(ctx, instanceID, st)
		return err
	})
	return out, err
}

// FindRunningExecutions returns the STARTING, STARTED and STOPPING
// executions across every instance of jobName, newest first.
func (r *Repository) FindRunningExecutions(ctx context.Context, jobName string) ([]*execution.JobExecution, error) {
	var out []*execution.JobExecution
	op := mw.Operation{Name: "FindRunningExecutions", Entity: entityExecution, JobName: jobName}
	err := r.run(ctx, op, func(ctx context.Context) error {
		insts, err := r.store.ListInstances(ctx, jobName, instance.ListOpts{})
		if err != nil {
			return err
		}
		if len(insts) == 0 {
			out = []*execution.JobExecution{}
			return nil
		}
		ids := make([]int64, len(insts))
		for i, inst := range insts {
			ids[i] = inst.ID
		}
		out, err = r.store.ListRunningExecutions(ctx, ids)
		return err
	})
	return out, err
}
