package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/jobrepo"
	mw "github.com/xraph/jobrepo/middleware"
	"github.com/xraph/jobrepo/sequence"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

const entityStep = "step execution"

// CreateStepExecution stores a new step of jobExecutionID in STARTING. A
// missing job execution yields *jobrepo.ReferenceError.
func (r *Repository) CreateStepExecution(ctx context.Context, jobExecutionID int64, stepName string) (*step.StepExecution, error) {
	if stepName == "" {
		return nil, fmt.Errorf("%w: step name is required", jobrepo.ErrInvalidArgument)
	}

	var se *step.StepExecution
	op := mw.Operation{Name: "CreateStepExecution", Entity: entityStep}
	err := r.run(ctx, op, func(ctx context.Context) error {
		if _, err := r.store.GetExecution(ctx, jobExecutionID); err != nil {
			if errors.Is(err, jobrepo.ErrExecutionNotFound) {
				return &jobrepo.ReferenceError{Entity: entityExecution, ID: jobExecutionID}
			}
			return err
		}

		id, err := r.alloc.Next(ctx, sequence.StepExecution)
		if err != nil {
			return err
		}
		now := r.now()
		candidate := &step.StepExecution{
			Entity:         jobrepo.Entity{CreatedAt: now, UpdatedAt: now},
			ID:             id,
			JobExecutionID: jobExecutionID,
			StepName:       stepName,
			Status:         status.Starting,
		}
		if err := r.store.CreateStepExecution(ctx, candidate); err != nil {
			return err
		}
		se = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.extensions.EmitStepExecutionCreated(ctx, se)
	return se, nil
}

// UpdateStepStatus moves a step execution to u.To under the same rules as
// UpdateExecutionStatus. Counters in u are stored with the new status.
func (r *Repository) UpdateStepStatus(ctx context.Context, stepExecutionID int64, u step.Update) (*step.StepExecution, error) {
	if !u.To.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", jobrepo.ErrInvalidArgument, u.To)
	}
	if u.Counts != nil {
		if err := u.Counts.Validate(); err != nil {
			return nil, err
		}
	}

	var (
		se   *step.StepExecution
		from status.Status
	)
	op := mw.Operation{Name: "UpdateStepStatus", Entity: entityStep, ID: stepExecutionID}
	err := r.run(ctx, op, func(ctx context.Context) error {
		current, err := r.store.GetStepExecution(ctx, stepExecutionID)
		if err != nil {
			return err
		}
		from = current.Status
		t := u.Resolve(current.Status, current.StartTime != nil, r.now())
		se, err = r.store.TransitionStepExecution(ctx, stepExecutionID, t)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.extensions.EmitStepTransitioned(ctx, se, from)
	return se, nil
}

// GetStepExecution returns the step execution with the given ID.
func (r *Repository) GetStepExecution(ctx context.Context, stepExecutionID int64) (*step.StepExecution, error) {
	var se *step.StepExecution
	op := mw.Operation{Name: "GetStepExecution", Entity: entityStep, ID: stepExecutionID}
	err := r.run(ctx, op, func(ctx context.Context) error {
		var err error
		se, err = r.store.GetStepExecution(ctx, stepExecutionID)
		return err
	})
	return se, err
}

// FindStepExecutionsByJobExecution returns the steps of a job execution in
// creation order.
func (r *Repository) FindStepExecutionsByJobExecution(ctx context.Context, jobExecutionID int64) ([]*step.StepExecution, error) {
	var out []*step.StepExecution
	op := mw.Operation{Name: "FindStepExecutionsByJobExecution", Entity: entityStep, ID: jobExecutionID}
	err := r.run(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = r.store.ListStepExecutions(ctx, jobExecutionID)
		return err
	})
	return out, err
}
