package bunstore

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

// CreateStepExecution inserts a new step execution.
func (s *Store) CreateStepExecution(ctx context.Context, se *step.StepExecution) error {
	if _, err := s.db.NewInsert().Model(toStepModel(se)).Exec(ctx); err != nil {
		return wrapErr("create step execution", err)
	}
	return nil
}

// GetStepExecution retrieves a step execution by ID.
func (s *Store) GetStepExecution(ctx context.Context, stepExecutionID int64) (*step.StepExecution, error) {
	m := new(stepModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", stepExecutionID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, jobrepo.ErrStepExecutionNotFound
		}
		return nil, wrapErr("get step execution", err)
	}
	return fromStepModel(m), nil
}

// TransitionStepExecution applies t if the stored status equals t.From.
func (s *Store) TransitionStepExecution(ctx context.Context, stepExecutionID int64, t step.Transition) (*step.StepExecution, error) {
	if !status.CanTransition(t.From, t.To) {
		return nil, &jobrepo.TransitionError{Entity: "step execution", ID: stepExecutionID, From: t.From, To: t.To}
	}

	m := new(stepModel)
	res, err := applyCounts(applyTransition(s.db.NewUpdate().Model(m), t.Transition), t.Counts).
		Where("id = ?", stepExecutionID).
		Where("status = ?", string(t.From)).
		Returning("*").
		Exec(ctx)
	if err != nil && !isNoRows(err) {
		return nil, wrapErr("transition step execution", err)
	}
	if err == nil {
		if n, _ := res.RowsAffected(); n > 0 {
			return fromStepModel(m), nil
		}
	}

	current, getErr := s.GetStepExecution(ctx, stepExecutionID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &jobrepo.TransitionError{Entity: "step execution", ID: stepExecutionID, From: current.Status, To: t.To}
}

// applyCounts adds the SET clauses for non-nil step counters.
func applyCounts(q *bun.UpdateQuery, c *step.Counts) *bun.UpdateQuery {
	if c == nil {
		return q
	}
	return q.Set("read_count = ?", c.ReadCount).
		Set("write_count = ?", c.WriteCount).
		Set("filter_count = ?", c.FilterCount).
		Set("commit_count = ?", c.CommitCount).
		Set("rollback_count = ?", c.RollbackCount).
		Set("read_skip_count = ?", c.ReadSkipCount).
		Set("process_skip_count = ?", c.ProcessSkipCount).
		Set("write_skip_count = ?", c.WriteSkipCount)
}

// ListStepExecutions returns the steps of a job execution in start order.
func (s *Store) ListStepExecutions(ctx context.Context, jobExecutionID int64) ([]*step.StepExecution, error) {
	var models []stepModel
	err := s.db.NewSelect().Model(&models).
		Where("job_execution_id = ?", jobExecutionID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrapErr("list step executions", err)
	}

	result := make([]*step.StepExecution, 0, len(models))
	for i := range models {
		result = append(result, fromStepModel(&models[i]))
	}
	return result, nil
}
