package bunstore

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/status"
)

// CreateExecution inserts a new job execution.
func (s *Store) CreateExecution(ctx context.Context, exec *execution.JobExecution) error {
	if _, err := s.db.NewInsert().Model(toExecutionModel(exec)).Exec(ctx); err != nil {
		return wrapErr("create execution", err)
	}
	return nil
}

// GetExecution retrieves a job execution by ID.
func (s *Store) GetExecution(ctx context.Context, executionID int64) (*execution.JobExecution, error) {
	m := new(executionModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", executionID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, jobrepo.ErrExecutionNotFound
		}
		return nil, wrapErr("get execution", err)
	}
	return fromExecutionModel(m), nil
}

// TransitionExecution applies t with an UPDATE conditioned on the expected
// current status.
func (s *Store) TransitionExecution(ctx context.Context, executionID int64, t status.Transition) (*execution.JobExecution, error) {
	if !status.CanTransition(t.From, t.To) {
		return nil, &jobrepo.TransitionError{Entity: "job execution", ID: executionID, From: t.From, To: t.To}
	}

	m := new(executionModel)
	res, err := applyTransition(s.db.NewUpdate().Model(m), t).
		Where("id = ?", executionID).
		Where("status = ?", string(t.From)).
		Returning("*").
		Exec(ctx)
	if err != nil && !isNoRows(err) {
		return nil, wrapErr("transition execution", err)
	}
	if err == nil {
		if n, _ := res.RowsAffected(); n > 0 {
			return fromExecutionModel(m), nil
		}
	}

	current, getErr := s.GetExecution(ctx, executionID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &jobrepo.TransitionError{Entity: "job execution", ID: executionID, From: current.Status, To: t.To}
}

// applyTransition adds the SET clauses for t. Nil timestamps and empty
// exit fields leave stored values untouched.
func applyTransition(q *bun.UpdateQuery, t status.Transition) *bun.UpdateQuery {
	q = q.Set("status = ?", string(t.To)).
		Set("last_updated = ?", t.At)
	if t.StartTime != nil {
		q = q.Set("start_time = ?", *t.StartTime)
	}
	if t.EndTime != nil {
		q = q.Set("end_time = ?", *t.EndTime)
	}
	if t.ExitCode != "" {
		q = q.Set("exit_code = ?", t.ExitCode)
	}
	if t.ExitMessage != "" {
		q = q.Set("exit_message = ?", t.ExitMessage)
	}
	return q
}

// ListExecutions returns the executions of an instance, newest first.
func (s *Store) ListExecutions(ctx context.Context, instanceID int64) ([]*execution.JobExecution, error) {
	return s.selectExecutions(ctx, "list executions", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("job_instance_id = ?", instanceID)
	})
}

// ListExecutionsByStatus returns the executions of an instance in st.
func (s *Store) ListExecutionsByStatus(ctx context.Context, instanceID int64, st status.Status) ([]*execution.JobExecution, error) {
	return s.selectExecutions(ctx, "list executions by status", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("job_instance_id = ?", instanceID).Where("status = ?", string(st))
	})
}

// ListRunningExecutions returns running executions of the given instances.
func (s *Store) ListRunningExecutions(ctx context.Context, instanceIDs []int64) ([]*execution.JobExecution, error) {
	if len(instanceIDs) == 0 {
		return []*execution.JobExecution{}, nil
	}
	return s.selectExecutions(ctx, "list running executions", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("job_instance_id IN (?)", bun.In(instanceIDs)).
			Where("status IN (?)", bun.In(statusStrings(status.Running())))
	})
}

func (s *Store) selectExecutions(ctx context.Context, op string, filter func(*bun.SelectQuery) *bun.SelectQuery) ([]*execution.JobExecution, error) {
	var models []executionModel
	q := filter(s.db.NewSelect().Model(&models)).OrderExpr("id DESC")
	if err := q.Scan(ctx); err != nil {
		return nil, wrapErr(op, err)
	}

	result := make([]*execution.JobExecution, 0, len(models))
	for i := range models {
		result = append(result, fromExecutionModel(&models[i]))
	}
	return result, nil
}
