package sqlite

import (
	"context"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

const stepColumns = `id, job_execution_id, step_name, status, start_time, end_time,
	exit_code, exit_message, create_time, last_updated,
	read_count, write_count, filter_count, commit_count, rollback_count,
	read_skip_count, process_skip_count, write_skip_count`

// CreateStepExecution inserts a new step execution.
func (s *Store) CreateStepExecution(ctx context.Context, se *step.StepExecution) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO step_execution (`+stepColumns+`)
		VALUES (:id, :job_execution_id, :step_name, :status, :start_time, :end_time,
			:exit_code, :exit_message, :create_time, :last_updated,
			:read_count, :write_count, :filter_count, :commit_count, :rollback_count,
			:read_skip_count, :process_skip_count, :write_skip_count)`,
		toStepRow(se),
	)
	if err != nil {
		return wrapErr("create step execution", err)
	}
	return nil
}

// GetStepExecution retrieves a step execution by ID.
func (s *Store) GetStepExecution(ctx context.Context, stepExecutionID int64) (*step.StepExecution, error) {
	var r stepRow
	err := s.db.GetContext(ctx, &r, `SELECT `+stepColumns+` FROM step_execution WHERE id = ?`, stepExecutionID)
	if err != nil {
		if isNoRows(err) {
			return nil, jobrepo.ErrStepExecutionNotFound
		}
		return nil, wrapErr("get step execution", err)
	}
	return fromStepRow(&r), nil
}

// TransitionStepExecution applies t if the stored status equals t.From.
func (s *Store) TransitionStepExecution(ctx context.Context, stepExecutionID int64, t step.Transition) (*step.StepExecution, error) {
	if !status.CanTransition(t.From, t.To) {
		return nil, &jobrepo.TransitionError{Entity: "step execution", ID: stepExecutionID, From: t.From, To: t.To}
	}

	var r stepRow
	err := s.db.GetContext(ctx, &r, `
		UPDATE step_execution SET
			status       = ?,
			start_time   = COALESCE(?, start_time),
			end_time     = COALESCE(?, end_time),
			exit_code    = COALESCE(?, exit_code),
			exit_message = COALESCE(?, exit_message),
			last_updated = ?,
			read_count         = COALESCE(?, read_count),
			write_count        = COALESCE(?, write_count),
			filter_count       = COALESCE(?, filter_count),
			commit_count       = COALESCE(?, commit_count),
			rollback_count     = COALESCE(?, rollback_count),
			read_skip_count    = COALESCE(?, read_skip_count),
			process_skip_count = COALESCE(?, process_skip_count),
			write_skip_count   = COALESCE(?, write_skip_count)
		WHERE id = ? AND status = ?
		RETURNING `+stepColumns,
		append(append([]any{
			string(t.To), toNullNanos(t.StartTime), toNullNanos(t.EndTime),
			nullString(t.ExitCode), nullString(t.ExitMessage), toNanos(t.At),
		}, countArgs(t.Counts)...), stepExecutionID, string(t.From))...,
	)
	if err == nil {
		return fromStepRow(&r), nil
	}
	if !isNoRows(err) {
		return nil, wrapErr("transition step execution", err)
	}

	current, getErr := s.GetStepExecution(ctx, stepExecutionID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &jobrepo.TransitionError{Entity: "step execution", ID: stepExecutionID, From: current.Status, To: t.To}
}

// ListStepExecutions returns the steps of a job execution in start order.
func (s *Store) ListStepExecutions(ctx context.Context, jobExecutionID int64) ([]*step.StepExecution, error) {
	var rows []stepRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+stepColumns+` FROM step_execution
		WHERE job_execution_id = ? ORDER BY id ASC`, jobExecutionID)
	if err != nil {
		return nil, wrapErr("list step executions", err)
	}
	result := make([]*step.StepExecution, 0, len(rows))
	for i := range rows {
		result = append(result, fromStepRow(&rows[i]))
	}
	return result, nil
}
