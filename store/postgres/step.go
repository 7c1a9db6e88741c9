package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

const stepColumns = `id, job_execution_id, step_name, status, start_time, end_time,
	exit_code, exit_message, create_time, last_updated,
	read_count, write_count, filter_count, commit_count, rollback_count,
	read_skip_count, process_skip_count, write_skip_count`

func scanStep(row pgx.Row) (*step.StepExecution, error) {
	var (
		se step.StepExecution
		st string
	)
	err := row.Scan(
		&se.ID, &se.JobExecutionID, &se.StepName, &st, &se.StartTime, &se.EndTime,
		&se.ExitCode, &se.ExitMessage, &se.CreatedAt, &se.UpdatedAt,
		&se.ReadCount, &se.WriteCount, &se.FilterCount, &se.CommitCount, &se.RollbackCount,
		&se.ReadSkipCount, &se.ProcessSkipCount, &se.WriteSkipCount,
	)
	if err != nil {
		return nil, err
	}
	se.Status = status.Status(st)
	se.StartTime = utcPtr(se.StartTime)
	se.EndTime = utcPtr(se.EndTime)
	se.CreatedAt = utc(se.CreatedAt)
	se.UpdatedAt = utc(se.UpdatedAt)
	return &se, nil
}

// CreateStepExecution inserts a new step execution.
func (s *Store) CreateStepExecution(ctx context.Context, se *step.StepExecution) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO step_execution (`+stepColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18)`,
		se.ID, se.JobExecutionID, se.StepName, string(se.Status), se.StartTime, se.EndTime,
		se.ExitCode, se.ExitMessage, se.CreatedAt, se.UpdatedAt,
		se.ReadCount, se.WriteCount, se.FilterCount, se.CommitCount, se.RollbackCount,
		se.ReadSkipCount, se.ProcessSkipCount, se.WriteSkipCount,
	)
	if err != nil {
		return wrapErr("create step execution", err)
	}
	return nil
}

// GetStepExecution retrieves a step execution by ID.
func (s *Store) GetStepExecution(ctx context.Context, stepExecutionID int64) (*step.StepExecution, error) {
	se, err := scanStep(s.pool.QueryRow(ctx,
		`SELECT `+stepColumns+` FROM step_execution WHERE id = $1`, stepExecutionID))
	if err != nil {
		if isNoRows(err) {
			return nil, jobrepo.ErrStepExecutionNotFound
		}
		return nil, wrapErr("get step execution", err)
	}
	return se, nil
}

// TransitionStepExecution applies t if the stored status equals t.From.
func (s *Store) TransitionStepExecution(ctx context.Context, stepExecutionID int64, t step.Transition) (*step.StepExecution, error) {
	if !status.CanTransition(t.From, t.To) {
		return nil, &jobrepo.TransitionError{Entity: "step execution", ID: stepExecutionID, From: t.From, To: t.To}
	}

	se, err := scanStep(s.pool.QueryRow(ctx, `
		UPDATE step_execution SET
			status       = $3,
			start_time   = COALESCE($4, start_time),
			end_time     = COALESCE($5, end_time),
			exit_code    = COALESCE($6, exit_code),
			exit_message = COALESCE($7, exit_message),
			last_updated = $8,
			read_count         = COALESCE($9, read_count),
			write_count        = COALESCE($10, write_count),
			filter_count       = COALESCE($11, filter_count),
			commit_count       = COALESCE($12, commit_count),
			rollback_count     = COALESCE($13, rollback_count),
			read_skip_count    = COALESCE($14, read_skip_count),
			process_skip_count = COALESCE($15, process_skip_count),
			write_skip_count   = COALESCE($16, write_skip_count)
		WHERE id = $1 AND status = $2
		RETURNING `+stepColumns,
		append([]any{
			stepExecutionID, string(t.From), string(t.To), t.StartTime, t.EndTime,
			nullString(t.ExitCode), nullString(t.ExitMessage), t.At,
		}, countArgs(t.Counts)...)...,
	))
	if err == nil {
		return se, nil
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
	rows, err := s.pool.Query(ctx,
		`SELECT `+stepColumns+` FROM step_execution
		WHERE job_execution_id = $1 ORDER BY id ASC`, jobExecutionID)
	if err != nil {
		return nil, wrapErr("list step executions", err)
	}
	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*step.StepExecution, error) {
		return scanStep(row)
	})
	if err != nil {
		return nil, wrapErr("list step executions scan", err)
	}
	return result, nil
}
