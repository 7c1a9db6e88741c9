package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/jobkey"
	"github.com/xraph/jobrepo/status"
)

const executionColumns = `id, job_instance_id, status, start_time, end_time,
	exit_code, exit_message, parameters, create_time, last_updated`

func scanExecution(row pgx.Row) (*execution.JobExecution, error) {
	var (
		e      execution.JobExecution
		st     string
		params string
	)
	err := row.Scan(
		&e.ID, &e.JobInstanceID, &st, &e.StartTime, &e.EndTime,
		&e.ExitCode, &e.ExitMessage, &params, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if e.Parameters, err = jobkey.Decode(params); err != nil {
		return nil, err
	}
	e.Status = status.Status(st)
	e.StartTime = utcPtr(e.StartTime)
	e.EndTime = utcPtr(e.EndTime)
	e.CreatedAt = utc(e.CreatedAt)
	e.UpdatedAt = utc(e.UpdatedAt)
	return &e, nil
}

func collectExecutions(rows pgx.Rows) ([]*execution.JobExecution, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*execution.JobExecution, error) {
		return scanExecution(row)
	})
}

// CreateExecution inserts a new job execution.
func (s *Store) CreateExecution(ctx context.Context, exec *execution.JobExecution) error {
	params, err := jobkey.Encode(exec.Parameters)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO job_execution (`+executionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		exec.ID, exec.JobInstanceID, string(exec.Status), exec.StartTime, exec.EndTime,
		exec.ExitCode, exec.ExitMessage, params, exec.CreatedAt, exec.UpdatedAt,
	)
	if err != nil {
		return wrapErr("create execution", err)
	}
	return nil
}

// GetExecution retrieves a job execution by ID.
func (s *Store) GetExecution(ctx context.Context, executionID int64) (*execution.JobExecution, error) {
	e, err := scanExecution(s.pool.QueryRow(ctx,
		`SELECT `+executionColumns+` FROM job_execution WHERE id = $1`, executionID))
	if err != nil {
		if isNoRows(err) {
			return nil, jobrepo.ErrExecutionNotFound
		}
		return nil, wrapErr("get execution", err)
	}
	return e, nil
}

// TransitionExecution applies t with an UPDATE conditioned on the expected
// current status.
func (s *Store) TransitionExecution(ctx context.Context, executionID int64, t status.Transition) (*execution.JobExecution, error) {
	if !status.CanTransition(t.From, t.To) {
		return nil, &jobrepo.TransitionError{Entity: "job execution", ID: executionID, From: t.From, To: t.To}
	}

	e, err := scanExecution(s.pool.QueryRow(ctx, `
		UPDATE job_execution SET
			status       = $3,
			start_time   = COALESCE($4, start_time),
			end_time     = COALESCE($5, end_time),
			exit_code    = COALESCE($6, exit_code),
			exit_message = COALESCE($7, exit_message),
			last_updated = $8
		WHERE id = $1 AND status = $2
		RETURNING `+executionColumns,
		executionID, string(t.From), string(t.To), t.StartTime, t.EndTime,
		nullString(t.ExitCode), nullString(t.ExitMessage), t.At,
	))
	if err == nil {
		return e, nil
	}
	if !isNoRows(err) {
		return nil, wrapErr("transition execution", err)
	}

	current, getErr := s.GetExecution(ctx, executionID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &jobrepo.TransitionError{Entity: "job execution", ID: executionID, From: current.Status, To: t.To}
}

// ListExecutions returns the executions of an instance, newest first.
func (s *Store) ListExecutions(ctx context.Context, instanceID int64) ([]*execution.JobExecution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+executionColumns+` FROM job_execution
		WHERE job_instance_id = $1 ORDER BY id DESC`, instanceID)
	if err != nil {
		return nil, wrapErr("list executions", err)
	}
	result, err := collectExecutions(rows)
	if err != nil {
		return nil, wrapErr("list executions scan", err)
	}
	return result, nil
}

// ListExecutionsByStatus returns the executions of an instance in st.
func (s *Store) ListExecutionsByStatus(ctx context.Context, instanceID int64, st status.Status) ([]*execution.JobExecution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+executionColumns+` FROM job_execution
		WHERE job_instance_id = $1 AND status = $2 ORDER BY id DESC`,
		instanceID, string(st))
	if err != nil {
		return nil, wrapErr("list executions by status", err)
	}
	result, err := collectExecutions(rows)
	if err != nil {
		return nil, wrapErr("list executions by status scan", err)
	}
	return result, nil
}

// ListRunningExecutions returns running executions of the given instances.
func (s *Store) ListRunningExecutions(ctx context.Context, instanceIDs []int64) ([]*execution.JobExecution, error) {
	if len(instanceIDs) == 0 {
		return []*execution.JobExecution{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+executionColumns+` FROM job_execution
		WHERE job_instance_id = ANY($1) AND status = ANY($2)
		ORDER BY id DESC`,
		instanceIDs, statusStrings(status.Running()))
	if err != nil {
		return nil, wrapErr("list running executions", err)
	}
	result, err := collectExecutions(rows)
	if err != nil {
		return nil, wrapErr("list running executions scan", err)
	}
	return result, nil
}
