package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/status"
)

const executionColumns = `id, job_instance_id, status, start_time, end_time,
	exit_code, exit_message, parameters, create_time, last_updated`

// CreateExecution inserts a new job execution.
func (s *Store) CreateExecution(ctx context.Context, exec *execution.JobExecution) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO job_execution (`+executionColumns+`)
		VALUES (:id, :job_instance_id, :status, :start_time, :end_time,
			:exit_code, :exit_message, :parameters, :create_time, :last_updated)`,
		toExecutionRow(exec),
	)
	if err != nil {
		return wrapErr("create execution", err)
	}
	return nil
}

// GetExecution retrieves a job execution by ID.
func (s *Store) GetExecution(ctx context.Context, executionID int64) (*execution.JobExecution, error) {
	var r executionRow
	err := s.db.GetContext(ctx, &r, `SELECT `+executionColumns+` FROM job_execution WHERE id = ?`, executionID)
	if err != nil {
		if isNoRows(err) {
			return nil, jobrepo.ErrExecutionNotFound
		}
		return nil, wrapErr("get execution", err)
	}
	return fromExecutionRow(&r), nil
}

// TransitionExecution applies t with an UPDATE conditioned on the expected
// current status.
func (s *Store) TransitionExecution(ctx context.Context, executionID int64, t status.Transition) (*execution.JobExecution, error) {
	if !status.CanTransition(t.From, t.To) {
		return nil, &jobrepo.TransitionError{Entity: "job execution", ID: executionID, From: t.From, To: t.To}
	}

	var r executionRow
	err := s.db.GetContext(ctx, &r, `
		UPDATE job_execution SET
			status       = ?,
			start_time   = COALESCE(?, start_time),
			end_time     = COALESCE(?, end_time),
			exit_code    = COALESCE(?, exit_code),
			exit_message = COALESCE(?, exit_message),
			last_updated = ?
		WHERE id = ? AND status = ?
		RETURNING `+executionColumns,
		string(t.To), toNullNanos(t.StartTime), toNullNanos(t.EndTime),
		nullString(t.ExitCode), nullString(t.ExitMessage), toNanos(t.At),
		executionID, string(t.From),
	)
	if err == nil {
		return fromExecutionRow(&r), nil
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
	return s.selectExecutions(ctx, "list executions",
		`SELECT `+executionColumns+` FROM job_execution
		WHERE job_instance_id = ? ORDER BY id DESC`, instanceID)
}

// ListExecutionsByStatus returns the executions of an instance in st.
func (s *Store) ListExecutionsByStatus(ctx context.Context, instanceID int64, st status.Status) ([]*execution.JobExecution, error) {
	return s.selectExecutions(ctx, "list executions by status",
		`SELECT `+executionColumns+` FROM job_execution
		WHERE job_instance_id = ? AND status = ? ORDER BY id DESC`, instanceID, string(st))
}

// ListRunningExecutions returns running executions of the given instances.
func (s *Store) ListRunningExecutions(ctx context.Context, instanceIDs []int64) ([]*execution.JobExecution, error) {
	if len(instanceIDs) == 0 {
		return []*execution.JobExecution{}, nil
	}
	running := make([]string, 0, 3)
	for _, st := range status.Running() {
		running = append(running, string(st))
	}

	query, args, err := sqlx.In(
		`SELECT `+executionColumns+` FROM job_execution
		WHERE job_instance_id IN (?) AND status IN (?) ORDER BY id DESC`,
		instanceIDs, running)
	if err != nil {
		return nil, wrapErr("list running executions", err)
	}
	return s.selectExecutions(ctx, "list running executions", s.db.Rebind(query), args...)
}

func (s *Store) selectExecutions(ctx context.Context, op, query string, args ...any) ([]*execution.JobExecution, error) {
	var rows []executionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapErr(op, err)
	}
	result := make([]*execution.JobExecution, 0, len(rows))
	for i := range rows {
		result = append(result, fromExecutionRow(&rows[i]))
	}
	return result, nil
}
