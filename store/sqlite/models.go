package sqlite

import (
	"database/sql"
	"time"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/jobkey"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

// ── Time helpers ──────────────────────────────────────────────────

func toNanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func toNullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ── Instance model ────────────────────────────────────────────────

type instanceRow struct {
	ID         int64  `db:"id"`
	JobName    string `db:"job_name"`
	JobKey     string `db:"job_key"`
	CreateTime int64  `db:"create_time"`
}

func fromInstanceRow(r *instanceRow) *instance.JobInstance {
	return &instance.JobInstance{
		ID:        r.ID,
		JobName:   r.JobName,
		JobKey:    r.JobKey,
		CreatedAt: fromNanos(r.CreateTime),
	}
}

// ── Execution model ───────────────────────────────────────────────

type executionRow struct {
	ID            int64         `db:"id"`
	JobInstanceID int64         `db:"job_instance_id"`
	Status        string        `db:"status"`
	StartTime     sql.NullInt64 `db:"start_time"`
	EndTime       sql.NullInt64 `db:"end_time"`
	ExitCode      string        `db:"exit_code"`
	ExitMessage   string            `db:"exit_message"`
	Parameters    jobkey.Parameters `db:"parameters"`
	CreateTime    int64             `db:"create_time"`
	LastUpdated   int64             `db:"last_updated"`
}

func toExecutionRow(e *execution.JobExecution) *executionRow {
	return &executionRow{
		ID:            e.ID,
		JobInstanceID: e.JobInstanceID,
		Status:        string(e.Status),
		StartTime:     toNullNanos(e.StartTime),
		EndTime:       toNullNanos(e.EndTime),
		ExitCode:      e.ExitCode,
		ExitMessage:   e.ExitMessage,
		Parameters:    e.Parameters,
		CreateTime:    toNanos(e.CreatedAt),
		LastUpdated:   toNanos(e.UpdatedAt),
	}
}

func fromExecutionRow(r *executionRow) *execution.JobExecution {
	return &execution.JobExecution{
		Entity: jobrepo.Entity{
			CreatedAt: fromNanos(r.CreateTime),
			UpdatedAt: fromNanos(r.LastUpdated),
		},
		ID:            r.ID,
		JobInstanceID: r.JobInstanceID,
		Status:        status.Status(r.Status),
		StartTime:     fromNullNanos(r.StartTime),
		EndTime:       fromNullNanos(r.EndTime),
		ExitCode:      r.ExitCode,
		ExitMessage:   r.ExitMessage,
		Parameters:    r.Parameters,
	}
}

// ── Step model ────────────────────────────────────────────────────

type stepRow struct {
	ID             int64         `db:"id"`
	JobExecutionID int64         `db:"job_execution_id"`
	StepName       string        `db:"step_name"`
	Status         string        `db:"status"`
	StartTime      sql.NullInt64 `db:"start_time"`
	EndTime        sql.NullInt64 `db:"end_time"`
	ExitCode       string        `db:"exit_code"`
	ExitMessage    string        `db:"exit_message"`
	CreateTime     int64         `db:"create_time"`
	LastUpdated    int64         `db:"last_updated"`

	ReadCount        int64 `db:"read_count"`
	WriteCount       int64 `db:"write_count"`
	FilterCount      int64 `db:"filter_count"`
	CommitCount      int64 `db:"commit_count"`
	RollbackCount    int64 `db:"rollback_count"`
	ReadSkipCount    int64 `db:"read_skip_count"`
	ProcessSkipCount int64 `db:"process_skip_count"`
	WriteSkipCount   int64 `db:"write_skip_count"`
}

func toStepRow(se *step.StepExecution) *stepRow {
	return &stepRow{
		ID:             se.ID,
		JobExecutionID: se.JobExecutionID,
		StepName:       se.StepName,
		Status:         string(se.Status),
		StartTime:      toNullNanos(se.StartTime),
		EndTime:        toNullNanos(se.EndTime),
		ExitCode:       se.ExitCode,
		ExitMessage:    se.ExitMessage,
		CreateTime:     toNanos(se.CreatedAt),
		LastUpdated:    toNanos(se.UpdatedAt),

		ReadCount:        se.ReadCount,
		WriteCount:       se.WriteCount,
		FilterCount:      se.FilterCount,
		CommitCount:      se.CommitCount,
		RollbackCount:    se.RollbackCount,
		ReadSkipCount:    se.ReadSkipCount,
		ProcessSkipCount: se.ProcessSkipCount,
		WriteSkipCount:   se.WriteSkipCount,
	}
}

func fromStepRow(r *stepRow) *step.StepExecution {
	return &step.StepExecution{
		Entity: jobrepo.Entity{
			CreatedAt: fromNanos(r.CreateTime),
			UpdatedAt: fromNanos(r.LastUpdated),
		},
		ID:             r.ID,
		JobExecutionID: r.JobExecutionID,
		StepName:       r.StepName,
		Status:         status.Status(r.Status),
		StartTime:      fromNullNanos(r.StartTime),
		EndTime:        fromNullNanos(r.EndTime),
		ExitCode:       r.ExitCode,
		ExitMessage:    r.ExitMessage,
		Counts: step.Counts{
			ReadCount:        r.ReadCount,
			WriteCount:       r.WriteCount,
			FilterCount:      r.FilterCount,
			CommitCount:      r.CommitCount,
			RollbackCount:    r.RollbackCount,
			ReadSkipCount:    r.ReadSkipCount,
			ProcessSkipCount: r.ProcessSkipCount,
			WriteSkipCount:   r.WriteSkipCount,
		},
	}
}

// countArgs binds the counters of a step transition in column order. Nil
// counts bind NULL so COALESCE keeps the stored values.
func countArgs(c *step.Counts) []any {
	if c == nil {
		return make([]any, 8)
	}
	return []any{
		c.ReadCount, c.WriteCount, c.FilterCount, c.CommitCount,
		c.RollbackCount, c.ReadSkipCount, c.ProcessSkipCount, c.WriteSkipCount,
	}
}
