package bunstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/jobkey"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

// ── Sequence model ────────────────────────────────────────────────

type sequenceModel struct {
	bun.BaseModel `bun:"table:sequences"`

	ID    string `bun:"id,pk"`
	Count int64  `bun:"count,notnull,default:0"`
}

// ── Instance model ────────────────────────────────────────────────

type instanceModel struct {
	bun.BaseModel `bun:"table:job_instance"`

	ID         int64     `bun:"id,pk"`
	JobName    string    `bun:"job_name,notnull"`
	JobKey     string    `bun:"job_key,notnull"`
	CreateTime time.Time `bun:"create_time,notnull,default:current_timestamp"`
}

func toInstanceModel(inst *instance.JobInstance) *instanceModel {
	return &instanceModel{
		ID:         inst.ID,
		JobName:    inst.JobName,
		JobKey:     inst.JobKey,
		CreateTime: inst.CreatedAt,
	}
}

func fromInstanceModel(m *instanceModel) *instance.JobInstance {
	return &instance.JobInstance{
		ID:        m.ID,
		JobName:   m.JobName,
		JobKey:    m.JobKey,
		CreatedAt: m.CreateTime.UTC(),
	}
}

// ── Execution model ───────────────────────────────────────────────

type executionModel struct {
	bun.BaseModel `bun:"table:job_execution"`

	ID            int64      `bun:"id,pk"`
	JobInstanceID int64      `bun:"job_instance_id,notnull"`
	Status        string     `bun:"status,notnull"`
	StartTime     *time.Time `bun:"start_time"`
	EndTime       *time.Time `bun:"end_time"`
	ExitCode      string     `bun:"exit_code,notnull,default:''"`
	ExitMessage   string            `bun:"exit_message,notnull,default:''"`
	Parameters    jobkey.Parameters `bun:"parameters,type:jsonb,notnull,default:'{}'"`
	CreateTime    time.Time         `bun:"create_time,notnull,default:current_timestamp"`
	LastUpdated   time.Time         `bun:"last_updated,notnull,default:current_timestamp"`
}

func toExecutionModel(e *execution.JobExecution) *executionModel {
	return &executionModel{
		ID:            e.ID,
		JobInstanceID: e.JobInstanceID,
		Status:        string(e.Status),
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		ExitCode:      e.ExitCode,
		ExitMessage:   e.ExitMessage,
		Parameters:    e.Parameters,
		CreateTime:    e.CreatedAt,
		LastUpdated:   e.UpdatedAt,
	}
}

func fromExecutionModel(m *executionModel) *execution.JobExecution {
	return &execution.JobExecution{
		Entity: jobrepo.Entity{
			CreatedAt: m.CreateTime.UTC(),
			UpdatedAt: m.LastUpdated.UTC(),
		},
		ID:            m.ID,
		JobInstanceID: m.JobInstanceID,
		Status:        status.Status(m.Status),
		StartTime:     utcPtr(m.StartTime),
		EndTime:       utcPtr(m.EndTime),
		ExitCode:      m.ExitCode,
		ExitMessage:   m.ExitMessage,
		Parameters:    m.Parameters,
	}
}

// ── Step model ────────────────────────────────────────────────────

type stepModel struct {
	bun.BaseModel `bun:"table:step_execution"`

	ID             int64      `bun:"id,pk"`
	JobExecutionID int64      `bun:"job_execution_id,notnull"`
	StepName       string     `bun:"step_name,notnull"`
	Status         string     `bun:"status,notnull"`
	StartTime      *time.Time `bun:"start_time"`
	EndTime        *time.Time `bun:"end_time"`
	ExitCode       string     `bun:"exit_code,notnull,default:''"`
	ExitMessage    string     `bun:"exit_message,notnull,default:''"`
	CreateTime     time.Time  `bun:"create_time,notnull,default:current_timestamp"`
	LastUpdated    time.Time  `bun:"last_updated,notnull,default:current_timestamp"`

	ReadCount        int64 `bun:"read_count,notnull,default:0"`
	WriteCount       int64 `bun:"write_count,notnull,default:0"`
	FilterCount      int64 `bun:"filter_count,notnull,default:0"`
	CommitCount      int64 `bun:"commit_count,notnull,default:0"`
	RollbackCount    int64 `bun:"rollback_count,notnull,default:0"`
	ReadSkipCount    int64 `bun:"read_skip_count,notnull,default:0"`
	ProcessSkipCount int64 `bun:"process_skip_count,notnull,default:0"`
	WriteSkipCount   int64 `bun:"write_skip_count,notnull,default:0"`
}

func toStepModel(se *step.StepExecution) *stepModel {
	return &stepModel{
		ID:             se.ID,
		JobExecutionID: se.JobExecutionID,
		StepName:       se.StepName,
		Status:         string(se.Status),
		StartTime:      se.StartTime,
		EndTime:        se.EndTime,
		ExitCode:       se.ExitCode,
		ExitMessage:    se.ExitMessage,
		CreateTime:     se.CreatedAt,
		LastUpdated:    se.UpdatedAt,

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

func fromStepModel(m *stepModel) *step.StepExecution {
	return &step.StepExecution{
		Entity: jobrepo.Entity{
			CreatedAt: m.CreateTime.UTC(),
			UpdatedAt: m.LastUpdated.UTC(),
		},
		ID:             m.ID,
		JobExecutionID: m.JobExecutionID,
		StepName:       m.StepName,
		Status:         status.Status(m.Status),
		StartTime:      utcPtr(m.StartTime),
		EndTime:        utcPtr(m.EndTime),
		ExitCode:       m.ExitCode,
		ExitMessage:    m.ExitMessage,
		Counts: step.Counts{
			ReadCount:        m.ReadCount,
			WriteCount:       m.WriteCount,
			FilterCount:      m.FilterCount,
			CommitCount:      m.CommitCount,
			RollbackCount:    m.RollbackCount,
			ReadSkipCount:    m.ReadSkipCount,
			ProcessSkipCount: m.ProcessSkipCount,
			WriteSkipCount:   m.WriteSkipCount,
		},
	}
}
