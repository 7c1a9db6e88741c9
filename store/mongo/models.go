package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/jobkey"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

// ── Sequence model ────────────────────────────────────────────────

type sequenceModel struct {
	Kind  string `bson:"_id"`
	Count int64  `bson:"count"`
}

// ── Instance model ────────────────────────────────────────────────

type instanceModel struct {
	ID         int64     `bson:"id"`
	JobName    string    `bson:"jobName"`
	JobKey     string    `bson:"jobKey"`
	CreateTime time.Time `bson:"createTime"`
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
	ID            int64      `bson:"id"`
	JobInstanceID int64      `bson:"jobInstanceId"`
	Status        string     `bson:"status"`
	StartTime     *time.Time `bson:"startTime,omitempty"`
	EndTime       *time.Time `bson:"endTime,omitempty"`
	ExitCode      string     `bson:"exitCode"`
	ExitMessage   string                   `bson:"exitMessage"`
	Parameters    map[string]jobkey.Stored `bson:"parameters,omitempty"`
	CreateTime    time.Time                `bson:"createTime"`
	LastUpdated   time.Time                `bson:"lastUpdated"`
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
		Parameters:    toStoredParameters(e.Parameters),
		CreateTime:    e.CreatedAt,
		LastUpdated:   e.UpdatedAt,
	}
}

func fromExecutionModel(m *executionModel) (*execution.JobExecution, error) {
	params, err := fromStoredParameters(m.Parameters)
	if err != nil {
		return nil, err
	}
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
		Parameters:    params,
	}, nil
}

func toStoredParameters(params jobkey.Parameters) map[string]jobkey.Stored {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]jobkey.Stored, len(params))
	for name, p := range params {
		out[name] = p.Stored()
	}
	return out
}

func fromStoredParameters(stored map[string]jobkey.Stored) (jobkey.Parameters, error) {
	if len(stored) == 0 {
		return nil, nil
	}
	out := make(jobkey.Parameters, len(stored))
	for name, sp := range stored {
		p, err := sp.Parameter()
		if err != nil {
			return nil, err
		}
		out[name] = p
	}
	return out, nil
}

// ── Step model ────────────────────────────────────────────────────

type stepModel struct {
	ID             int64      `bson:"id"`
	JobExecutionID int64      `bson:"jobExecutionId"`
	StepName       string     `bson:"stepName"`
	Status         string     `bson:"status"`
	StartTime      *time.Time `bson:"startTime,omitempty"`
	EndTime        *time.Time `bson:"endTime,omitempty"`
	ExitCode       string     `bson:"exitCode"`
	ExitMessage    string     `bson:"exitMessage"`
	CreateTime     time.Time  `bson:"createTime"`
	LastUpdated    time.Time  `bson:"lastUpdated"`

	ReadCount        int64 `bson:"readCount"`
	WriteCount       int64 `bson:"writeCount"`
	FilterCount      int64 `bson:"filterCount"`
	CommitCount      int64 `bson:"commitCount"`
	RollbackCount    int64 `bson:"rollbackCount"`
	ReadSkipCount    int64 `bson:"readSkipCount"`
	ProcessSkipCount int64 `bson:"processSkipCount"`
	WriteSkipCount   int64 `bson:"writeSkipCount"`
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

// countsSet returns the $set fields for non-nil step counters.
func countsSet(c *step.Counts) bson.M {
	if c == nil {
		return nil
	}
	return bson.M{
		"readCount":        c.ReadCount,
		"writeCount":       c.WriteCount,
		"filterCount":      c.FilterCount,
		"commitCount":      c.CommitCount,
		"rollbackCount":    c.RollbackCount,
		"readSkipCount":    c.ReadSkipCount,
		"processSkipCount": c.ProcessSkipCount,
		"writeSkipCount":   c.WriteSkipCount,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
