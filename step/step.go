package step

import (
	"fmt"
	"time"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/status"
)

// Counts are the item counters a step reports while it runs.
type Counts struct {
	ReadCount        int64 `json:"read_count"`
	WriteCount       int64 `json:"write_count"`
	FilterCount      int64 `json:"filter_count"`
	CommitCount      int64 `json:"commit_count"`
	RollbackCount    int64 `json:"rollback_count"`
	ReadSkipCount    int64 `json:"read_skip_count"`
	ProcessSkipCount int64 `json:"process_skip_count"`
	WriteSkipCount   int64 `json:"write_skip_count"`
}

// SkipCount is the total of the three skip counters.
func (c Counts) SkipCount() int64 {
	return c.ReadSkipCount + c.ProcessSkipCount + c.WriteSkipCount
}

// Validate rejects negative counters.
func (c Counts) Validate() error {
	for _, f := range []struct {
		name string
		v    int64
	}{
		{"read", c.ReadCount},
		{"write", c.WriteCount},
		{"filter", c.FilterCount},
		{"commit", c.CommitCount},
		{"rollback", c.RollbackCount},
		{"read skip", c.ReadSkipCount},
		{"process skip", c.ProcessSkipCount},
		{"write skip", c.WriteSkipCount},
	} {
		if f.v < 0 {
			return fmt.Errorf("%w: %s count %d is negative", jobrepo.ErrInvalidArgument, f.name, f.v)
		}
	}
	return nil
}

// StepExecution is one attempt to run a step within a job execution.
type StepExecution struct {
	jobrepo.Entity
	Counts

	ID             int64         `json:"id"`
	JobExecutionID int64         `json:"job_execution_id"`
	StepName       string        `json:"step_name"`
	Status         status.Status `json:"status"`
	StartTime      *time.Time    `json:"start_time,omitempty"`
	EndTime        *time.Time    `json:"end_time,omitempty"`
	ExitCode       string        `json:"exit_code,omitempty"`
	ExitMessage    string        `json:"exit_message,omitempty"`
}

// Update is a status change for a step. Non-nil Counts replace the stored
// counters in the same write.
type Update struct {
	status.Update
	Counts *Counts
}

// Transition is a resolved step Update.
type Transition struct {
	status.Transition
	Counts *Counts
}

// Resolve resolves the status part of u and carries the counters along.
func (u Update) Resolve(from status.Status, hasStart bool, now time.Time) Transition {
	t := Transition{Transition: u.Update.Resolve(from, hasStart, now)}
	if u.Counts != nil {
		c := *u.Counts
		t.Counts = &c
	}
	return t
}

// Apply copies a resolved transition onto s.
func (s *StepExecution) Apply(t Transition) {
	s.Status = t.To
	if t.StartTime != nil {
		s.StartTime = t.StartTime
	}
	if t.EndTime != nil {
		s.EndTime = t.EndTime
	}
	if t.ExitCode != "" {
		s.ExitCode = t.ExitCode
	}
	if t.ExitMessage != "" {
		s.ExitMessage = t.ExitMessage
	}
	if t.Counts != nil {
		s.Counts = *t.Counts
	}
	s.UpdatedAt = t.At
}
