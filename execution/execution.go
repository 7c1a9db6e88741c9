package execution

import (
	"time"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/jobkey"
	"github.com/xraph/jobrepo/status"
)

// JobExecution is one attempt to run a job instance.
type JobExecution struct {
	jobrepo.Entity

	ID            int64         `json:"id"`
	JobInstanceID int64         `json:"job_instance_id"`
	Status        status.Status `json:"status"`
	StartTime     *time.Time    `json:"start_time,omitempty"`
	EndTime       *time.Time    `json:"end_time,omitempty"`
	ExitCode      string        `json:"exit_code,omitempty"`
	ExitMessage   string        `json:"exit_message,omitempty"`

	// Parameters are the launch parameters, identifying and not.
	Parameters jobkey.Parameters `json:"parameters,omitempty"`
}

// Apply copies a resolved transition onto e. Nil timestamps leave the
// existing values in place.
func (e *JobExecution) Apply(t status.Transition) {
	e.Status = t.To
	if t.StartTime != nil {
		e.StartTime = t.StartTime
	}
	if t.EndTime != nil {
		e.EndTime = t.EndTime
	}
	if t.ExitCode != "" {
		e.ExitCode = t.ExitCode
	}
	if t.ExitMessage != "" {
		e.ExitMessage = t.ExitMessage
	}
	e.UpdatedAt = t.At
}
