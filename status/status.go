// Package status defines the lifecycle status shared by job executions and
// step executions, and the forward-only graph of transitions between them.
//
//	STARTING → STARTED → STOPPING → STOPPED
//	STARTING → STOPPING
//	STARTED  → COMPLETED
//	STOPPING → COMPLETED
//	any non-terminal → FAILED | ABANDONED
//	STARTING, STARTED, STOPPING → UNKNOWN
//
// STOPPED, COMPLETED, FAILED and ABANDONED are terminal. A record in a
// terminal status is immutable.
package status

import (
	"fmt"
	"time"
)

// Status is the lifecycle status of an execution.
type Status string

const (
	// Starting means the execution record exists but work has not begun.
	Starting Status = "STARTING"
	// Started means a worker is running the execution.
	Started Status = "STARTED"
	// Stopping means a stop was requested and the worker is winding down.
	Stopping Status = "STOPPING"
	// Stopped means the execution stopped on request.
	Stopped Status = "STOPPED"
	// Completed means the execution finished successfully.
	Completed Status = "COMPLETED"
	// Failed means the execution terminated with an error.
	Failed Status = "FAILED"
	// Abandoned means an operator gave up on the execution.
	Abandoned Status = "ABANDONED"
	// Unknown means the outcome could not be determined.
	Unknown Status = "UNKNOWN"
)

var all = []Status{Starting, Started, Stopping, Stopped, Completed, Failed, Abandoned, Unknown}

var transitions = map[Status][]Status{
	Starting: {Started, Stopping, Failed, Abandoned, Unknown},
	Started:  {Stopping, Completed, Failed, Abandoned, Unknown},
	Stopping: {Stopped, Completed, Failed, Abandoned, Unknown},
	Unknown:  {Failed, Abandoned},
}

// All returns every status in declaration order.
func All() []Status {
	out := make([]Status, len(all))
	copy(out, all)
	return out
}

// Running returns the statuses that count as in flight.
func Running() []Status {
	return []Status{Starting, Started, Stopping}
}

// Parse converts s into a Status.
func Parse(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("status: unknown status %q", s)
	}
	return st, nil
}

// Valid reports whether s is a declared status.
func (s Status) Valid() bool {
	for _, v := range all {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	switch s {
	case Stopped, Completed, Failed, Abandoned:
		return true
	}
	return false
}

// IsRunning reports whether s is STARTING, STARTED or STOPPING.
func (s Status) IsRunning() bool {
	switch s {
	case Starting, Started, Stopping:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// CanTransition reports whether the graph allows from → to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Update is a caller's request to move an execution to a new status.
// Nil timestamps are filled in by Resolve.
type Update struct {
	To          Status
	StartTime   *time.Time
	EndTime     *time.Time
	ExitCode    string
	ExitMessage string
}

// Transition is a fully resolved status change applied by a store as a
// compare-and-set against From.
type Transition struct {
	From        Status
	To          Status
	StartTime   *time.Time
	EndTime     *time.Time
	ExitCode    string
	ExitMessage string
	At          time.Time
}

// Resolve turns u into a Transition from the persisted status. StartTime
// defaults to now when entering STARTED on a record that has none, EndTime
// defaults to now when entering a terminal status.
func (u Update) Resolve(from Status, hasStart bool, now time.Time) Transition {
	t := Transition{
		From:        from,
		To:          u.To,
		StartTime:   u.StartTime,
		EndTime:     u.EndTime,
		ExitCode:    u.ExitCode,
		ExitMessage: u.ExitMessage,
		At:          now,
	}
	if t.To == Started && t.StartTime == nil && !hasStart {
		n := now
		t.StartTime = &n
	}
	if t.To.IsTerminal() && t.EndTime == nil {
		n := now
		t.EndTime = &n
	}
	if t.ExitCode == "" && t.To.IsTerminal() {
		t.ExitCode = string(t.To)
	}
	return t
}
