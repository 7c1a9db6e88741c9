package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/ext"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

// Compile-time interface checks.
var (
	_ ext.Extension             = (*Extension)(nil)
	_ ext.InstanceCreated       = (*Extension)(nil)
	_ ext.ExecutionCreated      = (*Extension)(nil)
	_ ext.ExecutionTransitioned = (*Extension)(nil)
	_ ext.StepExecutionCreated  = (*Extension)(nil)
	_ ext.StepTransitioned      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail entry.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// LogRecorder returns a Recorder that writes each event as one structured
// log line at a level matching its severity.
func LogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, evt *AuditEvent) error {
		level := slog.LevelInfo
		switch evt.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityCritical:
			level = slog.LevelError
		}
		logger.Log(ctx, level, "audit",
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("category", evt.Category),
			slog.String("outcome", evt.Outcome),
			slog.Any("metadata", evt.Metadata),
		)
		return nil
	})
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges jobrepo lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Instance hooks ──────────────────────────────────

// OnInstanceCreated implements ext.InstanceCreated.
func (e *Extension) OnInstanceCreated(ctx context.Context, inst *instance.JobInstance) error {
	return e.record(ctx, ActionInstanceCreated, SeverityInfo, OutcomeSuccess,
		ResourceInstance, inst.ID, CategoryInstance, "",
		"job_name", inst.JobName,
		"job_key", inst.JobKey,
	)
}

// ── Execution hooks ─────────────────────────────────

// OnExecutionCreated implements ext.ExecutionCreated.
func (e *Extension) OnExecutionCreated(ctx context.Context, exec *execution.JobExecution) error {
	return e.record(ctx, ActionExecutionCreated, SeverityInfo, OutcomeSuccess,
		ResourceExecution, exec.ID, CategoryExecution, "",
		"job_instance_id", exec.JobInstanceID,
		"status", string(exec.Status),
	)
}

// OnExecutionTransitioned implements ext.ExecutionTransitioned.
func (e *Extension) OnExecutionTransitioned(ctx context.Context, exec *execution.JobExecution, from status.Status) error {
	severity, outcome := classify(exec.Status)
	return e.record(ctx, ActionExecutionTransitioned, severity, outcome,
		ResourceExecution, exec.ID, CategoryExecution, exec.ExitMessage,
		"job_instance_id", exec.JobInstanceID,
		"from", string(from),
		"to", string(exec.Status),
		"exit_code", exec.ExitCode,
	)
}

// ── Step hooks ──────────────────────────────────────

// OnStepExecutionCreated implements ext.StepExecutionCreated.
func (e *Extension) OnStepExecutionCreated(ctx context.Context, se *step.StepExecution) error {
	return e.record(ctx, ActionStepCreated, SeverityInfo, OutcomeSuccess,
		ResourceStep, se.ID, CategoryStep, "",
		"job_execution_id", se.JobExecutionID,
		"step_name", se.StepName,
	)
}

// OnStepTransitioned implements ext.StepTransitioned.
func (e *Extension) OnStepTransitioned(ctx context.Context, se *step.StepExecution, from status.Status) error {
	severity, outcome := classify(se.Status)
	return e.record(ctx, ActionStepTransitioned, severity, outcome,
		ResourceStep, se.ID, CategoryStep, se.ExitMessage,
		"job_execution_id", se.JobExecutionID,
		"step_name", se.StepName,
		"from", string(from),
		"to", string(se.Status),
		"exit_code", se.ExitCode,
	)
}

// ── Internal helpers ────────────────────────────────

// classify maps the status a record moved into to a severity and outcome.
func classify(to status.Status) (severity, outcome string) {
	switch to {
	case status.Failed, status.Abandoned:
		return SeverityCritical, OutcomeFailure
	case status.Stopped, status.Unknown:
		return SeverityWarning, OutcomeSuccess
	default:
		return SeverityInfo, OutcomeSuccess
	}
}

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource string, resourceID int64, category, reason string,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: strconv.FormatInt(resourceID, 10),
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", evt.ResourceID,
			"error", recErr,
		)
	}
	return nil
}
