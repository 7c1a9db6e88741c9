// Package audithook is a jobrepo extension that bridges lifecycle events
// to an audit trail backend.
//
// Every instance, execution, and step lifecycle hook emits a structured
// audit event through the [Recorder] interface. The extension assigns
// severity levels (info for normal progress, warning for stops and lost
// contact, critical for failures and abandonment) and metadata (job name,
// statuses, exit code).
//
// # Usage
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return auditLog.Write(ctx, evt)
//	}))
//
// [LogRecorder] writes events to a *slog.Logger for deployments without a
// dedicated audit store.
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionExecutionTransitioned,
//	        audithook.ActionStepTransitioned,
//	    ),
//	)
package audithook
