// Package ext defines the extension system for jobrepo.
//
// Extensions are notified after the repository persists a change and can
// react to it: recording metrics, writing audit logs, forwarding events.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnExecutionTransitioned(ctx context.Context, exec *execution.JobExecution, from status.Status) error {
//	    log.Printf("execution %d: %s -> %s", exec.ID, from, exec.Status)
//	    return nil
//	}
//
// # Hooks
//
//   - [InstanceCreated]: a job instance was stored
//   - [ExecutionCreated]: a job execution was stored in STARTING
//   - [ExecutionTransitioned]: a job execution changed status
//   - [StepExecutionCreated]: a step execution was stored
//   - [StepTransitioned]: a step execution changed status
//   - [Shutdown]: the repository is closing
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Hook errors are logged and
// never returned to the caller.
package ext
