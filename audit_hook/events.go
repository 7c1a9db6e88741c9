package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionInstanceCreated       = "instance.created"
	ActionExecutionCreated      = "execution.created"
	ActionExecutionTransitioned = "execution.transitioned"
	ActionStepCreated           = "step.created"
	ActionStepTransitioned      = "step.transitioned"
)

// Audit event categories group related actions.
const (
	CategoryInstance  = "jobrepo.instance"
	CategoryExecution = "jobrepo.execution"
	CategoryStep      = "jobrepo.step"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceInstance  = "job_instance"
	ResourceExecution = "job_execution"
	ResourceStep      = "step_execution"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionInstanceCreated,
		ActionExecutionCreated,
		ActionExecutionTransitioned,
		ActionStepCreated,
		ActionStepTransitioned,
	}
}
