package jobrepo

import "errors"

var (
	// Store errors.
	ErrNoStore             = errors.New("jobrepo: no store configured")
	ErrStoreNotInitialized = errors.New("jobrepo: store not initialized")
	ErrBackendUnavailable  = errors.New("jobrepo: backend unavailable")
	ErrUnknownSequence     = errors.New("jobrepo: unknown sequence kind")
	ErrInvalidArgument     = errors.New("jobrepo: invalid argument")
	ErrIndexConflict       = errors.New("jobrepo: conflicting index")

	// Not found errors.
	ErrInstanceNotFound      = errors.New("jobrepo: job instance not found")
	ErrExecutionNotFound     = errors.New("jobrepo: job execution not found")
	ErrStepExecutionNotFound = errors.New("jobrepo: step execution not found")
	ErrReferenceNotFound     = errors.New("jobrepo: referenced entity not found")

	// Conflict errors.
	ErrDuplicateInstance       = errors.New("jobrepo: job instance already exists")
	ErrExecutionAlreadyRunning = errors.New("jobrepo: job execution already running")
	ErrInstanceAlreadyComplete = errors.New("jobrepo: job instance already complete")

	// State errors.
	ErrInvalidTransition = errors.New("jobrepo: invalid status transition")
)
