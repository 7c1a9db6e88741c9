package instance

import "context"

// ListOpts controls pagination for instance list queries.
type ListOpts struct {
	// Offset is the number of instances to skip.
	Offset int
	// Limit is the maximum number of instances to return. Zero means no limit.
	Limit int
}

// Store defines the persistence contract for job instances.
type Store interface {
	// CreateInstance persists a new instance whose ID has already been
	// allocated. A (JobName, JobKey) collision returns a
	// *jobrepo.DuplicateInstanceError and leaves the stored record intact.
	CreateInstance(ctx context.Context, inst *JobInstance) error

	// GetInstance retrieves an instance by ID.
	GetInstance(ctx context.Context, instanceID int64) (*JobInstance, error)

	// FindInstance retrieves the instance for a job name and key.
	FindInstance(ctx context.Context, jobName, jobKey string) (*JobInstance, error)

	// ListInstances returns instances of jobName ordered by ID descending.
	ListInstances(ctx context.Context, jobName string, opts ListOpts) ([]*JobInstance, error)

	// JobNames returns the distinct job names, sorted.
	JobNames(ctx context.Context) ([]string, error)

	// CountInstances returns the number of instances of jobName.
	CountInstances(ctx context.Context, jobName string) (int64, error)
}
