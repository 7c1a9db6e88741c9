package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/jobkey"
	mw "github.com/xraph/jobrepo/middleware"
	"github.com/xraph/jobrepo/sequence"
)

const entityInstance = "job instance"

// CreateInstance allocates an ID and stores a new instance for
// (jobName, jobKey). A concurrent or earlier instance with the same pair
// yields *jobrepo.DuplicateInstanceError.
func (r *Repository) CreateInstance(ctx context.Context, jobName, jobKey string) (*instance.JobInstance, error) {
	if jobName == "" {
		return nil, fmt.Errorf("%w: job name is required", jobrepo.ErrInvalidArgument)
	}

	var inst *instance.JobInstance
	op := mw.Operation{Name: "CreateInstance", Entity: entityInstance, JobName: jobName}
	err := r.run(ctx, op, func(ctx context.Context) error {
		id, err := r.alloc.Next(ctx, sequence.JobInstance)
		if err != nil {
			return err
		}
		candidate := &instance.JobInstance{
			ID:        id,
			JobName:   jobName,
			JobKey:    jobKey,
			CreatedAt: r.now(),
		}
		if err := r.store.CreateInstance(ctx, candidate); err != nil {
			return err
		}
		inst = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.extensions.EmitInstanceCreated(ctx, inst)
	return inst, nil
}

// CreateInstanceForParameters derives the job key from the identifying
// parameters and creates the instance.
func (r *Repository) CreateInstanceForParameters(ctx context.Context, jobName string, params jobkey.Parameters) (*instance.JobInstance, error) {
	return r.CreateInstance(ctx, jobName, jobkey.Generate(params))
}

// GetOrCreateInstance returns the instance for (jobName, jobKey), creating
// it when absent. created reports whether this call stored it. A caller
// that loses a creation race receives the winner's instance.
func (r *Repository) GetOrCreateInstance(ctx context.Context, jobName, jobKey string) (inst *instance.JobInstance, created bool, err error) {
	inst, err = r.FindInstance(ctx, jobName, jobKey)
	if err == nil {
		return inst, false, nil
	}
	if !errors.Is(err, jobrepo.ErrInstanceNotFound) {
		return nil, false, err
	}

	inst, err = r.CreateInstance(ctx, jobName, jobKey)
	if err == nil {
		return inst, true, nil
	}
	if !errors.Is(err, jobrepo.ErrDuplicateInstance) {
		return nil, false, err
	}

	inst, err = r.FindInstance(ctx, jobName, jobKey)
	if err != nil {
		return nil, false, err
	}
	return inst, false, nil
}

// FindInstance returns the instance for (jobName, jobKey).
func (r *Repository) FindInstance(ctx context.Context, jobName, jobKey string) (*instance.JobInstance, error) {
	var inst *instance.JobInstance
	op := mw.Operation{Name: "FindInstance", Entity: entityInstance, JobName: jobName}
	err := r.run(ctx, op, func(ctx context.Context) error {
		var err error
		inst, err = r.store.FindInstance(ctx, jobName, jobKey)
		return err
	})
	return inst, err
}

// GetInstance returns the instance with the given ID.
func (r *Repository) GetInstance(ctx context.Context, instanceID int64) (*instance.JobInstance, error) {
	var inst *instance.JobInstance
	op := mw.Operation{Name: "GetInstance", Entity: entityInstance, ID: instanceID}
	err := r.run(ctx, op, func(ctx context.Context) error {
		var err error
		inst, err = r.store.GetInstance(ctx, instanceID)
		return err
	})
	return inst, err
}

// ListInstances returns instances of jobName, newest first.
func (r *Repository) ListInstances(ctx context.Context, jobName string, opts instance.ListOpts) ([]*instance.JobInstance, error) {
	if opts.Offset < 0 || opts.Limit < 0 {
		return nil, fmt.Errorf("%w: offset and limit must not be negative", jobrepo.ErrInvalidArgument)
	}

	var out []*instance.JobInstance
	op := mw.Operation{Name: "ListInstances", Entity: entityInstance, JobName: jobName}
	err := r.run(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = r.store.ListInstances(ctx, jobName, opts)
		return err
	})
	return out, err
}

// LastInstance returns the most recently created instance of jobName.
func (r *Repository) LastInstance(ctx context.Context, jobName string) (*instance.JobInstance, error) {
	insts, err := r.ListInstances(ctx, jobName, instance.ListOpts{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(insts) == 0 {
		return nil, jobrepo.ErrInstanceNotFound
	}
	return insts[0], nil
}

// JobNames returns the distinct job names, sorted.
func (r *Repository) JobNames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.run(ctx, mw.Operation{Name: "JobNames", Entity: entityInstance}, func(ctx context.Context) error {
		var err error
		names, err = r.store.JobNames(ctx)
		return err
	})
	return names, err
}

// CountInstances returns the number of instances of jobName.
func (r *Repository) CountInstances(ctx context.Context, jobName string) (int64, error) {
	var n int64
	op := mw.Operation{Name: "CountInstances", Entity: entityInstance, JobName: jobName}
	err := r.run(ctx, op, func(ctx context.Context) error {
		var err error
		n, err = r.store.CountInstances(ctx, jobName)
		return err
	})
	return n, err
}
