package bunstore

import (
	"context"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/instance"
)

// CreateInstance inserts a new job instance. The unique index on
// (job_name, job_key) decides concurrent races.
func (s *Store) CreateInstance(ctx context.Context, inst *instance.JobInstance) error {
	_, err := s.db.NewInsert().Model(toInstanceModel(inst)).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return &jobrepo.DuplicateInstanceError{JobName: inst.JobName, JobKey: inst.JobKey}
		}
		return wrapErr("create instance", err)
	}
	return nil
}

// GetInstance retrieves a job instance by ID.
func (s *Store) GetInstance(ctx context.Context, instanceID int64) (*instance.JobInstance, error) {
	m := new(instanceModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", instanceID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, jobrepo.ErrInstanceNotFound
		}
		return nil, wrapErr("get instance", err)
	}
	return fromInstanceModel(m), nil
}

// FindInstance retrieves the instance for a job name and key.
func (s *Store) FindInstance(ctx context.Context, jobName, jobKey string) (*instance.JobInstance, error) {
	m := new(instanceModel)
	err := s.db.NewSelect().Model(m).
		Where("job_name = ?", jobName).
		Where("job_key = ?", jobKey).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, jobrepo.ErrInstanceNotFound
		}
		return nil, wrapErr("find instance", err)
	}
	return fromInstanceModel(m), nil
}

// ListInstances returns instances of jobName ordered by id descending.
func (s *Store) ListInstances(ctx context.Context, jobName string, opts instance.ListOpts) ([]*instance.JobInstance, error) {
	var models []instanceModel
	q := s.db.NewSelect().Model(&models).
		Where("job_name = ?", jobName).
		OrderExpr("id DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, wrapErr("list instances", err)
	}

	result := make([]*instance.JobInstance, 0, len(models))
	for i := range models {
		result = append(result, fromInstanceModel(&models[i]))
	}
	return result, nil
}

// JobNames returns the distinct job names, sorted.
func (s *Store) JobNames(ctx context.Context) ([]string, error) {
	names := []string{}
	err := s.db.NewSelect().
		Model((*instanceModel)(nil)).
		ColumnExpr("DISTINCT job_name").
		OrderExpr("job_name").
		Scan(ctx, &names)
	if err != nil {
		return nil, wrapErr("job names", err)
	}
	return names, nil
}

// CountInstances returns the number of instances of jobName.
func (s *Store) CountInstances(ctx context.Context, jobName string) (int64, error) {
	n, err := s.db.NewSelect().
		Model((*instanceModel)(nil)).
		Where("job_name = ?", jobName).
		Count(ctx)
	if err != nil {
		return 0, wrapErr("count instances", err)
	}
	return int64(n), nil
}
