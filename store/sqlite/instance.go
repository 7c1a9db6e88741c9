package sqlite

import (
	"context"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/instance"
)

const instanceColumns = `id, job_name, job_key, create_time`

// CreateInstance inserts a new job instance. The unique index on
// (job_name, job_key) decides concurrent races.
func (s *Store) CreateInstance(ctx context.Context, inst *instance.JobInstance) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO job_instance (`+instanceColumns+`)
		VALUES (:id, :job_name, :job_key, :create_time)`,
		&instanceRow{ID: inst.ID, JobName: inst.JobName, JobKey: inst.JobKey, CreateTime: toNanos(inst.CreatedAt)},
	)
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
	var r instanceRow
	err := s.db.GetContext(ctx, &r, `SELECT `+instanceColumns+` FROM job_instance WHERE id = ?`, instanceID)
	if err != nil {
		if isNoRows(err) {
			return nil, jobrepo.ErrInstanceNotFound
		}
		return nil, wrapErr("get instance", err)
	}
	return fromInstanceRow(&r), nil
}

// FindInstance retrieves the instance for a job name and key.
func (s *Store) FindInstance(ctx context.Context, jobName, jobKey string) (*instance.JobInstance, error) {
	var r instanceRow
	err := s.db.GetContext(ctx, &r,
		`SELECT `+instanceColumns+` FROM job_instance WHERE job_name = ? AND job_key = ?`,
		jobName, jobKey)
	if err != nil {
		if isNoRows(err) {
			return nil, jobrepo.ErrInstanceNotFound
		}
		return nil, wrapErr("find instance", err)
	}
	return fromInstanceRow(&r), nil
}

// ListInstances returns instances of jobName ordered by id descending.
func (s *Store) ListInstances(ctx context.Context, jobName string, opts instance.ListOpts) ([]*instance.JobInstance, error) {
	limit := -1
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	var rows []instanceRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+instanceColumns+` FROM job_instance
		WHERE job_name = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?`,
		jobName, limit, opts.Offset)
	if err != nil {
		return nil, wrapErr("list instances", err)
	}

	result := make([]*instance.JobInstance, 0, len(rows))
	for i := range rows {
		result = append(result, fromInstanceRow(&rows[i]))
	}
	return result, nil
}

// JobNames returns the distinct job names, sorted.
func (s *Store) JobNames(ctx context.Context) ([]string, error) {
	names := []string{}
	if err := s.db.SelectContext(ctx, &names,
		`SELECT DISTINCT job_name FROM job_instance ORDER BY job_name`); err != nil {
		return nil, wrapErr("job names", err)
	}
	return names, nil
}

// CountInstances returns the number of instances of jobName.
func (s *Store) CountInstances(ctx context.Context, jobName string) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM job_instance WHERE job_name = ?`, jobName); err != nil {
		return 0, wrapErr("count instances", err)
	}
	return count, nil
}
