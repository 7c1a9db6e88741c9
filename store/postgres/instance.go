package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/instance"
)

const instanceColumns = `id, job_name, job_key, create_time`

func scanInstance(row pgx.Row) (*instance.JobInstance, error) {
	var inst instance.JobInstance
	if err := row.Scan(&inst.ID, &inst.JobName, &inst.JobKey, &inst.CreatedAt); err != nil {
		return nil, err
	}
	inst.CreatedAt = utc(inst.CreatedAt)
	return &inst, nil
}

// CreateInstance inserts a new job instance. The unique index on
// (job_name, job_key) decides concurrent races.
func (s *Store) CreateInstance(ctx context.Context, inst *instance.JobInstance) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_instance (`+instanceColumns+`) VALUES ($1, $2, $3, $4)`,
		inst.ID, inst.JobName, inst.JobKey, inst.CreatedAt,
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
	inst, err := scanInstance(s.pool.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM job_instance WHERE id = $1`, instanceID))
	if err != nil {
		if isNoRows(err) {
			return nil, jobrepo.ErrInstanceNotFound
		}
		return nil, wrapErr("get instance", err)
	}
	return inst, nil
}

// FindInstance retrieves the instance for a job name and key.
func (s *Store) FindInstance(ctx context.Context, jobName, jobKey string) (*instance.JobInstance, error) {
	inst, err := scanInstance(s.pool.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM job_instance WHERE job_name = $1 AND job_key = $2`,
		jobName, jobKey))
	if err != nil {
		if isNoRows(err) {
			return nil, jobrepo.ErrInstanceNotFound
		}
		return nil, wrapErr("find instance", err)
	}
	return inst, nil
}

// ListInstances returns instances of jobName ordered by id descending.
func (s *Store) ListInstances(ctx context.Context, jobName string, opts instance.ListOpts) ([]*instance.JobInstance, error) {
	var limit *int
	if opts.Limit > 0 {
		limit = &opts.Limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+instanceColumns+` FROM job_instance
		WHERE job_name = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3`,
		jobName, limit, opts.Offset,
	)
	if err != nil {
		return nil, wrapErr("list instances", err)
	}

	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*instance.JobInstance, error) {
		return scanInstance(row)
	})
	if err != nil {
		return nil, wrapErr("list instances scan", err)
	}
	return result, nil
}

// JobNames returns the distinct job names, sorted.
func (s *Store) JobNames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT job_name FROM job_instance ORDER BY job_name`)
	if err != nil {
		return nil, wrapErr("job names", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrapErr("job names scan", err)
	}
	return names, nil
}

// CountInstances returns the number of instances of jobName.
func (s *Store) CountInstances(ctx context.Context, jobName string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM job_instance WHERE job_name = $1`, jobName,
	).Scan(&count)
	if err != nil {
		return 0, wrapErr("count instances", err)
	}
	return count, nil
}
