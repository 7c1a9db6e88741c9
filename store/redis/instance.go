package redis

import (
	"context"
	"sort"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/instance"
)

// CreateInstance claims the (jobName, jobKey) pair and writes the instance
// in one script.
func (s *Store) CreateInstance(ctx context.Context, inst *instance.JobInstance) error {
	keys := []string{
		s.instanceNamesKey(),
		s.instanceKey(inst.ID),
		s.jobInstancesKey(inst.JobName),
		s.jobNamesKey(),
	}
	created, err := createInstanceScript.Run(ctx, s.client, keys,
		uniqueField(inst.JobName, inst.JobKey),
		strconv.FormatInt(inst.ID, 10),
		inst.JobName,
		inst.JobKey,
		formatTime(inst.CreatedAt),
	).Int64()
	if err != nil {
		return wrapErr("create instance", err)
	}
	if created == 0 {
		return &jobrepo.DuplicateInstanceError{JobName: inst.JobName, JobKey: inst.JobKey}
	}
	return nil
}

// GetInstance retrieves an instance by ID.
func (s *Store) GetInstance(ctx context.Context, instanceID int64) (*instance.JobInstance, error) {
	vals, err := s.client.HGetAll(ctx, s.instanceKey(instanceID)).Result()
	if err != nil {
		return nil, wrapErr("get instance", err)
	}
	if len(vals) == 0 {
		return nil, jobrepo.ErrInstanceNotFound
	}
	return mapToInstance(vals)
}

// FindInstance resolves the instance ID through the uniqueness hash.
func (s *Store) FindInstance(ctx context.Context, jobName, jobKey string) (*instance.JobInstance, error) {
	id, err := s.client.HGet(ctx, s.instanceNamesKey(), uniqueField(jobName, jobKey)).Int64()
	if err != nil {
		if isNil(err) {
			return nil, jobrepo.ErrInstanceNotFound
		}
		return nil, wrapErr("find instance", err)
	}
	return s.GetInstance(ctx, id)
}

// ListInstances returns instances of jobName, newest first.
func (s *Store) ListInstances(ctx context.Context, jobName string, opts instance.ListOpts) ([]*instance.JobInstance, error) {
	start := int64(opts.Offset)
	stop := int64(-1)
	if opts.Limit > 0 {
		stop = start + int64(opts.Limit) - 1
	}

	ids, err := s.client.ZRangeArgs(ctx, goredis.ZRangeArgs{
		Key:   s.jobInstancesKey(jobName),
		Start: start,
		Stop:  stop,
		Rev:   true,
	}).Result()
	if err != nil {
		return nil, wrapErr("list instances", err)
	}

	keys, err := s.memberKeys(ids, s.instanceKey)
	if err != nil {
		return nil, err
	}
	hashes, err := s.loadHashes(ctx, "list instances", keys)
	if err != nil {
		return nil, err
	}

	result := make([]*instance.JobInstance, 0, len(hashes))
	for _, vals := range hashes {
		inst, err := mapToInstance(vals)
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	return result, nil
}

// loadHashes reads each key with HGETALL in one pipeline. Keys that no
// longer exist are skipped.
func (s *Store) loadHashes(ctx context.Context, op string, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGetAll(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, wrapErr(op, err)
	}

	out := make([]map[string]string, 0, len(cmds))
	for _, cmd := range cmds {
		if vals := cmd.Val(); len(vals) > 0 {
			out = append(out, vals)
		}
	}
	return out, nil
}

// JobNames returns the distinct job names, sorted.
func (s *Store) JobNames(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.jobNamesKey()).Result()
	if err != nil {
		return nil, wrapErr("job names", err)
	}
	sort.Strings(names)
	return names, nil
}

// CountInstances returns the number of instances of jobName.
func (s *Store) CountInstances(ctx context.Context, jobName string) (int64, error) {
	n, err := s.client.ZCard(ctx, s.jobInstancesKey(jobName)).Result()
	if err != nil {
		return 0, wrapErr("count instances", err)
	}
	return n, nil
}
