package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/status"
)

// CreateExecution stores the execution as a Hash and indexes it under its
// instance.
func (s *Store) CreateExecution(ctx context.Context, exec *execution.JobExecution) error {
	fields, err := executionToMap(exec)
	if err != nil {
		return fmt.Errorf("jobrepo/redis: create execution: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.executionKey(exec.ID), fields)
	pipe.ZAdd(ctx, s.instanceExecutionsKey(exec.JobInstanceID), goredis.Z{
		Score:  float64(exec.ID),
		Member: strconv.FormatInt(exec.ID, 10),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return wrapErr("create execution", err)
	}
	return nil
}

// GetExecution retrieves a job execution by ID.
func (s *Store) GetExecution(ctx context.Context, executionID int64) (*execution.JobExecution, error) {
	vals, err := s.client.HGetAll(ctx, s.executionKey(executionID)).Result()
	if err != nil {
		return nil, wrapErr("get execution", err)
	}
	if len(vals) == 0 {
		return nil, jobrepo.ErrExecutionNotFound
	}
	return mapToExecution(vals)
}

// TransitionExecution applies t through the compare-and-set script.
func (s *Store) TransitionExecution(ctx context.Context, executionID int64, t status.Transition) (*execution.JobExecution, error) {
	if !status.CanTransition(t.From, t.To) {
		return nil, &jobrepo.TransitionError{Entity: "job execution", ID: executionID, From: t.From, To: t.To}
	}

	vals, current, err := s.transition(ctx, s.executionKey(executionID), transitionArgs(t))
	switch {
	case err != nil:
		return nil, wrapErr("transition execution", err)
	case vals == nil && current == "":
		return nil, jobrepo.ErrExecutionNotFound
	case vals == nil:
		return nil, &jobrepo.TransitionError{Entity: "job execution", ID: executionID, From: status.Status(current), To: t.To}
	}
	return mapToExecution(vals)
}

// transition runs the CAS script against key with args from
// transitionArgs. It returns the updated record, or the current status
// when it did not match, or neither when the record is missing.
func (s *Store) transition(ctx context.Context, key string, args []interface{}) (map[string]string, string, error) {
	res, err := transitionScript.Run(ctx, s.client, []string{key}, args...).Result()
	if err != nil {
		return nil, "", err
	}
	switch v := res.(type) {
	case int64:
		return nil, "", nil
	case string:
		return nil, v, nil
	case []interface{}:
		return pairsToMap(v), "", nil
	default:
		return nil, "", fmt.Errorf("unexpected script reply %T", res)
	}
}

// ListExecutions returns the executions of an instance, newest first.
func (s *Store) ListExecutions(ctx context.Context, instanceID int64) ([]*execution.JobExecution, error) {
	return s.instanceExecutions(ctx, "list executions", instanceID, func(*execution.JobExecution) bool { return true })
}

// ListExecutionsByStatus returns the executions of an instance in st.
func (s *Store) ListExecutionsByStatus(ctx context.Context, instanceID int64, st status.Status) ([]*execution.JobExecution, error) {
	return s.instanceExecutions(ctx, "list executions by status", instanceID, func(e *execution.JobExecution) bool {
		return e.Status == st
	})
}

// ListRunningExecutions returns running executions of the given instances.
func (s *Store) ListRunningExecutions(ctx context.Context, instanceIDs []int64) ([]*execution.JobExecution, error) {
	result := make([]*execution.JobExecution, 0)
	for _, id := range instanceIDs {
		execs, err := s.instanceExecutions(ctx, "list running executions", id, func(e *execution.JobExecution) bool {
			return e.Status.IsRunning()
		})
		if err != nil {
			return nil, err
		}
		result = append(result, execs...)
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].ID > result[k].ID
	})
	return result, nil
}

func (s *Store) instanceExecutions(ctx context.Context, op string, instanceID int64, keep func(*execution.JobExecution) bool) ([]*execution.JobExecution, error) {
	ids, err := s.client.ZRevRange(ctx, s.instanceExecutionsKey(instanceID), 0, -1).Result()
	if err != nil {
		return nil, wrapErr(op, err)
	}

	keys, err := s.memberKeys(ids, s.executionKey)
	if err != nil {
		return nil, err
	}
	hashes, err := s.loadHashes(ctx, op, keys)
	if err != nil {
		return nil, err
	}

	result := make([]*execution.JobExecution, 0, len(hashes))
	for _, vals := range hashes {
		e, err := mapToExecution(vals)
		if err != nil {
			return nil, err
		}
		if keep(e) {
			result = append(result, e)
		}
	}
	return result, nil
}

// memberKeys turns sorted-set members into record keys.
func (s *Store) memberKeys(ids []string, key func(int64) string) ([]string, error) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("jobrepo/redis: parse member id: %w", err)
		}
		keys = append(keys, key(n))
	}
	return keys, nil
}
