package redis

import (
	"context"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

// CreateStepExecution stores the step as a Hash and indexes it under its
// job execution.
func (s *Store) CreateStepExecution(ctx context.Context, se *step.StepExecution) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.stepKey(se.ID), stepToMap(se))
	pipe.ZAdd(ctx, s.executionStepsKey(se.JobExecutionID), goredis.Z{
		Score:  float64(se.ID),
		Member: strconv.FormatInt(se.ID, 10),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return wrapErr("create step execution", err)
	}
	return nil
}

// GetStepExecution retrieves a step execution by ID.
func (s *Store) GetStepExecution(ctx context.Context, stepExecutionID int64) (*step.StepExecution, error) {
	vals, err := s.client.HGetAll(ctx, s.stepKey(stepExecutionID)).Result()
	if err != nil {
		return nil, wrapErr("get step execution", err)
	}
	if len(vals) == 0 {
		return nil, jobrepo.ErrStepExecutionNotFound
	}
	return mapToStep(vals)
}

// TransitionStepExecution applies t through the compare-and-set script.
func (s *Store) TransitionStepExecution(ctx context.Context, stepExecutionID int64, t step.Transition) (*step.StepExecution, error) {
	if !status.CanTransition(t.From, t.To) {
		return nil, &jobrepo.TransitionError{Entity: "step execution", ID: stepExecutionID, From: t.From, To: t.To}
	}

	args := transitionArgs(t.Transition)
	if t.Counts != nil {
		args = append(args, countPairs(*t.Counts)...)
	}
	vals, current, err := s.transition(ctx, s.stepKey(stepExecutionID), args)
	switch {
	case err != nil:
		return nil, wrapErr("transition step execution", err)
	case vals == nil && current == "":
		return nil, jobrepo.ErrStepExecutionNotFound
	case vals == nil:
		return nil, &jobrepo.TransitionError{Entity: "step execution", ID: stepExecutionID, From: status.Status(current), To: t.To}
	}
	return mapToStep(vals)
}

// ListStepExecutions returns the steps of a job execution in start order.
func (s *Store) ListStepExecutions(ctx context.Context, jobExecutionID int64) ([]*step.StepExecution, error) {
	ids, err := s.client.ZRange(ctx, s.executionStepsKey(jobExecutionID), 0, -1).Result()
	if err != nil {
		return nil, wrapErr("list step executions", err)
	}

	keys, err := s.memberKeys(ids, s.stepKey)
	if err != nil {
		return nil, err
	}
	hashes, err := s.loadHashes(ctx, "list step executions", keys)
	if err != nil {
		return nil, err
	}

	result := make([]*step.StepExecution, 0, len(hashes))
	for _, vals := range hashes {
		se, err := mapToStep(vals)
		if err != nil {
			return nil, err
		}
		result = append(result, se)
	}
	return result, nil
}
