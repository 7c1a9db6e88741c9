package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

// CreateStepExecution inserts a new step execution.
func (s *Store) CreateStepExecution(ctx context.Context, se *step.StepExecution) error {
	if _, err := s.db.Collection(colSteps).InsertOne(ctx, toStepModel(se)); err != nil {
		return wrapErr("create step execution", err)
	}
	return nil
}

// GetStepExecution retrieves a step execution by ID.
func (s *Store) GetStepExecution(ctx context.Context, stepExecutionID int64) (*step.StepExecution, error) {
	var m stepModel
	err := s.db.Collection(colSteps).FindOne(ctx, bson.M{"id": stepExecutionID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, jobrepo.ErrStepExecutionNotFound
		}
		return nil, wrapErr("get step execution", err)
	}
	return fromStepModel(&m), nil
}

// TransitionStepExecution applies t if the stored status equals t.From.
func (s *Store) TransitionStepExecution(ctx context.Context, stepExecutionID int64, t step.Transition) (*step.StepExecution, error) {
	if !status.CanTransition(t.From, t.To) {
		return nil, &jobrepo.TransitionError{Entity: "step execution", ID: stepExecutionID, From: t.From, To: t.To}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m stepModel
	err := s.db.Collection(colSteps).FindOneAndUpdate(ctx,
		bson.M{"id": stepExecutionID, "status": string(t.From)},
		transitionUpdate(t.Transition, countsSet(t.Counts)),
		opts,
	).Decode(&m)
	if err == nil {
		return fromStepModel(&m), nil
	}
	if !isNoDocuments(err) {
		return nil, wrapErr("transition step execution", err)
	}

	current, getErr := s.GetStepExecution(ctx, stepExecutionID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &jobrepo.TransitionError{Entity: "step execution", ID: stepExecutionID, From: current.Status, To: t.To}
}

// ListStepExecutions returns the steps of a job execution in start order.
func (s *Store) ListStepExecutions(ctx context.Context, jobExecutionID int64) ([]*step.StepExecution, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "id", Value: 1}})
	cursor, err := s.db.Collection(colSteps).Find(ctx, bson.M{"jobExecutionId": jobExecutionID}, findOpts)
	if err != nil {
		return nil, wrapErr("list step executions", err)
	}
	defer cursor.Close(ctx)

	var models []stepModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, wrapErr("list step executions decode", err)
	}

	result := make([]*step.StepExecution, 0, len(models))
	for i := range models {
		result = append(result, fromStepModel(&models[i]))
	}
	return result, nil
}
