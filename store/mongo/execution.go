package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/status"
)

// CreateExecution inserts a new job execution.
func (s *Store) CreateExecution(ctx context.Context, exec *execution.JobExecution) error {
	if _, err := s.db.Collection(colExecutions).InsertOne(ctx, toExecutionModel(exec)); err != nil {
		return wrapErr("create execution", err)
	}
	return nil
}

// GetExecution retrieves a job execution by ID.
func (s *Store) GetExecution(ctx context.Context, executionID int64) (*execution.JobExecution, error) {
	var m executionModel
	err := s.db.Collection(colExecutions).FindOne(ctx, bson.M{"id": executionID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, jobrepo.ErrExecutionNotFound
		}
		return nil, wrapErr("get execution", err)
	}
	return decodeExecution(&m)
}

// TransitionExecution applies t with a FindOneAndUpdate filtered on the
// expected current status.
func (s *Store) TransitionExecution(ctx context.Context, executionID int64, t status.Transition) (*execution.JobExecution, error) {
	if !status.CanTransition(t.From, t.To) {
		return nil, &jobrepo.TransitionError{Entity: "job execution", ID: executionID, From: t.From, To: t.To}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m executionModel
	err := s.db.Collection(colExecutions).FindOneAndUpdate(ctx,
		bson.M{"id": executionID, "status": string(t.From)},
		transitionUpdate(t, nil),
		opts,
	).Decode(&m)
	if err == nil {
		return decodeExecution(&m)
	}
	if !isNoDocuments(err) {
		return nil, wrapErr("transition execution", err)
	}

	current, getErr := s.GetExecution(ctx, executionID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &jobrepo.TransitionError{Entity: "job execution", ID: executionID, From: current.Status, To: t.To}
}

// ListExecutions returns the executions of an instance, newest first.
func (s *Store) ListExecutions(ctx context.Context, instanceID int64) ([]*execution.JobExecution, error) {
	return s.findExecutions(ctx, bson.M{"jobInstanceId": instanceID}, "list executions")
}

// ListExecutionsByStatus returns the executions of an instance in st.
func (s *Store) ListExecutionsByStatus(ctx context.Context, instanceID int64, st status.Status) ([]*execution.JobExecution, error) {
	return s.findExecutions(ctx, bson.M{"jobInstanceId": instanceID, "status": string(st)}, "list executions by status")
}

// ListRunningExecutions returns running executions of the given instances.
func (s *Store) ListRunningExecutions(ctx context.Context, instanceIDs []int64) ([]*execution.JobExecution, error) {
	if len(instanceIDs) == 0 {
		return []*execution.JobExecution{}, nil
	}
	filter := bson.M{
		"jobInstanceId": bson.M{"$in": instanceIDs},
		"status":        bson.M{"$in": statusStrings(status.Running())},
	}
	return s.findExecutions(ctx, filter, "list running executions")
}

func (s *Store) findExecutions(ctx context.Context, filter bson.M, op string) ([]*execution.JobExecution, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "id", Value: -1}})
	cursor, err := s.db.Collection(colExecutions).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer cursor.Close(ctx)

	var models []executionModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, wrapErr(op+" decode", err)
	}

	result := make([]*execution.JobExecution, 0, len(models))
	for i := range models {
		e, err := decodeExecution(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

func decodeExecution(m *executionModel) (*execution.JobExecution, error) {
	e, err := fromExecutionModel(m)
	if err != nil {
		return nil, fmt.Errorf("jobrepo/mongo: decode execution %d: %w", m.ID, err)
	}
	return e, nil
}

// transitionUpdate builds the $set document for t merged with extra. Nil
// timestamps and empty exit fields leave stored values untouched.
func transitionUpdate(t status.Transition, extra bson.M) bson.M {
	set := bson.M{
		"status":      string(t.To),
		"lastUpdated": t.At,
	}
	if t.StartTime != nil {
		set["startTime"] = *t.StartTime
	}
	if t.EndTime != nil {
		set["endTime"] = *t.EndTime
	}
	if t.ExitCode != "" {
		set["exitCode"] = t.ExitCode
	}
	if t.ExitMessage != "" {
		set["exitMessage"] = t.ExitMessage
	}
	for k, v := range extra {
		set[k] = v
	}
	return bson.M{"$set": set}
}

func statusStrings(sts []status.Status) []string {
	out := make([]string, len(sts))
	for i, st := range sts {
		out[i] = string(st)
	}
	return out
}
