package mongo

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/instance"
)

// CreateInstance inserts a new job instance. The unique (jobName, jobKey)
// index decides concurrent races.
func (s *Store) CreateInstance(ctx context.Context, inst *instance.JobInstance) error {
	_, err := s.db.Collection(colInstances).InsertOne(ctx, toInstanceModel(inst))
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return &jobrepo.DuplicateInstanceError{JobName: inst.JobName, JobKey: inst.JobKey}
		}
		return wrapErr("create instance", err)
	}
	return nil
}

// GetInstance retrieves a job instance by ID.
func (s *Store) GetInstance(ctx context.Context, instanceID int64) (*instance.JobInstance, error) {
	return s.findOneInstance(ctx, bson.M{"id": instanceID}, "get instance")
}

// FindInstance retrieves the instance for a job name and key.
func (s *Store) FindInstance(ctx context.Context, jobName, jobKey string) (*instance.JobInstance, error) {
	return s.findOneInstance(ctx, bson.M{"jobName": jobName, "jobKey": jobKey}, "find instance")
}

func (s *Store) findOneInstance(ctx context.Context, filter bson.M, op string) (*instance.JobInstance, error) {
	var m instanceModel
	err := s.db.Collection(colInstances).FindOne(ctx, filter).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, jobrepo.ErrInstanceNotFound
		}
		return nil, wrapErr(op, err)
	}
	return fromInstanceModel(&m), nil
}

// ListInstances returns instances of jobName ordered by id descending.
func (s *Store) ListInstances(ctx context.Context, jobName string, opts instance.ListOpts) ([]*instance.JobInstance, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "id", Value: -1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colInstances).Find(ctx, bson.M{"jobName": jobName}, findOpts)
	if err != nil {
		return nil, wrapErr("list instances", err)
	}
	defer cursor.Close(ctx)

	var models []instanceModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, wrapErr("list instances decode", err)
	}

	result := make([]*instance.JobInstance, 0, len(models))
	for i := range models {
		result = append(result, fromInstanceModel(&models[i]))
	}
	return result, nil
}

// JobNames returns the distinct job names, sorted.
func (s *Store) JobNames(ctx context.Context) ([]string, error) {
	res := s.db.Collection(colInstances).Distinct(ctx, "jobName", bson.M{})
	if err := res.Err(); err != nil {
		return nil, wrapErr("job names", err)
	}
	var names []string
	if err := res.Decode(&names); err != nil {
		return nil, wrapErr("job names decode", err)
	}
	sort.Strings(names)
	return names, nil
}

// CountInstances returns the number of instances of jobName.
func (s *Store) CountInstances(ctx context.Context, jobName string) (int64, error) {
	count, err := s.db.Collection(colInstances).CountDocuments(ctx, bson.M{"jobName": jobName})
	if err != nil {
		return 0, wrapErr("count instances", err)
	}
	return count, nil
}
