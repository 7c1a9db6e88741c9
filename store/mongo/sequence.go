package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/sequence"
)

// NextValue increments the counter with a single FindOneAndUpdate. The
// record is never upserted here: a missing counter means Migrate has not
// run.
func (s *Store) NextValue(ctx context.Context, kind sequence.Kind) (int64, error) {
	col := s.db.Collection(colSequences)
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetUpsert(false)

	var m sequenceModel
	err := col.FindOneAndUpdate(ctx,
		bson.M{"_id": string(kind)},
		bson.M{"$inc": bson.M{"count": int64(1)}},
		opts,
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return 0, &jobrepo.SequenceError{Kind: string(kind)}
		}
		return 0, wrapErr("next value", err)
	}
	return m.Count, nil
}

// Sequences returns every counter record.
func (s *Store) Sequences(ctx context.Context) (map[sequence.Kind]int64, error) {
	cursor, err := s.db.Collection(colSequences).Find(ctx, bson.M{})
	if err != nil {
		return nil, wrapErr("list sequences", err)
	}
	defer cursor.Close(ctx)

	var models []sequenceModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, wrapErr("list sequences decode", err)
	}

	out := make(map[sequence.Kind]int64, len(models))
	for _, m := range models {
		out[sequence.Kind(m.Kind)] = m.Count
	}
	return out, nil
}
