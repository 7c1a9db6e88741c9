package bunstore

import (
	"context"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/sequence"
)

// NextValue increments the counter with a single UPDATE ... RETURNING.
func (s *Store) NextValue(ctx context.Context, kind sequence.Kind) (int64, error) {
	m := new(sequenceModel)
	res, err := s.db.NewUpdate().
		Model(m).
		Set("count = count + 1").
		Where("id = ?", string(kind)).
		Returning("count").
		Exec(ctx)
	if err != nil {
		if isNoRows(err) || isUndefinedTable(err) {
			return 0, &jobrepo.SequenceError{Kind: string(kind)}
		}
		return 0, wrapErr("next value", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, &jobrepo.SequenceError{Kind: string(kind)}
	}
	return m.Count, nil
}

// Sequences returns every counter record.
func (s *Store) Sequences(ctx context.Context) (map[sequence.Kind]int64, error) {
	var models []sequenceModel
	if err := s.db.NewSelect().Model(&models).Scan(ctx); err != nil {
		return nil, wrapErr("list sequences", err)
	}

	out := make(map[sequence.Kind]int64, len(models))
	for _, m := range models {
		out[sequence.Kind(m.ID)] = m.Count
	}
	return out, nil
}
