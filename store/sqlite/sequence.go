package sqlite

import (
	"context"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/sequence"
)

// NextValue increments the counter with a single UPDATE ... RETURNING.
func (s *Store) NextValue(ctx context.Context, kind sequence.Kind) (int64, error) {
	var v int64
	err := s.db.GetContext(ctx, &v,
		`UPDATE sequences SET count = count + 1 WHERE id = ? RETURNING count`, string(kind))
	if err != nil {
		if isNoRows(err) || isNoSuchTable(err) {
			return 0, &jobrepo.SequenceError{Kind: string(kind)}
		}
		return 0, wrapErr("next value", err)
	}
	return v, nil
}

// Sequences returns every counter record.
func (s *Store) Sequences(ctx context.Context) (map[sequence.Kind]int64, error) {
	var rows []struct {
		ID    string `db:"id"`
		Count int64  `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, count FROM sequences`); err != nil {
		return nil, wrapErr("list sequences", err)
	}

	out := make(map[sequence.Kind]int64, len(rows))
	for _, r := range rows {
		out[sequence.Kind(r.ID)] = r.Count
	}
	return out, nil
}
