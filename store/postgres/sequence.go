package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/sequence"
)

// NextValue increments the counter with a single UPDATE ... RETURNING.
func (s *Store) NextValue(ctx context.Context, kind sequence.Kind) (int64, error) {
	var v int64
	err := s.pool.QueryRow(ctx,
		`UPDATE sequences SET count = count + 1 WHERE id = $1 RETURNING count`,
		string(kind),
	).Scan(&v)
	if err != nil {
		if isNoRows(err) || isUndefinedTable(err) {
			return 0, &jobrepo.SequenceError{Kind: string(kind)}
		}
		return 0, wrapErr("next value", err)
	}
	return v, nil
}

// Sequences returns every counter record.
func (s *Store) Sequences(ctx context.Context) (map[sequence.Kind]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, count FROM sequences`)
	if err != nil {
		return nil, wrapErr("list sequences", err)
	}

	out := make(map[sequence.Kind]int64)
	var (
		kind  string
		count int64
	)
	_, err = pgx.ForEachRow(rows, []any{&kind, &count}, func() error {
		out[sequence.Kind(kind)] = count
		return nil
	})
	if err != nil {
		return nil, wrapErr("list sequences scan", err)
	}
	return out, nil
}
