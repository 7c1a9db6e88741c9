package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/sequence"
)

// NextValue increments the counter for kind inside a Lua script so the
// existence check and INCR are one atomic step.
func (s *Store) NextValue(ctx context.Context, kind sequence.Kind) (int64, error) {
	v, err := nextValueScript.Run(ctx, s.client, []string{s.sequenceKey(kind)}).Int64()
	if err != nil {
		return 0, wrapErr("next value", err)
	}
	if v < 0 {
		return 0, &jobrepo.SequenceError{Kind: string(kind)}
	}
	return v, nil
}

// Sequences returns the current value of every seeded counter.
func (s *Store) Sequences(ctx context.Context) (map[sequence.Kind]int64, error) {
	kinds := sequence.Kinds()
	keys := make([]string, len(kinds))
	for i, k := range kinds {
		keys[i] = s.sequenceKey(k)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*goredis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !isNil(err) {
		return nil, wrapErr("sequences", err)
	}

	out := make(map[sequence.Kind]int64, len(kinds))
	for i, cmd := range cmds {
		v, err := cmd.Int64()
		if isNil(err) {
			continue
		}
		if err != nil {
			return nil, wrapErr("sequences", err)
		}
		out[kinds[i]] = v
	}
	return out, nil
}
