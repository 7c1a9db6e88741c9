package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/schema"
	"github.com/xraph/jobrepo/sequence"
	"github.com/xraph/jobrepo/step"
)

// Compile-time interface checks.
var (
	_ sequence.Store   = (*Store)(nil)
	_ instance.Store   = (*Store)(nil)
	_ execution.Store  = (*Store)(nil)
	_ step.Store       = (*Store)(nil)
	_ schema.Inspector = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithPrefix sets the key prefix. Stores with different prefixes share a
// Redis database without seeing each other's records. A prefix without a
// hash tag is wrapped in one, so "app:" becomes "{app}:".
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = hashTagged(prefix) }
}

// WithOwnedClient makes Close close the client.
func WithOwnedClient() Option {
	return func(s *Store) { s.owned = true }
}

// Store implements the composite store.Store interface backed by Redis.
type Store struct {
	client goredis.UniversalClient
	prefix string
	owned  bool
	logger *slog.Logger
}

// New creates a new Redis-backed store.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: defaultPrefix, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.UniversalClient { return s.client }

// Migrate seeds missing counters with SETNX and records index declarations
// with HSETNX. Existing counters are never reset.
func (s *Store) Migrate(ctx context.Context) error {
	for _, kind := range sequence.Kinds() {
		created, err := s.client.SetNX(ctx, s.sequenceKey(kind), 0, 0).Result()
		if err != nil {
			return wrapErr("seed sequence", err)
		}
		if created {
			s.logger.Info("jobrepo/redis: seeded sequence", slog.String("kind", string(kind)))
		}
	}

	for _, c := range schema.Collections() {
		key := s.indexesKey(c)
		existing, err := s.client.HVals(ctx, key).Result()
		if err != nil {
			return wrapErr("list indexes", err)
		}
		specs := make(map[string]struct{}, len(existing))
		for _, v := range existing {
			specs[v] = struct{}{}
		}

		for _, idx := range schema.IndexesFor(c) {
			if _, ok := specs[idx.Key()]; ok {
				continue
			}
			created, err := s.client.HSetNX(ctx, key, idx.Name, idx.Key()).Result()
			if err != nil {
				return wrapErr("create index", err)
			}
			if created {
				s.logger.Info("jobrepo/redis: created index",
					slog.String("collection", string(c)),
					slog.String("index", idx.Name),
				)
			}
		}
	}
	return nil
}

// ListIndexes returns the recorded index names per collection.
func (s *Store) ListIndexes(ctx context.Context) (map[schema.Collection][]string, error) {
	out := make(map[schema.Collection][]string)
	for _, c := range schema.Collections() {
		names, err := s.client.HKeys(ctx, s.indexesKey(c)).Result()
		if err != nil {
			return nil, wrapErr("list indexes", err)
		}
		if len(names) == 0 {
			continue
		}
		sort.Strings(names)
		out[c] = names
	}
	return out, nil
}

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

// Close closes the client if the store owns it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

// isNil reports a missing key or field.
func isNil(err error) bool {
	return errors.Is(err, goredis.Nil)
}

// wrapErr classifies err and adds the backend prefix.
func wrapErr(op string, err error) error {
	if errors.Is(err, goredis.ErrClosed) || jobrepo.IsTransportError(err) {
		return jobrepo.Unavailable("redis: "+op, err)
	}
	return fmt.Errorf("jobrepo/redis: %s: %w", op, err)
}
