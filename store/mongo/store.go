package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/schema"
	"github.com/xraph/jobrepo/sequence"
	"github.com/xraph/jobrepo/step"
)

// Collection name constants.
const (
	colInstances  = string(schema.JobInstance)
	colExecutions = string(schema.JobExecution)
	colSteps      = string(schema.StepExecution)
	colSequences  = string(schema.Sequences)
)

// Server error codes handled during setup.
const (
	codeNamespaceNotFound = 26
	codeNamespaceExists   = 48
)

// Ensure Store implements all entity interfaces at compile time.
var (
	_ sequence.Store   = (*Store)(nil)
	_ instance.Store   = (*Store)(nil)
	_ execution.Store  = (*Store)(nil)
	_ step.Store       = (*Store)(nil)
	_ schema.Inspector = (*Store)(nil)
)

// Store implements store.Store on a MongoDB database.
// The caller owns the client lifecycle; Store never disconnects it.
type Store struct {
	db     *mongod.Database
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new MongoDB store. The caller owns the client lifecycle --
// the Store will not disconnect it on Close().
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database for advanced usage.
func (s *Store) DB() *mongod.Database {
	return s.db
}

// Migrate creates missing collections and indexes and seeds missing
// counters. Existing indexes are matched by key specification, so an
// equivalent index created by hand under another name is left alone.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.ensureCollections(ctx); err != nil {
		return err
	}
	if err := s.ensureSequences(ctx); err != nil {
		return err
	}
	return s.ensureIndexes(ctx)
}

func (s *Store) ensureCollections(ctx context.Context) error {
	existing, err := s.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return wrapErr("migrate list collections", err)
	}
	have := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		have[name] = struct{}{}
	}

	for _, c := range schema.Collections() {
		if _, ok := have[string(c)]; ok {
			continue
		}
		err := s.db.CreateCollection(ctx, string(c))
		if err != nil && !hasCode(err, codeNamespaceExists) {
			return wrapErr("migrate create "+string(c), err)
		}
		s.logger.Info("jobrepo/mongo: created collection", "collection", c)
	}
	return nil
}

func (s *Store) ensureSequences(ctx context.Context) error {
	col := s.db.Collection(colSequences)
	for _, kind := range sequence.Kinds() {
		res, err := col.UpdateOne(ctx,
			bson.M{"_id": string(kind)},
			bson.M{"$setOnInsert": bson.M{"count": int64(0)}},
			options.UpdateOne().SetUpsert(true),
		)
		if err != nil {
			// A concurrent migrator inserted the same record.
			if mongod.IsDuplicateKeyError(err) {
				continue
			}
			return wrapErr("migrate seed "+string(kind), err)
		}
		if res.UpsertedCount > 0 {
			s.logger.Info("jobrepo/mongo: seeded sequence", "kind", kind)
		}
	}
	return nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	for _, c := range schema.Collections() {
		declared := schema.IndexesFor(c)
		if len(declared) == 0 {
			continue
		}

		view := s.db.Collection(string(c)).Indexes()
		specs, err := view.ListSpecifications(ctx)
		if err != nil {
			return wrapErr("migrate list indexes "+string(c), err)
		}
		existing := make([]schema.Existing, 0, len(specs))
		for _, spec := range specs {
			if spec.Name == "_id_" {
				continue
			}
			existing = append(existing, schema.Existing{
				Name:   spec.Name,
				Key:    keySpec(spec.KeysDocument),
				Unique: spec.Unique != nil && *spec.Unique,
			})
		}
		missing, err := schema.Plan(declared, existing, schema.Index.Key)
		if err != nil {
			return fmt.Errorf("jobrepo/mongo: migrate %s: %w", c, err)
		}

		for _, idx := range missing {
			model := mongod.IndexModel{
				Keys:    indexKeys(idx),
				Options: options.Index().SetName(idx.Name).SetUnique(idx.Unique),
			}
			if _, err := view.CreateOne(ctx, model); err != nil {
				return wrapErr("migrate create index "+idx.Name, err)
			}
			s.logger.Info("jobrepo/mongo: created index", "collection", c, "index", idx.Name)
		}
	}
	return nil
}

// ListIndexes reports index names per collection, excluding the implicit
// _id index.
func (s *Store) ListIndexes(ctx context.Context) (map[schema.Collection][]string, error) {
	out := make(map[schema.Collection][]string)
	for _, c := range schema.Collections() {
		specs, err := s.db.Collection(string(c)).Indexes().ListSpecifications(ctx)
		if err != nil {
			if hasCode(err, codeNamespaceNotFound) {
				continue
			}
			return nil, wrapErr("list indexes", err)
		}
		var names []string
		for _, spec := range specs {
			if spec.Name == "_id_" {
				continue
			}
			names = append(names, spec.Name)
		}
		sort.Strings(names)
		out[c] = names
	}
	return out, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Client().Ping(ctx, nil); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

// Close is a no-op because the caller owns the client lifecycle.
func (s *Store) Close() error {
	return nil
}

// ── helpers ──────────────────────────────────────────────────────

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// isUnavailable reports transport failures: network errors, timeouts and
// a disconnected client.
func isUnavailable(err error) bool {
	return mongod.IsNetworkError(err) ||
		mongod.IsTimeout(err) ||
		errors.Is(err, mongod.ErrClientDisconnected) ||
		jobrepo.IsTransportError(err)
}

func hasCode(err error, code int) bool {
	var se mongod.ServerError
	return errors.As(err, &se) && se.HasErrorCode(code)
}

// wrapErr classifies err and adds the backend prefix.
func wrapErr(op string, err error) error {
	if isUnavailable(err) {
		return jobrepo.Unavailable("mongo: "+op, err)
	}
	return fmt.Errorf("jobrepo/mongo: %s: %w", op, err)
}

func indexKeys(idx schema.Index) bson.D {
	keys := make(bson.D, len(idx.Fields))
	for i, f := range idx.Fields {
		dir := 1
		if f.Desc {
			dir = -1
		}
		keys[i] = bson.E{Key: f.Name, Value: dir}
	}
	return keys
}

// keySpec renders a server key document in schema.Index.Key form.
func keySpec(raw bson.Raw) string {
	var keys bson.D
	if err := bson.Unmarshal(raw, &keys); err != nil {
		return ""
	}
	idx := schema.Index{Fields: make([]schema.Field, len(keys))}
	for i, e := range keys {
		idx.Fields[i] = schema.Field{Name: e.Key, Desc: direction(e.Value) < 0}
	}
	return idx.Key()
}

func direction(v any) float64 {
	switch n := v.(type) {
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 1
}
