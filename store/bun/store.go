package bunstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/uptrace/bun"

	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/schema"
	"github.com/xraph/jobrepo/sequence"
	"github.com/xraph/jobrepo/step"
)

// migrateLockKey is the advisory lock held while Migrate runs. It matches
// store/postgres so mixed deployments serialise against each other.
const migrateLockKey int64 = 0x6a6f627265706f

// Ensure Store implements all entity interfaces at compile time.
var (
	_ sequence.Store   = (*Store)(nil)
	_ instance.Store   = (*Store)(nil)
	_ execution.Store  = (*Store)(nil)
	_ step.Store       = (*Store)(nil)
	_ schema.Inspector = (*Store)(nil)
)

// Store is a Bun ORM implementation of store.Store using PostgreSQL dialect.
// The caller owns the *bun.DB lifecycle; Store never closes it.
type Store struct {
	db     *bun.DB
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

// New creates a new Bun store. The caller owns the db lifecycle — the Store
// will not close it on Close().
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *bun.DB for advanced usage.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Migrate creates missing tables and indexes and seeds missing counters in
// one transaction under an advisory lock.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(?)`, migrateLockKey); err != nil {
			return wrapErr("migrate lock", err)
		}

		models := []struct {
			table string
			model any
		}{
			{"sequences", (*sequenceModel)(nil)},
			{"job_instance", (*instanceModel)(nil)},
			{"job_execution", (*executionModel)(nil)},
			{"step_execution", (*stepModel)(nil)},
		}
		for _, m := range models {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT to_regclass(?) IS NOT NULL`, m.table).Scan(&exists); err != nil {
				return wrapErr("migrate inspect "+m.table, err)
			}
			if exists {
				continue
			}
			if _, err := tx.NewCreateTable().Model(m.model).IfNotExists().Exec(ctx); err != nil {
				return wrapErr("migrate create "+m.table, err)
			}
			s.logger.Info("jobrepo/bun: created table", "table", m.table)
		}

		for _, kind := range sequence.Kinds() {
			res, err := tx.NewInsert().
				Model(&sequenceModel{ID: string(kind)}).
				On("CONFLICT (id) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return wrapErr("migrate seed "+string(kind), err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				s.logger.Info("jobrepo/bun: seeded sequence", "kind", kind)
			}
		}

		var missing []schema.Index
		for _, c := range schema.Collections() {
			existing, err := existingIndexes(ctx, tx, c.Table())
			if err != nil {
				return wrapErr("migrate inspect indexes "+c.Table(), err)
			}
			planned, err := schema.Plan(schema.IndexesFor(c), existing, schema.Index.ColumnKey)
			if err != nil {
				return fmt.Errorf("jobrepo/bun: migrate: %w", err)
			}
			missing = append(missing, planned...)
		}

		for _, idx := range missing {
			q := tx.NewCreateIndex().
				Table(idx.Collection.Table()).
				Index(idx.Name).
				IfNotExists()
			if idx.Unique {
				q = q.Unique()
			}
			for _, f := range idx.Fields {
				if f.Desc {
					q = q.ColumnExpr(f.Column + " DESC")
				} else {
					q = q.Column(f.Column)
				}
			}
			if _, err := q.Exec(ctx); err != nil {
				return wrapErr("migrate index "+idx.Name, err)
			}
			s.logger.Info("jobrepo/bun: created index", "index", idx.Name)
		}
		return nil
	})
}

// existingIndexes lists the non-primary indexes of table in the current
// schema with their key columns in order. Bit 0 of indoption marks a DESC
// key.
func existingIndexes(ctx context.Context, tx bun.Tx, table string) ([]schema.Existing, error) {
	var rows []struct {
		Name   string   `bun:"name"`
		Unique bool     `bun:"uniq"`
		Cols   []string `bun:"cols,array"`
		Descs  []bool   `bun:"descs,array"`
	}
	err := tx.NewRaw(`
		SELECT i.relname AS name, ix.indisunique AS uniq,
			array_agg(COALESCE(a.attname::text, '') ORDER BY k.ord) AS cols,
			array_agg((ix.indoption[(k.ord - 1)::int]::int & 1) = 1 ORDER BY k.ord) AS descs
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		CROSS JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord)
		LEFT JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = current_schema()
		  AND t.relname = ?
		  AND NOT ix.indisprimary
		  AND k.ord <= ix.indnkeyatts
		GROUP BY i.relname, ix.indisunique
		ORDER BY i.relname`, table,
	).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	out := make([]schema.Existing, 0, len(rows))
	for _, r := range rows {
		out = append(out, schema.Existing{Name: r.Name, Key: schema.KeyOf(r.Cols, r.Descs), Unique: r.Unique})
	}
	return out, nil
}

// ListIndexes reports secondary indexes in the current schema.
func (s *Store) ListIndexes(ctx context.Context) (map[schema.Collection][]string, error) {
	tables := make([]string, 0, len(schema.Collections()))
	for _, c := range schema.Collections() {
		tables = append(tables, c.Table())
	}

	var rows []struct {
		TableName string `bun:"tablename"`
		IndexName string `bun:"indexname"`
	}
	err := s.db.NewRaw(`
		SELECT tablename, indexname FROM pg_indexes
		WHERE schemaname = current_schema()
		  AND tablename IN (?)
		  AND indexname NOT LIKE '%_pkey'`,
		bun.In(tables),
	).Scan(ctx, &rows)
	if err != nil {
		return nil, wrapErr("list indexes", err)
	}

	out := make(map[schema.Collection][]string)
	for _, r := range rows {
		c := schema.Collection(strings.ToUpper(r.TableName))
		out[c] = append(out[c], r.IndexName)
	}
	for c := range out {
		sort.Strings(out[c])
	}
	return out, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

// Close is a no-op because the caller owns the *bun.DB lifecycle.
func (s *Store) Close() error {
	return nil
}
