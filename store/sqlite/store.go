package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/schema"
	"github.com/xraph/jobrepo/sequence"
	"github.com/xraph/jobrepo/step"
)

// Ensure Store implements all entity interfaces at compile time.
var (
	_ sequence.Store   = (*Store)(nil)
	_ instance.Store   = (*Store)(nil)
	_ execution.Store  = (*Store)(nil)
	_ step.Store       = (*Store)(nil)
	_ schema.Inspector = (*Store)(nil)
)

// Store is a SQLite implementation of store.Store.
type Store struct {
	db     *sqlx.DB
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

// New opens the database at dsn, e.g. "file:jobrepo.db" or ":memory:".
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("jobrepo/sqlite: open: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises
	// writers inside the process.
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, wrapErr("pragma", err)
		}
	}

	return NewFromDB(db, opts...), nil
}

// NewFromDB wraps an already opened database. Close closes it.
func NewFromDB(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *sqlx.DB for advanced usage.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Migrate creates missing tables and indexes and seeds missing counters
// in one transaction. The transaction starts with BEGIN IMMEDIATE so that
// concurrent migrations of the same file queue on the write lock through
// busy_timeout instead of failing with SQLITE_BUSY on lock upgrade.
func (s *Store) Migrate(ctx context.Context) (err error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return wrapErr("migrate conn", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return wrapErr("migrate begin", err)
	}
	defer func() {
		if err != nil {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), `ROLLBACK`)
		}
	}()

	for _, tbl := range tables {
		var n int
		err := conn.GetContext(ctx, &n,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, tbl.name)
		if err != nil {
			return wrapErr("migrate inspect "+tbl.name, err)
		}
		if n > 0 {
			continue
		}
		if _, err := conn.ExecContext(ctx, tbl.ddl); err != nil {
			return wrapErr("migrate create "+tbl.name, err)
		}
		s.logger.Info("jobrepo/sqlite: created table", "table", tbl.name)
	}

	for _, kind := range sequence.Kinds() {
		res, err := conn.ExecContext(ctx,
			`INSERT INTO sequences (id, count) VALUES (?, 0) ON CONFLICT (id) DO NOTHING`,
			string(kind),
		)
		if err != nil {
			return wrapErr("migrate seed "+string(kind), err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			s.logger.Info("jobrepo/sqlite: seeded sequence", "kind", kind)
		}
	}

	for _, c := range schema.Collections() {
		existing, err := existingIndexes(ctx, conn, c.Table())
		if err != nil {
			return wrapErr("migrate inspect indexes "+c.Table(), err)
		}
		missing, err := schema.Plan(schema.IndexesFor(c), existing, schema.Index.ColumnKey)
		if err != nil {
			return fmt.Errorf("jobrepo/sqlite: migrate: %w", err)
		}
		for _, idx := range missing {
			if _, err := conn.ExecContext(ctx, schema.CreateSQL(idx)); err != nil {
				return wrapErr("migrate index "+idx.Name, err)
			}
			s.logger.Info("jobrepo/sqlite: created index", "index", idx.Name)
		}
	}

	if _, err := conn.ExecContext(ctx, `COMMIT`); err != nil {
		return wrapErr("migrate commit", err)
	}
	return nil
}

// existingIndexes describes the explicit and UNIQUE-constraint indexes of
// table. Expression keys render with an empty column name.
func existingIndexes(ctx context.Context, conn *sqlx.Conn, table string) ([]schema.Existing, error) {
	var rows []struct {
		Name   string         `db:"name"`
		Unique bool           `db:"uniq"`
		Column sql.NullString `db:"col"`
		Desc   bool           `db:"descending"`
	}
	err := conn.SelectContext(ctx, &rows, `
		SELECT il.name AS name, il."unique" AS uniq, ii.name AS col, ii."desc" AS descending
		FROM pragma_index_list(?) AS il
		JOIN pragma_index_xinfo(il.name) AS ii
		WHERE il.origin IN ('c', 'u') AND ii.key = 1
		ORDER BY il.name, ii.seqno`, table)
	if err != nil {
		return nil, err
	}

	var out []schema.Existing
	for i := 0; i < len(rows); {
		name := rows[i].Name
		var (
			cols []string
			desc []bool
		)
		unique := rows[i].Unique
		for ; i < len(rows) && rows[i].Name == name; i++ {
			cols = append(cols, rows[i].Column.String)
			desc = append(desc, rows[i].Desc)
		}
		out = append(out, schema.Existing{Name: name, Key: schema.KeyOf(cols, desc), Unique: unique})
	}
	return out, nil
}

// ListIndexes reports the named indexes on every table.
func (s *Store) ListIndexes(ctx context.Context) (map[schema.Collection][]string, error) {
	var rows []struct {
		Table string `db:"tbl_name"`
		Name  string `db:"name"`
	}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT tbl_name, name FROM sqlite_master
		WHERE type = 'index' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, wrapErr("list indexes", err)
	}

	out := make(map[schema.Collection][]string)
	for _, r := range rows {
		c := schema.Collection(strings.ToUpper(r.Table))
		out[c] = append(out[c], r.Name)
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

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
