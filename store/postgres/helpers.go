package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

// PostgreSQL error codes.
const (
	codeUniqueViolation = "23505"
	codeUndefinedTable  = "42P01"
)

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isDuplicateKey checks if a PostgreSQL error is a unique_violation (23505).
func isDuplicateKey(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// isUndefinedTable reports a query against a table Migrate never created.
func isUndefinedTable(err error) bool {
	return hasCode(err, codeUndefinedTable)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

// isUnavailable reports connect failures, timeouts and broken connections.
func isUnavailable(err error) bool {
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr) || pgconn.Timeout(err) || jobrepo.IsTransportError(err)
}

// wrapErr classifies err and adds the backend prefix.
func wrapErr(op string, err error) error {
	if isUnavailable(err) {
		return jobrepo.Unavailable("postgres: "+op, err)
	}
	return fmt.Errorf("jobrepo/postgres: %s: %w", op, err)
}

func utc(t time.Time) time.Time { return t.UTC() }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func statusStrings(sts []status.Status) []string {
	out := make([]string, len(sts))
	for i, st := range sts {
		out[i] = string(st)
	}
	return out
}

// nullString maps an empty exit field to NULL so COALESCE keeps the
// stored value.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// countArgs binds the counters of a step transition in column order. Nil
// counts bind NULL so COALESCE keeps the stored values.
func countArgs(c *step.Counts) []any {
	if c == nil {
		return make([]any, 8)
	}
	return []any{
		c.ReadCount, c.WriteCount, c.FilterCount, c.CommitCount,
		c.RollbackCount, c.ReadSkipCount, c.ProcessSkipCount, c.WriteSkipCount,
	}
}
