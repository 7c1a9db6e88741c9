package bunstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/status"
)

// PostgreSQL error codes.
const (
	codeUniqueViolation = "23505"
	codeUndefinedTable  = "42P01"
)

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
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
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == code
	}
	return false
}

// wrapErr classifies err and adds the backend prefix.
func wrapErr(op string, err error) error {
	if errors.Is(err, sql.ErrConnDone) || jobrepo.IsTransportError(err) {
		return jobrepo.Unavailable("bun: "+op, err)
	}
	return fmt.Errorf("jobrepo/bun: %s: %w", op, err)
}

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
