// Package store defines the aggregate persistence interface. Each entity
// (instance, execution, step) and the sequence counters define their own
// store interface. The composite Store composes them all. Backends: Mongo,
// Postgres, Bun, SQLite, Redis, and Memory.
package store

import (
	"context"

	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/schema"
	"github.com/xraph/jobrepo/sequence"
	"github.com/xraph/jobrepo/step"
)

// Store is the aggregate persistence interface.
// A single backend implements every entity contract plus setup.
type Store interface {
	sequence.Store
	instance.Store
	execution.Store
	step.Store
	schema.Inspector

	// Migrate creates missing collections and indexes and seeds missing
	// counter records. Existing records and counter values are left
	// untouched, so it is safe to call on every start.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
