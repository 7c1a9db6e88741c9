// Package store defines the aggregate persistence interface.
//
// Each entity (instance, execution, step) and the sequence allocator
// define their own store interface. The composite [Store] composes them
// together with schema inspection and lifecycle methods:
//
//	type Store interface {
//	    sequence.Store
//	    instance.Store
//	    execution.Store
//	    step.Store
//	    schema.Inspector
//
//	    Migrate(ctx context.Context) error
//	    Ping(ctx context.Context) error
//	    Close() error
//	}
//
// # Available Backends
//
//   - store/memory — in-memory store for development and testing
//   - store/mongo — MongoDB backend using mongo-driver/v2
//   - store/postgres — PostgreSQL backend using pgx/v5
//   - store/bun — Bun ORM backend on PostgreSQL
//   - store/sqlite — embedded SQLite backend
//   - store/redis — Redis backend
//
// Every backend passes the shared conformance suite in store/storetest.
//
// # Usage
//
//	import "github.com/xraph/jobrepo/store/mongo"
//
//	client, err := mongodriver.Connect(options.Client().ApplyURI(uri))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s := mongo.New(client.Database("jobrepo"))
//
//	repo, err := repository.New(repository.WithStore(s))
//
// # Setup
//
// Call Migrate once at startup. It seeds the JOB_INSTANCE, JOB_EXECUTION
// and STEP_EXECUTION counters at zero when absent and creates every index
// declared in package schema. Running it again is a no-op:
//
//	if err := s.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Allocating from a store that was never migrated fails with
// jobrepo.ErrStoreNotInitialized rather than starting a counter from an
// arbitrary value.
package store
