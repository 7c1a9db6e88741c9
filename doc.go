// Package jobrepo provides the durable metadata store for a batch runtime:
// job instances, job executions, step executions, and the sequence
// allocator that issues their identifiers.
//
// jobrepo is a library. Pick a backend, run Migrate once, and hand the store
// to the repository layer:
//
//	s := mongo.New(client.Database("batch"))
//	if err := s.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	repo, err := repository.New(s)
//
// # Architecture
//
// Each entity (instance, execution, step, sequence) defines its own store
// interface. A single backend implements all of them; store.Store composes
// them. The repository package sits above the subsystems and enforces the
// write path: every insert takes its id from the sequence allocator, every
// child insert checks its parent, and every status change is validated
// against the transition graph in package status.
//
// All identifiers are int64 values issued by the allocator, one counter per
// entity kind, strictly increasing across every process sharing the store.
package jobrepo
