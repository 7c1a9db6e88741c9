// Package sqlite implements store.Store on an embedded SQLite database
// using the pure-Go modernc.org/sqlite driver through sqlx. Suitable for
// single-host deployments, CLI tools and tests.
//
// The store serialises writers on one connection and sets a busy timeout,
// so concurrent goroutines in the same process never see SQLITE_BUSY.
// Several processes may share the file; a writer that still cannot get the
// lock reports jobrepo.ErrBackendUnavailable.
//
//	store, _ := sqlite.New(ctx, "file:jobrepo.db")
//	store.Migrate(ctx)
//
// Timestamps are stored as INTEGER unix nanoseconds.
package sqlite
