// Package repository is the orchestration layer of jobrepo. It sits above
// the store, allocator, extension registry and middleware packages and
// enforces the write flow: every new record takes its ID from the
// allocator, child records are only created under an existing parent, and
// status changes are resolved against the persisted status and applied as
// a compare-and-set.
//
//	s := memory.New()
//	repo, err := repository.New(s, repository.WithLogger(logger))
//	if err != nil { ... }
//	if err := repo.Migrate(ctx); err != nil { ... }
//
//	params := jobkey.Parameters{
//	    "run.date": jobkey.Identifying("2024-01-31"),
//	}
//	inst, err := repo.CreateInstanceForParameters(ctx, "payroll", params)
//	exec, err := repo.CreateExecution(ctx, inst.ID, params)
//	exec, err = repo.UpdateExecutionStatus(ctx, exec.ID, status.Update{To: status.Started})
//
// Every operation runs through the middleware chain (recover, tracing,
// metrics, logging, timeout, then caller middleware) and successful writes
// are announced to registered extensions.
package repository
