// Package postgres implements the store using pgx/v5 with raw SQL.
// Features: UPDATE ... RETURNING sequence allocation, a unique index on
// (job_name, job_key) for instance races, conditional UPDATE for status
// compare-and-set, and an advisory-locked inspecting setup routine.
package postgres
