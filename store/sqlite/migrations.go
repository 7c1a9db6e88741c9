package sqlite

// busy_timeout comes first so the journal mode switch also waits on a
// locked file.
var pragmas = []string{
	`PRAGMA busy_timeout=5000`,
	`PRAGMA journal_mode=WAL`,
}

type table struct {
	name string
	ddl  string
}

// tables lists the DDL for every collection in creation order. Indexes
// come from package schema.
var tables = []table{
	{
		name: "sequences",
		ddl: `CREATE TABLE IF NOT EXISTS sequences (
			id    TEXT PRIMARY KEY,
			count INTEGER NOT NULL DEFAULT 0
		)`,
	},
	{
		name: "job_instance",
		ddl: `CREATE TABLE IF NOT EXISTS job_instance (
			id          INTEGER PRIMARY KEY,
			job_name    TEXT NOT NULL,
			job_key     TEXT NOT NULL,
			create_time INTEGER NOT NULL
		)`,
	},
	{
		name: "job_execution",
		ddl: `CREATE TABLE IF NOT EXISTS job_execution (
			id              INTEGER PRIMARY KEY,
			job_instance_id INTEGER NOT NULL,
			status          TEXT NOT NULL,
			start_time      INTEGER,
			end_time        INTEGER,
			exit_code       TEXT NOT NULL DEFAULT '',
			exit_message    TEXT NOT NULL DEFAULT '',
			parameters      TEXT NOT NULL DEFAULT '{}',
			create_time     INTEGER NOT NULL,
			last_updated    INTEGER NOT NULL
		)`,
	},
	{
		name: "step_execution",
		ddl: `CREATE TABLE IF NOT EXISTS step_execution (
			id               INTEGER PRIMARY KEY,
			job_execution_id INTEGER NOT NULL,
			step_name        TEXT NOT NULL,
			status           TEXT NOT NULL,
			start_time       INTEGER,
			end_time         INTEGER,
			exit_code        TEXT NOT NULL DEFAULT '',
			exit_message     TEXT NOT NULL DEFAULT '',
			read_count       INTEGER NOT NULL DEFAULT 0,
			write_count      INTEGER NOT NULL DEFAULT 0,
			filter_count     INTEGER NOT NULL DEFAULT 0,
			commit_count     INTEGER NOT NULL DEFAULT 0,
			rollback_count   INTEGER NOT NULL DEFAULT 0,
			read_skip_count  INTEGER NOT NULL DEFAULT 0,
			process_skip_count INTEGER NOT NULL DEFAULT 0,
			write_skip_count INTEGER NOT NULL DEFAULT 0,
			create_time      INTEGER NOT NULL,
			last_updated     INTEGER NOT NULL
		)`,
	},
}
