package postgres

// migrateLockKey is the advisory lock held while Migrate runs.
const migrateLockKey int64 = 0x6a6f627265706f // "jobrepo"

// existingIndexesQuery lists the non-primary indexes of one table in the
// current schema with their key columns in order. Expression keys yield
// an empty column name. Bit 0 of indoption marks a DESC key.
const existingIndexesQuery = `
	SELECT i.relname AS name, ix.indisunique AS uniq,
		array_agg(COALESCE(a.attname::text, '') ORDER BY k.ord) AS cols,
		array_agg((ix.indoption[(k.ord - 1)::int]::int & 1) = 1 ORDER BY k.ord) AS descs
	FROM pg_index ix
	JOIN pg_class t ON t.oid = ix.indrelid
	JOIN pg_class i ON i.oid = ix.indexrelid
	JOIN pg_namespace n ON n.oid = t.relnamespace
	CROSS JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord)
	LEFT JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
	WHERE n.nspname = current_schema()
	  AND t.relname = $1
	  AND NOT ix.indisprimary
	  AND k.ord <= ix.indnkeyatts
	GROUP BY i.relname, ix.indisunique
	ORDER BY i.relname`

type table struct {
	name string
	ddl  string
}

// tables lists the DDL for every collection in creation order. Indexes
// come from package schema.
var tables = []table{
	{
		name: "sequences",
		ddl: `
			CREATE TABLE IF NOT EXISTS sequences (
				id    TEXT PRIMARY KEY,
				count BIGINT NOT NULL DEFAULT 0
			)`,
	},
	{
		name: "job_instance",
		ddl: `
			CREATE TABLE IF NOT EXISTS job_instance (
				id          BIGINT PRIMARY KEY,
				job_name    TEXT NOT NULL,
				job_key     TEXT NOT NULL,
				create_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
	},
	{
		name: "job_execution",
		ddl: `
			CREATE TABLE IF NOT EXISTS job_execution (
				id              BIGINT PRIMARY KEY,
				job_instance_id BIGINT NOT NULL,
				status          TEXT NOT NULL,
				start_time      TIMESTAMPTZ,
				end_time        TIMESTAMPTZ,
				exit_code       TEXT NOT NULL DEFAULT '',
				exit_message    TEXT NOT NULL DEFAULT '',
				parameters      JSONB NOT NULL DEFAULT '{}',
				create_time     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				last_updated    TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
	},
	{
		name: "step_execution",
		ddl: `
			CREATE TABLE IF NOT EXISTS step_execution (
				id               BIGINT PRIMARY KEY,
				job_execution_id BIGINT NOT NULL,
				step_name        TEXT NOT NULL,
				status           TEXT NOT NULL,
				start_time       TIMESTAMPTZ,
				end_time         TIMESTAMPTZ,
				exit_code        TEXT NOT NULL DEFAULT '',
				exit_message     TEXT NOT NULL DEFAULT '',
				create_time      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				last_updated     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				read_count         BIGINT NOT NULL DEFAULT 0,
				write_count        BIGINT NOT NULL DEFAULT 0,
				filter_count       BIGINT NOT NULL DEFAULT 0,
				commit_count       BIGINT NOT NULL DEFAULT 0,
				rollback_count     BIGINT NOT NULL DEFAULT 0,
				read_skip_count    BIGINT NOT NULL DEFAULT 0,
				process_skip_count BIGINT NOT NULL DEFAULT 0,
				write_skip_count   BIGINT NOT NULL DEFAULT 0
			)`,
	},
}
