package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/schema"
	"github.com/xraph/jobrepo/sequence"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
	"github.com/xraph/jobrepo/store"
	"github.com/xraph/jobrepo/store/storetest"
)

var _ store.Store = (*Store)(nil)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), "file:"+filepath.Join(t.TempDir(), "jobrepo.db"))
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	t.Parallel()
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

func TestMigrate_SurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := "file:" + filepath.Join(t.TempDir(), "jobrepo.db")

	s, err := New(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	for i := 0; i < 3; i++ {
		_, err := s.NextValue(ctx, sequence.JobExecution)
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	reopened, err := New(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Migrate(ctx))

	v, err := reopened.NextValue(ctx, sequence.JobExecution)
	require.NoError(t, err)
	assert.Equal(t, int64(4), v, "counter must continue after reopen")
}

func TestListIndexes_HidesAutoIndexes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	defer s.Close()
	require.NoError(t, s.Migrate(ctx))

	idxs, err := s.ListIndexes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"job_instance_id_desc_idx",
		"job_instance_name_idx",
		"job_instance_name_key_uq",
	}, idxs[schema.JobInstance])
	assert.Empty(t, idxs[schema.Sequences])
}

func TestTimesRoundTrip(t *testing.T) {
	t.Parallel()
	start := time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.FixedZone("CET", 3600))
	n := toNullNanos(&start)
	require.True(t, n.Valid)

	got := fromNullNanos(n)
	require.NotNil(t, got)
	assert.True(t, got.Equal(start))
	assert.Equal(t, time.UTC, got.Location())
	assert.Nil(t, fromNullNanos(toNullNanos(nil)))
}

func TestTransitionKeepsExitFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	defer s.Close()
	require.NoError(t, s.Migrate(ctx))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO step_execution (id, job_execution_id, step_name, status, exit_code, exit_message, read_count, create_time, last_updated)
		VALUES (1, 1, 'load', 'STARTED', 'RUNNING', 'halfway', 40, 0, 0)`)
	require.NoError(t, err)

	tr := step.Update{Update: status.Update{To: status.Stopping}}.Resolve(status.Started, true, time.Now())
	se, err := s.TransitionStepExecution(ctx, 1, tr)
	require.NoError(t, err)
	assert.Equal(t, status.Stopping, se.Status)
	assert.Equal(t, "RUNNING", se.ExitCode)
	assert.Equal(t, "halfway", se.ExitMessage)
	assert.Equal(t, int64(40), se.ReadCount)
}

func TestMigrate_ConcurrentHandles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for round := 0; round < 5; round++ {
		path := "file:" + filepath.Join(t.TempDir(), "jobrepo.db")

		handles := make([]*Store, 4)
		for i := range handles {
			s, err := New(ctx, path)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			handles[i] = s
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, s := range handles {
			g.Go(func() error { return s.Migrate(gctx) })
		}
		require.NoError(t, g.Wait(), "round %d", round)

		var seeded int
		require.NoError(t, handles[0].db.GetContext(ctx, &seeded, `SELECT COUNT(*) FROM sequences`))
		assert.Equal(t, len(sequence.Kinds()), seeded, "round %d", round)

		idxs, err := handles[0].ListIndexes(ctx)
		require.NoError(t, err)
		assert.Len(t, idxs[schema.JobInstance], 3, "round %d", round)
		assert.Len(t, idxs[schema.JobExecution], 3, "round %d", round)
	}
}

func TestMigrate_KeepsEquivalentIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	defer s.Close()
	require.NoError(t, s.Migrate(ctx))

	_, err := s.db.ExecContext(ctx, `DROP INDEX job_execution_instance_status_idx`)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `CREATE INDEX legacy_exec_status ON job_execution (job_instance_id, status)`)
	require.NoError(t, err)

	require.NoError(t, s.Migrate(ctx))

	idxs, err := s.ListIndexes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"job_execution_id_idx",
		"job_execution_instance_idx",
		"legacy_exec_status",
	}, idxs[schema.JobExecution])
}

func TestMigrate_IndexConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	defer s.Close()

	_, err := s.db.ExecContext(ctx, `CREATE TABLE job_instance (
		id INTEGER PRIMARY KEY, job_name TEXT NOT NULL, job_key TEXT NOT NULL, create_time INTEGER NOT NULL)`)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `CREATE INDEX name_key_plain ON job_instance (job_name, job_key)`)
	require.NoError(t, err)

	err = s.Migrate(ctx)
	require.ErrorIs(t, err, jobrepo.ErrIndexConflict)

	// The failed migration rolled back and released the connection.
	var n int
	require.NoError(t, s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sqlite_master WHERE name = 'sequences'`))
	assert.Zero(t, n)
}
