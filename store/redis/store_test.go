//go:build integration

package redis_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/sequence"
	"github.com/xraph/jobrepo/store"
	redisstore "github.com/xraph/jobrepo/store/redis"
	"github.com/xraph/jobrepo/store/storetest"
)

var _ store.Store = (*redisstore.Store)(nil)

// setupClient starts a Redis container and returns a connected client.
func setupClient(t *testing.T) goredis.UniversalClient {
	t.Helper()
	ctx := context.Background()

	container, err := redismodule.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}
	opts, err := goredis.ParseURL(uri)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}

	client := goredis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestConformance(t *testing.T) {
	client := setupClient(t)
	var n atomic.Int64

	storetest.Run(t, func(*testing.T) store.Store {
		prefix := fmt.Sprintf("jobrepo_test_%d:", n.Add(1))
		return redisstore.New(client, redisstore.WithPrefix(prefix), redisstore.WithLogger(slog.Default()))
	})
}

// Migrate must not reset a counter that already advanced.
func TestMigrate_KeepsCounters(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()
	s := redisstore.New(client)

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	for range 3 {
		if _, err := s.NextValue(ctx, sequence.JobExecution); err != nil {
			t.Fatalf("NextValue: %v", err)
		}
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	seqs, err := s.Sequences(ctx)
	if err != nil {
		t.Fatalf("Sequences: %v", err)
	}
	if got := seqs[sequence.JobExecution]; got != 3 {
		t.Errorf("JOB_EXECUTION = %d, want 3", got)
	}
}

func TestStore_Unavailable(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	s := redisstore.New(client, redisstore.WithOwnedClient())
	defer s.Close()

	err := s.Ping(context.Background())
	if !errors.Is(err, jobrepo.ErrBackendUnavailable) {
		t.Fatalf("Ping error = %v, want ErrBackendUnavailable", err)
	}
}
