package memory

import (
	"context"
	"testing"

	"github.com/xraph/jobrepo/store"
	"github.com/xraph/jobrepo/store/storetest"
)

var _ store.Store = (*Store)(nil)

func TestConformance(t *testing.T) {
	t.Parallel()
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

func TestReturnsCopies(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	id, err := s.NextValue(ctx, "JOB_INSTANCE")
	if err != nil {
		t.Fatal(err)
	}
	names, _ := s.JobNames(ctx)
	if len(names) != 0 {
		t.Fatalf("JobNames on empty store = %v", names)
	}

	seqs, _ := s.Sequences(ctx)
	seqs["JOB_INSTANCE"] = 999
	again, _ := s.Sequences(ctx)
	if again["JOB_INSTANCE"] != id {
		t.Errorf("Sequences snapshot leaked: %d", again["JOB_INSTANCE"])
	}
}
