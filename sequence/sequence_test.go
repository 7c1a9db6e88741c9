package sequence_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/sequence"
)

type counterStore struct {
	mu     sync.Mutex
	counts map[sequence.Kind]int64
}

func (s *counterStore) NextValue(_ context.Context, kind sequence.Kind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.counts[kind]
	if !ok {
		return 0, &jobrepo.SequenceError{Kind: string(kind)}
	}
	v++
	s.counts[kind] = v
	return v, nil
}

func (s *counterStore) Sequences(context.Context) (map[sequence.Kind]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[sequence.Kind]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out, nil
}

func TestAllocatorNext(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a := sequence.NewAllocator(&counterStore{counts: map[sequence.Kind]int64{sequence.JobInstance: 0}})

	for want := int64(1); want <= 3; want++ {
		got, err := a.Next(ctx, sequence.JobInstance)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != want {
			t.Errorf("Next = %d, want %d", got, want)
		}
	}
}

func TestAllocatorUnknownKind(t *testing.T) {
	t.Parallel()
	a := sequence.NewAllocator(&counterStore{counts: map[sequence.Kind]int64{}})

	_, err := a.Next(context.Background(), sequence.Kind("BATCH_SEQUENCES"))
	if !errors.Is(err, jobrepo.ErrUnknownSequence) {
		t.Fatalf("expected ErrUnknownSequence, got %v", err)
	}
}

func TestAllocatorMissingCounter(t *testing.T) {
	t.Parallel()
	a := sequence.NewAllocator(&counterStore{counts: map[sequence.Kind]int64{}})

	_, err := a.Next(context.Background(), sequence.StepExecution)
	if !errors.Is(err, jobrepo.ErrStoreNotInitialized) {
		t.Fatalf("expected ErrStoreNotInitialized, got %v", err)
	}
	var seqErr *jobrepo.SequenceError
	if !errors.As(err, &seqErr) || seqErr.Kind != "STEP_EXECUTION" {
		t.Errorf("expected SequenceError for STEP_EXECUTION, got %v", err)
	}
}

func TestKinds(t *testing.T) {
	t.Parallel()
	kinds := sequence.Kinds()
	if len(kinds) != 3 {
		t.Fatalf("len(Kinds) = %d, want 3", len(kinds))
	}
	for _, k := range kinds {
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
}
