// Package sequence allocates monotonically increasing int64 identifiers.
//
// Each entity kind owns one counter record in the shared SEQUENCES
// collection. Allocation is a single atomic increment-and-read on the
// backend, so concurrent callers in separate processes never observe the
// same value. Gaps are permitted; reuse is not.
package sequence

import (
	"context"
	"fmt"

	"github.com/xraph/jobrepo"
)

// Kind names a counter.
type Kind string

const (
	// JobInstance numbers job instances.
	JobInstance Kind = "JOB_INSTANCE"
	// JobExecution numbers job executions.
	JobExecution Kind = "JOB_EXECUTION"
	// StepExecution numbers step executions.
	StepExecution Kind = "STEP_EXECUTION"
)

// Kinds returns every counter kind a store must seed.
func Kinds() []Kind {
	return []Kind{JobInstance, JobExecution, StepExecution}
}

// Valid reports whether k is a declared kind.
func (k Kind) Valid() bool {
	switch k {
	case JobInstance, JobExecution, StepExecution:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

// Store is the persistence contract for counters.
type Store interface {
	// NextValue atomically increments the counter for kind and returns the
	// new value. A missing counter record yields a *jobrepo.SequenceError.
	NextValue(ctx context.Context, kind Kind) (int64, error)

	// Sequences returns the current value of every seeded counter.
	Sequences(ctx context.Context) (map[Kind]int64, error)
}

// Allocator hands out identifiers. It is the only writer of counter
// values.
type Allocator struct {
	store Store
}

// NewAllocator returns an Allocator backed by s.
func NewAllocator(s Store) *Allocator {
	return &Allocator{store: s}
}

// Next returns the next identifier for kind.
func (a *Allocator) Next(ctx context.Context, kind Kind) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: %q", jobrepo.ErrUnknownSequence, kind)
	}
	v, err := a.store.NextValue(ctx, kind)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// Current reports the last issued value of every counter.
func (a *Allocator) Current(ctx context.Context) (map[Kind]int64, error) {
	return a.store.Sequences(ctx)
}
