package jobrepo

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/xraph/jobrepo/status"
)

// SequenceError reports an allocation against a counter record that does
// not exist. It unwraps to ErrStoreNotInitialized.
type SequenceError struct {
	Kind string
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("jobrepo: sequence %s: store not initialized", e.Kind)
}

func (e *SequenceError) Unwrap() error { return ErrStoreNotInitialized }

// DuplicateInstanceError reports a (jobName, jobKey) uniqueness violation.
// The caller is expected to re-fetch the existing instance.
type DuplicateInstanceError struct {
	JobName string
	JobKey  string
}

func (e *DuplicateInstanceError) Error() string {
	return fmt.Sprintf("jobrepo: job instance %q/%q already exists", e.JobName, e.JobKey)
}

func (e *DuplicateInstanceError) Unwrap() error { return ErrDuplicateInstance }

// TransitionError reports a status update that the transition graph does
// not allow, or whose expected current status no longer matches the
// persisted one. From is the persisted status observed by the store.
type TransitionError struct {
	Entity string
	ID     int64
	From   status.Status
	To     status.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("jobrepo: %s %d: invalid transition %s -> %s", e.Entity, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ReferenceError reports a child record pointing at a parent that does not
// exist. Entity names the parent collection.
type ReferenceError struct {
	Entity string
	ID     int64
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("jobrepo: referenced %s %d not found", e.Entity, e.ID)
}

func (e *ReferenceError) Unwrap() error { return ErrReferenceNotFound }

// UnavailableError wraps a transport or connection failure. It matches both
// ErrBackendUnavailable and the underlying driver error.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("jobrepo: %s: backend unavailable: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() []error { return []error{ErrBackendUnavailable, e.Err} }

// Unavailable wraps err as an UnavailableError for op.
func Unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}

// IsRetryable reports whether err is a transport failure the caller may
// retry with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// IsTransportError reports whether err looks like a broken or refused
// connection independent of the driver in use. Backends layer their own
// driver-specific checks on top of it.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	switch {
	case errors.As(err, &netErr):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.Is(err, driver.ErrBadConn):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return true
	}
	return false
}
