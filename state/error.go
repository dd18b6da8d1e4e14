package state

import (
	"errors"
	"fmt"
)

var (
	ErrFull           = fmt.Errorf("storage is full")
	ErrEmpty          = fmt.Errorf("storage is empty")
	ErrInitialized    = fmt.Errorf("value is already initialized")
	ErrUninitialized  = fmt.Errorf("value is uninitialized")
	ErrBusy           = fmt.Errorf("concurrent transition in progress")
	ErrRemovalPending = fmt.Errorf("removal pending until the last reference is released")
	ErrRefOverflow    = fmt.Errorf("reference count exhausted")
	ErrContended      = fmt.Errorf("hop limit exceeded under contention")
)

// Error describes a failed operation on a cell or ring slot.
//
// State is the state observed at the point of failure. Input hands back the
// value the caller tried to move in (struct{} when there was none), so retry
// loops never have to rebuild their argument. Retry is true exactly when the
// failure was caused by a concurrent peer mid-transition, and the operation
// may be repeated immediately; a false Retry is a violated precondition that
// repeating will not fix.
type Error[T any] struct {
	State MemoryState
	Input T
	Retry bool
	Err   error
}

// Failure builds an error. It is a convenience for the structures in this
// module, which always know the cause and the retry class.
func Failure[T any](s MemoryState, input T, retry bool, cause error) *Error[T] {
	return &Error[T]{State: s, Input: input, Retry: retry, Err: cause}
}

func (e *Error[T]) Error() string {
	kind := "permanent"
	if e.Retry {
		kind = "transient"
	}
	return fmt.Sprintf("%v (%s, state=%v)", e.Err, kind, e.State)
}

func (e *Error[T]) Unwrap() error {
	return e.Err
}

// Temporary reports whether the operation may be retried.
func (e *Error[T]) Temporary() bool {
	return e.Retry
}

// IsTransient reports whether err (or anything it wraps) is a failure that
// is safe to retry immediately.
func IsTransient(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}

// StateOf returns the state recorded in err, if err is an *Error of any
// payload type.
func StateOf(err error) (MemoryState, bool) {
	var s interface{ failedState() MemoryState }
	if errors.As(err, &s) {
		return s.failedState(), true
	}
	return 0, false
}

func (e *Error[T]) failedState() MemoryState {
	return e.State
}

// InputOf recovers the input carried by err.
func InputOf[T any](err error) (T, bool) {
	var e *Error[T]
	if errors.As(err, &e) {
		return e.Input, true
	}
	var zero T
	return zero, false
}
