// Package future provides the one-shot completion token shared by every
// asynchronous operation that crosses an event-loop boundary (channel
// register/connect/disconnect/flush/close, loop.Loop.Execute). Scheduled
// tasks use loop.ScheduledTask's own Await instead.
//
// Modelled as a CAS-based single-producer/multi-consumer primitive with three
// states (pending, success, failure), per the teacher's registry/state-machine
// style: atomics only, no mutex in the hot path.
package future

import (
	"context"
	"sync"
	"sync/atomic"
)

// state values for Token.state.
const (
	statePending int32 = iota
	stateSuccess
	stateFailure
)

// Token is a one-shot completion value. The zero value is not usable; create
// one with New. Only the first call among Complete/Fail wins; later calls are
// no-ops, matching the spec's "idempotent under concurrent completion
// attempts" invariant.
type Token[T any] struct {
	state atomic.Int32
	value T
	err   error
	done  chan struct{}
	once  sync.Once
}

// New creates a pending Token.
func New[T any]() *Token[T] {
	return &Token[T]{done: make(chan struct{})}
}

// Complete resolves the token successfully. Returns false if the token was
// already completed (by either Complete or Fail).
func (t *Token[T]) Complete(value T) bool {
	if !t.state.CompareAndSwap(statePending, stateSuccess) {
		return false
	}
	t.value = value
	t.once.Do(func() { close(t.done) })
	return true
}

// Fail resolves the token with an error. Returns false if the token was
// already completed.
func (t *Token[T]) Fail(err error) bool {
	if !t.state.CompareAndSwap(statePending, stateFailure) {
		return false
	}
	t.err = err
	t.once.Do(func() { close(t.done) })
	return true
}

// Done returns a channel closed once the token settles, for use in select
// statements alongside a context or timeout.
func (t *Token[T]) Done() <-chan struct{} {
	return t.done
}

// Pending reports whether the token has not yet settled.
func (t *Token[T]) Pending() bool {
	return t.state.Load() == statePending
}

// Await blocks until the token settles or ctx is cancelled, returning the
// success value or the failure/context error.
func (t *Token[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the settled value and error without blocking. ok is false if
// the token has not yet settled.
func (t *Token[T]) Result() (value T, err error, ok bool) {
	select {
	case <-t.done:
		return t.value, t.err, true
	default:
		var zero T
		return zero, nil, false
	}
}
