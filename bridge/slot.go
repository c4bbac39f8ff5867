package bridge

import (
	"sync"
	"time"
)

// Outcome is the tagged result delivered through a slot: either a value or
// an error, never both.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Slot is the single-assignment result holder shared between a command
// (the writer half) and the caller that submitted it (the reader half).
// Exactly one outcome is ever written; later writes are no-ops. A caller
// that gives up waiting leaves a buffered channel behind, so a late
// resolution is simply discarded.
type Slot[T any] struct {
	ch   chan Outcome[T]
	once sync.Once
}

// NewSlot creates an unresolved slot.
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{
		ch: make(chan Outcome[T], 1),
	}
}

// Resolve writes the success outcome. No-op if already resolved.
func (slot *Slot[T]) Resolve(value T) {
	slot.once.Do(func() {
		slot.ch <- Outcome[T]{Value: value}
	})
}

// Fail writes a failure outcome. No-op if already resolved.
func (slot *Slot[T]) Fail(err error) {
	slot.once.Do(func() {
		slot.ch <- Outcome[T]{Err: err}
	})
}

// Wait blocks the calling thread until the slot resolves or the timeout
// elapses, whichever comes first. On timeout the underlying command is not
// cancelled; it may still run, and its late outcome is discarded.
func (slot *Slot[T]) Wait(timeout time.Duration) (value T, err error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-slot.ch:
		return out.Value, out.Err
	case <-timer.C:
		err = ErrTimeout
		return
	}
}

// TryGet returns the outcome if the slot has resolved, without blocking.
func (slot *Slot[T]) TryGet() (value T, err error, ok bool) {
	select {
	case out := <-slot.ch:
		return out.Value, out.Err, true
	default:
		return
	}
}
