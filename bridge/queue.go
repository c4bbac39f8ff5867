package bridge

import (
	"sync"
)

// QUEUE_DEFAULT_CAPACITY is the queue capacity when none is given.
const QUEUE_DEFAULT_CAPACITY = 1000

// Queue is a bounded, thread-safe FIFO of pending commands. Many caller
// goroutines push concurrently; exactly one consumer (the executor, on the
// engine tick) pops. The internal mutex protects queue mutation only --
// no command executes while it is held.
type Queue struct {
	mu       sync.Mutex
	commands []Command
	capacity int
	closed   bool
}

// NewQueue creates a queue with the given capacity. A capacity of zero or
// less selects QUEUE_DEFAULT_CAPACITY.
func NewQueue(capacity int) (q *Queue) {
	if capacity <= 0 {
		capacity = QUEUE_DEFAULT_CAPACITY
	}

	q = &Queue{
		capacity: capacity,
	}

	return
}

// Capacity returns the maximum number of queued commands.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Push appends a command. Returns false immediately, without blocking,
// when the queue is at capacity or has been closed; the caller must then
// report ErrQueueFull and must not wait on the command's slot.
func (q *Queue) Push(cmd Command) bool {
	if cmd == nil {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.commands) >= q.capacity {
		return false
	}

	q.commands = append(q.commands, cmd)
	return true
}

// TryPop removes and returns the oldest command. Non-blocking; called only
// by the executor.
func (q *Queue) TryPop() (cmd Command, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.commands) == 0 {
		return
	}

	cmd = q.commands[0]
	q.commands[0] = nil
	q.commands = q.commands[1:]
	ok = true

	return
}

// Len returns a point-in-time count; it may be stale by the time it is
// used.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.commands)
}

// Empty reports whether the queue held no commands at the time of the
// call.
func (q *Queue) Empty() bool {
	return q.Len() == 0
}

// Clear removes every not-yet-started command and resolves each one's slot
// with ErrCancelled, so no caller is left waiting on a command that will
// never run. Returns the number of commands cancelled.
func (q *Queue) Clear() int {
	q.mu.Lock()
	dropped := q.commands
	q.commands = nil
	q.mu.Unlock()

	// Cancellation resolves buffered slots; keep it outside the queue
	// lock so hold time stays O(1).
	for _, cmd := range dropped {
		cmd.Cancel(ErrCancelled)
	}

	return len(dropped)
}

// Close clears the queue and rejects every later push. Used at shutdown.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.Clear()
}
