package bridge

import (
	"errors"
	"fmt"
	"log"
)

// EXECUTOR_DEFAULT_MAX_PER_DRAIN bounds how many commands one drain may
// run, which bounds the latency a drain can add to a tick.
const EXECUTOR_DEFAULT_MAX_PER_DRAIN = 32

// Executor drains the queue on the engine's tick. One drain acquires the
// engine lock once and executes up to MaxPerDrain commands under it, in
// FIFO order. A failure in one command never aborts its siblings.
type Executor struct {
	Queue       *Queue
	Engine      Engine
	MaxPerDrain int
	Verbose     bool
}

// NewExecutor creates an executor over a queue and engine.
func NewExecutor(queue *Queue, eng Engine) (ex *Executor) {
	ex = &Executor{
		Queue:       queue,
		Engine:      eng,
		MaxPerDrain: EXECUTOR_DEFAULT_MAX_PER_DRAIN,
	}

	return
}

// Drain runs one pass: pops and executes queued commands, bounded by
// MaxPerDrain, under a single engine lock acquisition. Returns the number
// of commands executed. Call once per tick from the engine's own context.
func (ex *Executor) Drain() (ran int) {
	if ex.Queue.Empty() {
		return
	}

	max := ex.MaxPerDrain
	if max <= 0 {
		max = EXECUTOR_DEFAULT_MAX_PER_DRAIN
	}

	ex.Engine.Lock()
	defer ex.Engine.Unlock()

	env := NewEnv(ex.Engine)

	for ran < max {
		cmd, ok := ex.Queue.TryPop()
		if !ok {
			break
		}

		ex.run(env, cmd)
		ran++
	}

	return
}

// run executes a single command, normalizing any error or panic into the
// command's own failure outcome.
func (ex *Executor) run(env *Env, cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			if ex.Verbose {
				log.Printf("bridge: %v: panic: %v", cmd.Name(), r)
			}
			cmd.Cancel(&ErrExecution{Command: cmd.Name(), Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	err := cmd.Execute(env)
	if err == nil {
		return
	}

	if ex.Verbose {
		log.Printf("bridge: %v: %v", cmd.Name(), err)
	}

	cmd.Cancel(normalize(cmd.Name(), err))
}

// normalize passes taxonomy errors through untouched and wraps anything
// else as an execution failure.
func normalize(name string, err error) error {
	for _, known := range []error{
		ErrQueueFull, ErrCancelled, ErrTimeout,
		ErrEngineUnavailable, ErrInvalidArgument, ErrUnsafe,
	} {
		if errors.Is(err, known) {
			return err
		}
	}

	var exec *ErrExecution
	if errors.As(err, &exec) {
		return err
	}

	return &ErrExecution{Command: name, Err: err}
}
