package suspend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/fault"
)

// Task is one unit of work on a Scheduler. A Task must only be used from
// the function it was handed to.
type Task struct {
	s    *Scheduler
	name string
	ctx  context.Context
	held bool
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Context is cancelled when the scheduler stops.
func (t *Task) Context() context.Context { return t.ctx }

func (t *Task) acquire() error {
	select {
	case t.s.turn <- struct{}{}:
		t.held = true
		return nil
	case <-t.ctx.Done():
		return ErrStopped
	}
}

func (t *Task) release() {
	if t.held {
		t.held = false
		<-t.s.turn
	}
}

// Await runs op off the scheduler turn and resumes t with its result.
// op receives a context that expires after timeout.
func Await[T any](t *Task, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if timeout <= 0 {
		return zero, fmt.Errorf("%w: task %q suspended without a timeout", fault.ErrConfiguration, t.name)
	}

	s := t.s
	s.suspensions.Add(1)

	ctx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()

	done := make(chan outcome[T], 1)
	start := time.Now()

	t.release()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{err: fmt.Errorf("%w: %v", ErrTaskPanicked, r)}
			}
		}()
		v, err := op(ctx)
		done <- outcome[T]{v: v, err: err}
	}()

	var out outcome[T]
	select {
	case out = <-done:
	case <-ctx.Done():
		select {
		case out = <-done:
		default:
			out.err = ctx.Err()
		}
	}

	if err := t.acquire(); err != nil {
		return zero, err
	}

	err := t.classify(ctx, timeout, out.err)
	s.observe(t.name, time.Since(start), err)
	if err != nil {
		return zero, err
	}
	return out.v, nil
}

// classify maps a raw operation error onto the fault kinds.
func (t *Task) classify(ctx context.Context, timeout time.Duration, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTaskPanicked):
		return err
	case t.ctx.Err() != nil:
		return ErrStopped
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		t.s.timeouts.Add(1)
		return fmt.Errorf("%w: task %q timed out after %s", fault.ErrTransportFailure, t.name, timeout)
	case fault.HasKind(err):
		return err
	default:
		return fmt.Errorf("%w: %w", fault.ErrTransportFailure, err)
	}
}

// Recv waits for the next value on ch without holding the turn. ok is false
// when ch is closed or the scheduler stopped.
func Recv[T any](t *Task, ch <-chan T) (v T, ok bool) {
	t.release()
	select {
	case v, ok = <-ch:
	case <-t.ctx.Done():
	}
	if err := t.acquire(); err != nil {
		var zero T
		return zero, false
	}
	return v, ok
}
