package suspend

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Logger is the logging interface used by the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer is told about every completed suspension. err is the classified
// error returned to the task.
type Observer func(task string, waited time.Duration, err error)

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Tasks       uint64 `json:"tasks"`
	Suspensions uint64 `json:"suspensions"`
	Timeouts    uint64 `json:"timeouts"`
	Panics      uint64 `json:"panics"`
}

// Scheduler serialises the tasks of one device session.
type Scheduler struct {
	name string
	turn chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	stopped  bool
	logger   Logger
	observer Observer

	tasks       atomic.Uint64
	suspensions atomic.Uint64
	timeouts    atomic.Uint64
	panics      atomic.Uint64
}

// NewScheduler creates a running scheduler. name shows up in logs.
func NewScheduler(name string) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		name:   name,
		turn:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		logger: noopLogger{},
	}
}

// SetLogger sets the scheduler's logger.
func (s *Scheduler) SetLogger(l Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l == nil {
		l = noopLogger{}
	}
	s.logger = l
}

// SetObserver installs a hook called after each suspension completes.
func (s *Scheduler) SetObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = o
}

// Name returns the scheduler name.
func (s *Scheduler) Name() string { return s.name }

// Go starts fn as a new task. It returns ErrStopped after Stop.
func (s *Scheduler) Go(name string, fn func(t *Task)) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		t := &Task{s: s, name: name, ctx: s.ctx}
		if err := t.acquire(); err != nil {
			return
		}
		defer t.release()
		defer func() {
			if r := recover(); r != nil {
				s.panics.Add(1)
				s.log().Error("task panicked", "scheduler", s.name, "task", name, "panic", r)
			}
		}()

		s.tasks.Add(1)
		fn(t)
	}()
	return nil
}

// Call runs fn as a task and waits for its result. If ctx ends first, Call
// returns ctx.Err() and the task keeps running to completion.
func (s *Scheduler) Call(ctx context.Context, name string, fn func(t *Task) (any, error)) (any, error) {
	done := make(chan outcome[any], 1)

	err := s.Go(name, func(t *Task) {
		defer func() {
			if r := recover(); r != nil {
				s.panics.Add(1)
				s.log().Error("task panicked", "scheduler", s.name, "task", name, "panic", r)
				done <- outcome[any]{err: fmt.Errorf("%w: %s: %v", ErrTaskPanicked, name, r)}
			}
		}()
		v, err := fn(t)
		done <- outcome[any]{v: v, err: err}
	})
	if err != nil {
		return nil, err
	}

	select {
	case out := <-done:
		return out.v, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ctx.Done():
		select {
		case out := <-done:
			return out.v, out.err
		default:
			return nil, ErrStopped
		}
	}
}

// Stop cancels every pending suspension and waits for all tasks to return.
// Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Done is closed once Stop has been called.
func (s *Scheduler) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Tasks:       s.tasks.Load(),
		Suspensions: s.suspensions.Load(),
		Timeouts:    s.timeouts.Load(),
		Panics:      s.panics.Load(),
	}
}

func (s *Scheduler) log() Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger
}

func (s *Scheduler) observe(task string, waited time.Duration, err error) {
	s.mu.Lock()
	o := s.observer
	s.mu.Unlock()
	if o != nil {
		o(task, waited, err)
	}
}

type outcome[T any] struct {
	v   T
	err error
}
