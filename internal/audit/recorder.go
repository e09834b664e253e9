package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultQueue = 256

// Logger is the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder queues entries and writes them from a single goroutine, so
// request handlers never wait on SQLite. Entries beyond the queue are
// dropped. A nil *Recorder discards everything.
type Recorder struct {
	repo   Repository
	logger Logger
	queue  chan *Entry

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	started  atomic.Bool

	dropped atomic.Uint64
}

// NewRecorder creates a recorder over repo. Call Start to begin writing.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		repo:   repo,
		logger: logger,
		queue:  make(chan *Entry, defaultQueue),
		done:   make(chan struct{}),
	}
}

// Record enqueues e without blocking.
func (r *Recorder) Record(e Entry) {
	if r == nil {
		return
	}
	select {
	case <-r.done:
		return
	default:
	}
	select {
	case r.queue <- &e:
	default:
		r.dropped.Add(1)
		r.logger.Warn("audit queue full, dropping entry", "action", e.Action, "accessor", e.AccessorID)
	}
}

// List reads entries straight from the repository.
func (r *Recorder) List(ctx context.Context, filter Filter) (*ListResult, error) {
	return r.repo.List(ctx, filter)
}

// Dropped counts entries lost to a full queue.
func (r *Recorder) Dropped() uint64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Start writes queued entries until ctx ends or Stop is called, then
// drains what is left.
func (r *Recorder) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case e := <-r.queue:
				r.write(e)
			case <-ctx.Done():
				r.drain()
				return
			case <-r.done:
				r.drain()
				return
			}
		}
	}()
}

func (r *Recorder) drain() {
	for {
		select {
		case e := <-r.queue:
			r.write(e)
		default:
			return
		}
	}
}

func (r *Recorder) write(e *Entry) {
	if err := r.repo.Create(context.Background(), e); err != nil {
		r.logger.Error("audit write failed", "action", e.Action, "accessor", e.AccessorID, "error", err)
	}
}

// Stop flushes the queue and waits for the writer to exit.
func (r *Recorder) Stop() {
	if r == nil {
		return
	}
	r.stopOnce.Do(func() { close(r.done) })
	r.wg.Wait()
}
