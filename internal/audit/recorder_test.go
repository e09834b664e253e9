package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type memRepo struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (m *memRepo) Create(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memRepo) List(context.Context, Filter) (*ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &ListResult{Entries: append([]Entry(nil), m.entries...), Total: len(m.entries)}, nil
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func TestRecorder_StopFlushes(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, nil)
	rec.Start(context.Background())

	for i := 0; i < 10; i++ {
		rec.Record(Entry{Action: ActionWrite, AccessorID: "lamp", Source: SourceAPI})
	}
	rec.Stop()

	if got := repo.count(); got != 10 {
		t.Errorf("written = %d, want 10", got)
	}

	rec.Record(Entry{Action: ActionWrite, AccessorID: "lamp"})
	rec.Stop()
	if got := repo.count(); got != 10 {
		t.Errorf("written after stop = %d, want 10", got)
	}

	res, err := rec.List(context.Background(), Filter{})
	if err != nil || res.Total != 10 {
		t.Errorf("List = %v, %v", res, err)
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	rec := NewRecorder(&memRepo{}, nil)

	for i := 0; i < defaultQueue+3; i++ {
		rec.Record(Entry{Action: ActionWrite, AccessorID: "lamp"})
	}
	if got := rec.Dropped(); got != 3 {
		t.Errorf("Dropped = %d, want 3", got)
	}
}

func TestRecorder_WriteErrorsAreLogged(t *testing.T) {
	repo := &memRepo{err: errors.New("disk full")}
	log := &recordingLogger{}
	rec := NewRecorder(repo, log)
	rec.Start(context.Background())

	rec.Record(Entry{Action: ActionDelete, AccessorID: "robot"})
	rec.Stop()

	if log.errors() != 1 {
		t.Errorf("logged errors = %d, want 1", log.errors())
	}
}

func TestRecorder_Nil(t *testing.T) {
	var rec *Recorder
	rec.Record(Entry{Action: ActionWrite})
	rec.Stop()
	if rec.Dropped() != 0 {
		t.Error("nil recorder reported drops")
	}
}

type recordingLogger struct {
	mu   sync.Mutex
	errs int
}

func (l *recordingLogger) Warn(string, ...any) {}

func (l *recordingLogger) Error(string, ...any) {
	l.mu.Lock()
	l.errs++
	l.mu.Unlock()
}

func (l *recordingLogger) errors() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errs
}
