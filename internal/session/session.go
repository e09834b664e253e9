package session

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/cache"
	"github.com/nerrad567/gray-logic-accessors/internal/suspend"
)

// ConnState is the connection state of a session.
type ConnState string

// Connection states.
const (
	Disconnected ConnState = "disconnected"
	Connecting   ConnState = "connecting"
	Connected    ConnState = "connected"
	Failed       ConnState = "failed"
)

const defaultInboxSize = 64

// Logger is the logging interface used by the session.
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

// Sender pushes an output value. *port.Registry implements it.
type Sender interface {
	Send(port string, value any) error
}

// Options configures a Session.
type Options struct {
	// ID is the accessor instance ID.
	ID string

	// Kind is the accessor kind, e.g. "hue".
	Kind string

	// Ports receives pushed output values.
	Ports Sender

	// Cache is the last-known-value cache. Defaults to an empty cache.
	Cache *cache.Cache

	// InboxSize bounds the inbox. Posts to a full inbox are dropped.
	InboxSize int

	Logger Logger
}

// Value is one observed port value.
type Value struct {
	Port  string
	Value any
}

// Stats is a snapshot of session counters.
type Stats struct {
	State       ConnState     `json:"state"`
	Events      uint64        `json:"events"`
	Dropped     uint64        `json:"dropped"`
	Failures    uint64        `json:"failures"`
	NextSeq     uint64        `json:"next_seq"`
	LastError   string        `json:"last_error,omitempty"`
	LastEventAt time.Time     `json:"last_event_at,omitempty"`
	Scheduler   suspend.Stats `json:"scheduler"`
}

// Session is the per-device state holder.
type Session struct {
	id     string
	kind   string
	ports  Sender
	cache  *cache.Cache
	sched  *suspend.Scheduler
	inbox  chan any
	logger Logger

	mu          sync.RWMutex
	state       ConnState
	conn        io.Closer
	closed      bool
	lastErr     error
	lastEventAt time.Time

	seq      atomic.Uint64
	events   atomic.Uint64
	dropped  atomic.Uint64
	failures atomic.Uint64
}

// New creates a disconnected session with a running scheduler.
func New(opts Options) *Session {
	if opts.Cache == nil {
		opts.Cache = cache.New()
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = defaultInboxSize
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	sched := suspend.NewScheduler(opts.ID)
	sched.SetLogger(opts.Logger)

	return &Session{
		id:     opts.ID,
		kind:   opts.Kind,
		ports:  opts.Ports,
		cache:  opts.Cache,
		sched:  sched,
		inbox:  make(chan any, opts.InboxSize),
		logger: opts.Logger,
		state:  Disconnected,
	}
}

// ID returns the accessor instance ID.
func (s *Session) ID() string { return s.id }

// Kind returns the accessor kind.
func (s *Session) Kind() string { return s.kind }

// Cache returns the session's last-known-value cache.
func (s *Session) Cache() *cache.Cache { return s.cache }

// Scheduler returns the session's scheduler.
func (s *Session) Scheduler() *suspend.Scheduler { return s.sched }

// Logger returns the session logger.
func (s *Session) Logger() Logger { return s.logger }

// State returns the connection state.
func (s *Session) State() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState moves the session to state.
func (s *Session) SetState(state ConnState) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()

	if prev != state {
		s.logger.Debug("session state changed", "from", prev, "to", state)
	}
}

// Attach hands conn to the session, which then owns it exclusively.
func (s *Session) Attach(conn io.Closer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.conn != nil {
		return ErrAlreadyAttached
	}
	s.conn = conn
	return nil
}

// Conn returns the attached connection, or nil.
func (s *Session) Conn() io.Closer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// Release closes the connection. A failed session stays failed.
func (s *Session) Release() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	if s.state != Failed {
		s.state = Disconnected
	}
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Fail records err, closes the connection and moves to Failed.
func (s *Session) Fail(err error) {
	s.failures.Add(1)

	s.mu.Lock()
	s.lastErr = err
	s.state = Failed
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		if cerr := conn.Close(); cerr != nil {
			s.logger.Debug("closing failed connection", "error", cerr)
		}
	}
}

// LastError returns the error recorded by the last Fail.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// NextSeq returns the next outbound sequence number, starting at 0.
func (s *Session) NextSeq() uint64 {
	return s.seq.Add(1) - 1
}

// Observe records values in the cache as one update and then pushes each
// of them, in order, out of its output port.
func (s *Session) Observe(values ...Value) {
	if len(values) == 0 {
		return
	}

	batch := make(map[string]any, len(values))
	for _, v := range values {
		batch[v.Port] = v.Value
	}
	s.cache.SetMany(batch)

	s.mu.Lock()
	s.lastEventAt = time.Now()
	s.mu.Unlock()

	for _, v := range values {
		s.events.Add(1)
		if s.ports == nil {
			continue
		}
		if err := s.ports.Send(v.Port, v.Value); err != nil {
			s.logger.Warn("pushing observed value", "port", v.Port, "error", err)
		}
	}
}

// Post queues msg for the inbox consumer without blocking. It reports
// false when the session is closed or the inbox is full.
func (s *Session) Post(msg any) bool {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return false
	}

	select {
	case s.inbox <- msg:
		return true
	default:
		n := s.dropped.Add(1)
		if n == 1 || n%100 == 0 {
			s.logger.Warn("session inbox full, dropping inbound message", "dropped", n)
		}
		return false
	}
}

// Inbox is the channel Post feeds. Consume it with suspend.Recv.
func (s *Session) Inbox() <-chan any {
	return s.inbox
}

// Done is closed when the session shuts down.
func (s *Session) Done() <-chan struct{} {
	return s.sched.Done()
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	st := Stats{
		State:       s.state,
		LastEventAt: s.lastEventAt,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	s.mu.RUnlock()

	st.Events = s.events.Load()
	st.Dropped = s.dropped.Load()
	st.Failures = s.failures.Load()
	st.NextSeq = s.seq.Load()
	st.Scheduler = s.sched.Stats()
	return st
}

// Close stops every task and releases the connection.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.sched.Stop()

	err := s.Release()
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return err
}
