package statemirror

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/port"
)

const (
	defaultPrefix     = "accessorhost:lkv"
	defaultQueue      = 512
	writeTimeout      = 2 * time.Second
	dropLogEvery      = 100
	failureLogEvery   = 100
	forgetScanTimeout = 5 * time.Second
)

// Value is what the mirror stores per port.
type Value struct {
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger is the logging interface used by the mirror.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Mirror.
type Options struct {
	Prefix string
	TTL    time.Duration
	Queue  int
	Logger Logger
}

// Stats counts mirror traffic.
type Stats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

type update struct {
	id string
	ev port.Event
}

// Mirror writes port events into a Store from a single worker.
type Mirror struct {
	store  Store
	prefix string
	ttl    time.Duration
	logger Logger

	queue    chan update
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// New creates a mirror over store. Call Start to begin writing.
func New(store Store, opts Options) *Mirror {
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.Queue <= 0 {
		opts.Queue = defaultQueue
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Mirror{
		store:  store,
		prefix: strings.TrimSuffix(opts.Prefix, ":"),
		ttl:    opts.TTL,
		logger: opts.Logger,
		queue:  make(chan update, opts.Queue),
		done:   make(chan struct{}),
	}
}

// Key returns the store key for one port.
func (m *Mirror) Key(id, portName string) string {
	return m.prefix + ":" + id + ":" + portName
}

// Deliver implements host.Sink.
func (m *Mirror) Deliver(id string, ev port.Event) {
	select {
	case <-m.done:
		return
	default:
	}
	select {
	case m.queue <- update{id: id, ev: ev}:
	default:
		if n := m.dropped.Add(1); n == 1 || n%dropLogEvery == 0 {
			m.logger.Warn("state mirror queue full, dropping value", "accessor", id, "port", ev.Port, "dropped", n)
		}
	}
}

// Start runs the writer until ctx ends or Stop is called. Queued values
// are written before the worker exits.
func (m *Mirror) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case u := <-m.queue:
				m.write(ctx, u)
			case <-ctx.Done():
				return
			case <-m.done:
				m.drain(ctx)
				return
			}
		}
	}()
}

func (m *Mirror) drain(ctx context.Context) {
	for {
		select {
		case u := <-m.queue:
			m.write(ctx, u)
		default:
			return
		}
	}
}

// Stop drains the queue and stops the worker.
func (m *Mirror) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
	})
}

func (m *Mirror) write(ctx context.Context, u update) {
	data, err := json.Marshal(Value{Value: u.ev.Value, Timestamp: u.ev.Time.UTC()})
	if err != nil {
		m.fail(u, err)
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := m.store.Set(wctx, m.Key(u.id, u.ev.Port), data, m.ttl); err != nil {
		m.fail(u, err)
		return
	}
	m.written.Add(1)
}

func (m *Mirror) fail(u update, err error) {
	if n := m.failed.Add(1); n == 1 || n%failureLogEvery == 0 {
		m.logger.Warn("state mirror write failed", "accessor", u.id, "port", u.ev.Port, "error", err, "failed", n)
	}
}

// Get reads one mirrored value.
func (m *Mirror) Get(ctx context.Context, id, portName string) (Value, error) {
	data, err := m.store.Get(ctx, m.Key(id, portName))
	if err != nil {
		return Value{}, err
	}
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{}, fmt.Errorf("decoding mirrored value: %w", err)
	}
	return v, nil
}

// Snapshot reads every mirrored value of one accessor, keyed by port.
func (m *Mirror) Snapshot(ctx context.Context, id string) (map[string]Value, error) {
	keys, err := m.store.Keys(ctx, m.prefix+":"+id+":*")
	if err != nil {
		return nil, err
	}
	out := make(map[string]Value, len(keys))
	base := m.prefix + ":" + id + ":"
	for _, k := range keys {
		name := strings.TrimPrefix(k, base)
		v, err := m.Get(ctx, id, name)
		if err != nil {
			continue
		}
		out[name] = v
	}
	return out, nil
}

// Forget deletes every mirrored value of one accessor.
func (m *Mirror) Forget(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, forgetScanTimeout)
	defer cancel()
	keys, err := m.store.Keys(ctx, m.prefix+":"+id+":*")
	if err != nil {
		return err
	}
	return m.store.Del(ctx, keys...)
}

// Stats returns traffic counters.
func (m *Mirror) Stats() Stats {
	return Stats{
		Written: m.written.Load(),
		Dropped: m.dropped.Load(),
		Failed:  m.failed.Load(),
	}
}
