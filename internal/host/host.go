package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/accessor"
	"github.com/nerrad567/gray-logic-accessors/internal/cache"
	"github.com/nerrad567/gray-logic-accessors/internal/fault"
	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-accessors/internal/port"
	"github.com/nerrad567/gray-logic-accessors/internal/session"
	"github.com/nerrad567/gray-logic-accessors/internal/suspend"
)

// DefaultCallTimeout bounds a single read or write routed through the host.
const DefaultCallTimeout = 30 * time.Second

// Status is the lifecycle state of an instance.
type Status string

// Instance statuses.
const (
	StatusStarting Status = "starting"
	StatusReady    Status = "ready"
	StatusDegraded Status = "degraded"
	StatusStopped  Status = "stopped"
)

// Spec identifies and parameterises one accessor instance.
type Spec struct {
	ID     string
	Kind   string
	Name   string
	Params accessor.Params
}

// Instance is a snapshot of a running accessor.
type Instance struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"`
	Name       string        `json:"name,omitempty"`
	Status     Status        `json:"status"`
	InitError  string        `json:"init_error,omitempty"`
	ErrorCode  string        `json:"error_code,omitempty"`
	Interfaces []string      `json:"interfaces,omitempty"`
	Ports      []port.Port   `json:"ports"`
	Bundles    []port.Bundle `json:"bundles,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
}

// Description is an Instance with its live state.
type Description struct {
	Instance
	Session session.Stats          `json:"session"`
	Values  map[string]cache.Entry `json:"values"`
	Adapter map[string]any         `json:"adapter,omitempty"`
}

// Stats summarises the host.
type Stats struct {
	Instances int            `json:"instances"`
	Ready     int            `json:"ready"`
	Degraded  int            `json:"degraded"`
	ByKind    map[string]int `json:"by_kind"`
}

// Sink receives every value pushed out of an output port.
// Deliver is called from the instance's scheduler and must not block.
type Sink interface {
	Deliver(id string, ev port.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(id string, ev port.Event)

// Deliver implements Sink.
func (f SinkFunc) Deliver(id string, ev port.Event) { f(id, ev) }

// Options configures a Host.
type Options struct {
	Kinds       accessor.Kinds
	Logger      *logging.Logger
	CallTimeout time.Duration
}

// Host owns a set of accessor instances.
type Host struct {
	kinds       accessor.Kinds
	logger      *logging.Logger
	callTimeout time.Duration

	mu        sync.RWMutex
	instances map[string]*instance
	order     []string
	stopped   bool

	sinksMu sync.RWMutex
	sinks   []Sink
}

type instance struct {
	spec      Spec
	acc       accessor.Accessor
	reg       *port.Registry
	sess      *session.Session
	startedAt time.Time

	mu      sync.RWMutex
	status  Status
	initErr error
}

// New creates an empty host. Kinds defaults to DefaultKinds.
func New(opts Options) *Host {
	if opts.Kinds == nil {
		opts.Kinds = DefaultKinds()
	}
	if opts.Logger == nil {
		opts.Logger = &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	return &Host{
		kinds:       opts.Kinds,
		logger:      opts.Logger,
		callTimeout: opts.CallTimeout,
		instances:   make(map[string]*instance),
	}
}

// AddSink registers s for every subsequent output event.
func (h *Host) AddSink(s Sink) {
	h.sinksMu.Lock()
	h.sinks = append(h.sinks, s)
	h.sinksMu.Unlock()
}

func (h *Host) fanout(id string, ev port.Event) {
	h.sinksMu.RLock()
	sinks := h.sinks
	h.sinksMu.RUnlock()

	for _, s := range sinks {
		s.Deliver(id, ev)
	}
}

// Start sets up and initialises one accessor. Setup errors are returned
// and nothing is kept. Init errors are logged and leave the instance
// registered as degraded. If ctx ends first, Start returns the instance
// still starting and Init settles its status when it returns.
func (h *Host) Start(ctx context.Context, spec Spec) (Instance, error) {
	if spec.ID == "" {
		return Instance{}, fmt.Errorf("%w: accessor id is required", fault.ErrConfiguration)
	}

	h.mu.RLock()
	_, exists := h.instances[spec.ID]
	stopped := h.stopped
	h.mu.RUnlock()
	if stopped {
		return Instance{}, ErrStopped
	}
	if exists {
		return Instance{}, fmt.Errorf("%w: %w: %q", fault.ErrConfiguration, ErrDuplicateInstance, spec.ID)
	}

	acc, err := h.kinds.New(spec.Kind)
	if err != nil {
		return Instance{}, err
	}

	params := spec.Params.Clone()
	reg := port.NewRegistry()
	if err := acc.Setup(reg, params); err != nil {
		return Instance{}, fmt.Errorf("setting up accessor %q: %w", spec.ID, err)
	}
	reg.Seal()

	var outputs []string
	for _, p := range reg.Ports() {
		if p.Direction.Accepts(port.Output) {
			outputs = append(outputs, p.Name)
		}
	}

	log := h.logger.With("accessor", spec.ID, "kind", spec.Kind)
	sess := session.New(session.Options{
		ID:     spec.ID,
		Kind:   spec.Kind,
		Ports:  reg,
		Cache:  cache.New(outputs...),
		Logger: log,
	})
	id := spec.ID
	reg.SetEmitter(port.EmitterFunc(func(ev port.Event) { h.fanout(id, ev) }))

	inst := &instance{
		spec:      spec,
		acc:       acc,
		reg:       reg,
		sess:      sess,
		startedAt: time.Now(),
		status:    StatusStarting,
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		_ = sess.Close()
		return Instance{}, ErrStopped
	}
	if _, dup := h.instances[spec.ID]; dup {
		h.mu.Unlock()
		_ = sess.Close()
		return Instance{}, fmt.Errorf("%w: %w: %q", fault.ErrConfiguration, ErrDuplicateInstance, spec.ID)
	}
	h.instances[spec.ID] = inst
	h.order = append(h.order, spec.ID)
	h.mu.Unlock()

	rt := accessor.Runtime{Ports: reg, Session: sess, Params: params, Logger: log}
	_, err = sess.Scheduler().Call(ctx, "init", func(t *suspend.Task) (any, error) {
		initErr := acc.Init(t, rt)
		inst.finishInit(log, initErr, len(reg.Ports()))
		return nil, initErr
	})
	switch {
	case err == nil:
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// Init keeps running and settles the status when it returns.
		log.Warn("stopped waiting for accessor init", "error", err)
	default:
		// panicked or stopped before reporting
		inst.finishInit(log, err, len(reg.Ports()))
	}
	return inst.snapshot(), nil
}

func (h *Host) lookup(id string) (*instance, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return nil, ErrStopped
	}
	inst, ok := h.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInstanceNotFound, id)
	}
	return inst, nil
}

// Write routes a port or bundle write onto the instance's scheduler.
func (h *Host) Write(ctx context.Context, id, name string, value any) error {
	inst, err := h.lookup(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, h.callTimeout)
	defer cancel()

	_, err = inst.sess.Scheduler().Call(ctx, "write "+name, func(t *suspend.Task) (any, error) {
		return nil, inst.reg.Write(t, name, value)
	})
	return err
}

// Read routes a port or bundle read onto the instance's scheduler.
func (h *Host) Read(ctx context.Context, id, name string) (any, error) {
	inst, err := h.lookup(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, h.callTimeout)
	defer cancel()

	return inst.sess.Scheduler().Call(ctx, "read "+name, func(t *suspend.Task) (any, error) {
		return inst.reg.Read(t, name)
	})
}

// Has reports whether id has a port or bundle called name.
func (h *Host) Has(id, name string) bool {
	inst, err := h.lookup(id)
	if err != nil {
		return false
	}
	return inst.reg.Has(name)
}

// Instance returns a snapshot of one instance.
func (h *Host) Instance(id string) (Instance, error) {
	inst, err := h.lookup(id)
	if err != nil {
		return Instance{}, err
	}
	return inst.snapshot(), nil
}

// Instances returns snapshots in start order.
func (h *Host) Instances() []Instance {
	h.mu.RLock()
	insts := make([]*instance, 0, len(h.order))
	for _, id := range h.order {
		insts = append(insts, h.instances[id])
	}
	h.mu.RUnlock()

	out := make([]Instance, 0, len(insts))
	for _, inst := range insts {
		out = append(out, inst.snapshot())
	}
	return out
}

// Describe returns the instance with its session stats and cached values.
func (h *Host) Describe(id string) (Description, error) {
	inst, err := h.lookup(id)
	if err != nil {
		return Description{}, err
	}

	d := Description{
		Instance: inst.snapshot(),
		Session:  inst.sess.Stats(),
		Values:   inst.sess.Cache().Entries(),
	}
	if r, ok := inst.acc.(accessor.Reporter); ok {
		d.Adapter = r.Report()
	}
	return d, nil
}

// SessionStats returns the session counters for every instance.
func (h *Host) SessionStats() map[string]session.Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]session.Stats, len(h.instances))
	for id, inst := range h.instances {
		out[id] = inst.sess.Stats()
	}
	return out
}

// Stats counts instances by status and kind.
func (h *Host) Stats() Stats {
	st := Stats{ByKind: make(map[string]int)}
	for _, inst := range h.Instances() {
		st.Instances++
		st.ByKind[inst.Kind]++
		switch inst.Status {
		case StatusReady:
			st.Ready++
		case StatusDegraded:
			st.Degraded++
		}
	}
	return st
}

// Remove closes and forgets one instance.
func (h *Host) Remove(id string) error {
	h.mu.Lock()
	inst, ok := h.instances[id]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrInstanceNotFound, id)
	}
	delete(h.instances, id)
	for i, oid := range h.order {
		if oid == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	h.mu.Unlock()

	return inst.close(h.logger)
}

// Stop closes every instance. Later calls return ErrStopped.
func (h *Host) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	insts := make([]*instance, 0, len(h.order))
	for _, id := range h.order {
		insts = append(insts, h.instances[id])
	}
	h.mu.Unlock()

	for _, inst := range insts {
		if err := inst.close(h.logger); err != nil {
			h.logger.Warn("closing accessor", "accessor", inst.spec.ID, "error", err)
		}
	}
	h.logger.Info("accessor host stopped", "instances", len(insts))
}

func (inst *instance) close(log *logging.Logger) error {
	inst.mu.Lock()
	inst.status = StatusStopped
	inst.mu.Unlock()

	err := inst.sess.Close()
	if cerr := inst.acc.Close(); cerr != nil && err == nil {
		err = cerr
	}
	log.Debug("accessor closed", "accessor", inst.spec.ID)
	return err
}

// finishInit settles a starting instance as ready or degraded. Later calls
// are ignored.
func (inst *instance) finishInit(log *logging.Logger, err error, ports int) {
	inst.mu.Lock()
	if inst.status != StatusStarting {
		inst.mu.Unlock()
		return
	}
	if err != nil {
		inst.status = StatusDegraded
		inst.initErr = err
	} else {
		inst.status = StatusReady
	}
	inst.mu.Unlock()

	if err != nil {
		log.Error("accessor init failed", "error", err, "code", fault.Code(err))
	} else {
		log.Info("accessor started", "ports", ports)
	}
}

func (inst *instance) snapshot() Instance {
	inst.mu.RLock()
	status, initErr := inst.status, inst.initErr
	inst.mu.RUnlock()

	out := Instance{
		ID:        inst.spec.ID,
		Kind:      inst.spec.Kind,
		Name:      inst.spec.Name,
		Status:    status,
		Ports:     inst.reg.Ports(),
		Bundles:   inst.reg.Bundles(),
		StartedAt: inst.startedAt,
	}
	if initErr != nil {
		out.InitError = initErr.Error()
		out.ErrorCode = fault.Code(initErr)
	}
	if d, ok := inst.acc.(accessor.Describer); ok {
		out.Interfaces = d.Interfaces()
	}
	return out
}
