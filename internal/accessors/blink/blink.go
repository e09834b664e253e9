package blink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/accessor"
	"github.com/nerrad567/gray-logic-accessors/internal/fault"
	"github.com/nerrad567/gray-logic-accessors/internal/port"
	"github.com/nerrad567/gray-logic-accessors/internal/session"
	"github.com/nerrad567/gray-logic-accessors/internal/suspend"
)

// Kind is the accessor kind name.
const Kind = "blink"

// Port names.
const (
	PortCurrentMotion      = "Current_motion"
	PortMotionSinceLastAdv = "Motion_since_last_adv"
	PortMotionLastMin      = "Motion_last_min"
)

// Ports lists the output ports in declaration order.
var Ports = []string{PortCurrentMotion, PortMotionSinceLastAdv, PortMotionLastMin}

// Parameter defaults.
const (
	DefaultNamePrefix     = "squall+PIR"
	DefaultAcquireTimeout = 5 * time.Second
)

// State is the scanner state machine.
type State string

// Scanner states.
const (
	StateUninitialized       State = "uninitialized"
	StateScanning            State = "scanning"
	StateHardwareUnavailable State = "hardware_unavailable"
)

// Stats counts advertisements by outcome.
type Stats struct {
	Seen      uint64 `json:"seen"`
	Accepted  uint64 `json:"accepted"`
	Discarded uint64 `json:"discarded"`
}

type scanStopped struct{ err error }

// Accessor listens for one sensor's advertisements.
type Accessor struct {
	open           Opener
	filter         Filter
	acquireTimeout time.Duration

	logger accessor.Logger
	sess   *session.Session

	mu        sync.RWMutex
	state     State
	hwLogged  bool
	hwErr     error
	seen      atomic.Uint64
	accepted  atomic.Uint64
	discarded atomic.Uint64
}

// New returns an accessor using the host's HCI adapter.
func New() accessor.Accessor {
	return NewWithOpener(OpenHCI)
}

// NewWithOpener returns an accessor acquiring its scanner from open.
func NewWithOpener(open Opener) *Accessor {
	return &Accessor{open: open, state: StateUninitialized}
}

// Interfaces implements accessor.Describer.
func (a *Accessor) Interfaces() []string {
	return []string{"/sensing/motion"}
}

// Setup reads the filter params and declares the three motion ports.
func (a *Accessor) Setup(reg *port.Registry, params accessor.Params) error {
	a.filter = NewFilter(params.List("mac_address"), params.String("name_prefix", DefaultNamePrefix))

	var err error
	if a.acquireTimeout, err = params.Millis("acquire_timeout_ms", DefaultAcquireTimeout); err != nil {
		return err
	}

	for _, name := range Ports {
		if err := reg.DeclarePort(name, port.Output, port.Meta{Type: port.Numeric, Units: "times"}); err != nil {
			return err
		}
	}
	return nil
}

// Init binds the outputs, acquires the radio and starts scanning.
func (a *Accessor) Init(t *suspend.Task, rt accessor.Runtime) error {
	a.logger = rt.Log()
	a.sess = rt.Session

	for _, name := range Ports {
		if err := rt.Ports.BindOutput(name, a.reader(name)); err != nil {
			return err
		}
	}

	scanner, err := suspend.Await(t, a.acquireTimeout, func(ctx context.Context) (Scanner, error) {
		return a.open(ctx)
	})
	if err != nil {
		err = fmt.Errorf("%w: acquiring BLE adapter: %w", fault.ErrDeviceUnavailable, err)
		a.hardwareUnavailable(err)
		return err
	}
	if err := a.sess.Attach(scanner); err != nil {
		_ = scanner.Close()
		return err
	}

	a.mu.Lock()
	a.state = StateScanning
	a.mu.Unlock()
	a.sess.SetState(session.Connected)

	go a.scan(t.Context(), scanner)
	if err := a.sess.Scheduler().Go("advertisements", a.consume); err != nil {
		return err
	}

	a.logger.Info("BLE scan started", "name_prefix", a.filter.namePrefix)
	return nil
}

// Close implements accessor.Accessor. The session owns the scanner.
func (a *Accessor) Close() error {
	return nil
}

// State returns the scanner state.
func (a *Accessor) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Stats returns the advertisement counters.
func (a *Accessor) Stats() Stats {
	return Stats{
		Seen:      a.seen.Load(),
		Accepted:  a.accepted.Load(),
		Discarded: a.discarded.Load(),
	}
}

// Report implements accessor.Reporter.
func (a *Accessor) Report() map[string]any {
	return map[string]any{"state": a.State(), "advertisements": a.Stats()}
}

func (a *Accessor) hardwareUnavailable(err error) {
	a.mu.Lock()
	a.state = StateHardwareUnavailable
	a.hwErr = err
	first := !a.hwLogged
	a.hwLogged = true
	a.mu.Unlock()

	a.sess.Fail(err)
	if first {
		a.logger.Error("unable to access a BLE adapter; motion ports will report no data", "error", err)
	}
}

// scan runs the radio until the session stops it.
func (a *Accessor) scan(ctx context.Context, scanner Scanner) {
	err := scanner.Scan(ctx, func(adv Advertisement) {
		a.seen.Add(1)
		a.sess.Post(adv)
	})
	if ctx.Err() != nil || err == nil || errors.Is(err, context.Canceled) {
		return
	}
	if !a.sess.Post(scanStopped{err: err}) {
		a.hardwareUnavailable(fmt.Errorf("%w: BLE scan stopped: %w", fault.ErrDeviceUnavailable, err))
	}
}

func (a *Accessor) consume(t *suspend.Task) {
	for {
		msg, ok := suspend.Recv(t, a.sess.Inbox())
		if !ok {
			return
		}
		switch m := msg.(type) {
		case Advertisement:
			a.handle(m)
		case scanStopped:
			a.hardwareUnavailable(fmt.Errorf("%w: BLE scan stopped: %w", fault.ErrDeviceUnavailable, m.err))
			return
		}
	}
}

// handle filters and decodes one advertisement.
func (a *Accessor) handle(adv Advertisement) {
	if !a.filter.Match(adv) {
		a.discarded.Add(1)
		return
	}
	r, ok := Decode(adv.ManufacturerData)
	if !ok {
		a.discarded.Add(1)
		return
	}
	a.accepted.Add(1)

	a.sess.Observe(
		session.Value{Port: PortCurrentMotion, Value: float64(r.CurrentMotion)},
		session.Value{Port: PortMotionSinceLastAdv, Value: float64(r.MotionSinceLastAdv)},
		session.Value{Port: PortMotionLastMin, Value: float64(r.MotionLastMin)},
	)
}

func (a *Accessor) reader(name string) port.OutputHandler {
	return func(*suspend.Task) (any, error) {
		a.mu.RLock()
		state, hwErr := a.state, a.hwErr
		a.mu.RUnlock()

		if state == StateHardwareUnavailable {
			return nil, fmt.Errorf("%w: BLE adapter unavailable: %v", fault.ErrNoDataAvailable, hwErr)
		}

		v, err := a.sess.Cache().Get(name)
		if err != nil {
			a.logger.Warn("no matching BLINK advertisement has been seen yet", "port", name, "name_prefix", a.filter.namePrefix)
			return nil, err
		}
		return v, nil
	}
}
