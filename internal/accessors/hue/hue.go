package hue

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/accessor"
	"github.com/nerrad567/gray-logic-accessors/internal/fault"
	"github.com/nerrad567/gray-logic-accessors/internal/port"
	"github.com/nerrad567/gray-logic-accessors/internal/session"
	"github.com/nerrad567/gray-logic-accessors/internal/suspend"
)

// Kind is the accessor kind name.
const Kind = "hue"

// DefaultTimeout bounds every bridge call.
const DefaultTimeout = 3000 * time.Millisecond

// ColorPlaceholder is what a Color read returns. Color readback is not
// implemented.
const ColorPlaceholder = "#fff"

// Port names.
const (
	PortPower      = "Power"
	PortColor      = "Color"
	PortBrightness = "Brightness"
	PortPCB        = "PCB"
)

// State is the accessor's lifecycle state.
type State string

// Lifecycle states.
const (
	StateUninitialized State = "uninitialized"
	StateLayoutFetched State = "layout_fetched"
	StateReady         State = "ready"
	StateUnavailable   State = "unavailable"
)

// Accessor controls one bulb.
type Accessor struct {
	doer Doer

	client   *Client
	bulbName string
	timeout  time.Duration
	logger   accessor.Logger

	mu             sync.RWMutex
	state          State
	layout         Layout
	unavailableErr error
	colorWarned    bool
}

// New returns an accessor using http.DefaultClient.
func New() accessor.Accessor {
	return NewWithDoer(nil)
}

// NewWithDoer returns an accessor sending requests through doer.
func NewWithDoer(doer Doer) *Accessor {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Accessor{doer: doer, state: StateUninitialized}
}

// Interfaces implements accessor.Describer.
func (a *Accessor) Interfaces() []string {
	return []string{"/lighting/light", "/lighting/hue"}
}

// Setup validates params and declares the ports.
func (a *Accessor) Setup(reg *port.Registry, params accessor.Params) error {
	bridgeURL, err := params.Require("bridge_url")
	if err != nil {
		return err
	}
	username, err := params.Require("username")
	if err != nil {
		return err
	}
	if a.bulbName, err = params.Require("bulb_name"); err != nil {
		return err
	}
	if a.timeout, err = params.Millis("timeout_ms", DefaultTimeout); err != nil {
		return err
	}
	if a.client, err = NewClient(bridgeURL, username, a.doer); err != nil {
		return err
	}

	decls := []struct {
		name string
		dir  port.Direction
		meta port.Meta
	}{
		{PortPower, port.InOut, port.Meta{Type: port.Bool, Description: "bulb on/off"}},
		{PortColor, port.InOut, port.Meta{Type: port.String, Description: "hex color, reads return " + ColorPlaceholder}},
		{PortBrightness, port.InOut, port.Meta{Type: port.Numeric, Units: "0-255"}},
		{PortPCB, port.Input, port.Meta{Type: port.Object, Description: "combined {Power, Color, Brightness} write"}},
	}
	for _, d := range decls {
		if err := reg.DeclarePort(d.name, d.dir, d.meta); err != nil {
			return err
		}
	}
	return nil
}

// Init binds the port handlers and fetches the layout.
func (a *Accessor) Init(t *suspend.Task, rt accessor.Runtime) error {
	a.logger = rt.Log()

	bindings := []error{
		rt.Ports.BindInput(PortPower, a.writePower),
		rt.Ports.BindOutput(PortPower, a.readPower),
		rt.Ports.BindInput(PortColor, a.writeColor),
		rt.Ports.BindOutput(PortColor, a.readColor),
		rt.Ports.BindInput(PortBrightness, a.writeBrightness),
		rt.Ports.BindOutput(PortBrightness, a.readBrightness),
		rt.Ports.BindInput(PortPCB, a.writeCombined),
	}
	for _, err := range bindings {
		if err != nil {
			return err
		}
	}

	rt.Session.SetState(session.Connecting)
	layout, err := a.client.FetchLayout(t, a.timeout)
	if err != nil {
		err = fmt.Errorf("%w: fetching light layout: %w", fault.ErrDeviceUnavailable, err)
		a.markUnavailable(err)
		rt.Session.Fail(err)
		return err
	}

	a.mu.Lock()
	a.layout = layout
	a.state = StateLayoutFetched
	a.mu.Unlock()

	if _, ok := layout.Resolve(a.bulbName); !ok {
		a.logger.Warn("configured bulb not in layout", "bulb_name", a.bulbName, "lights", len(layout))
	}

	a.mu.Lock()
	a.state = StateReady
	a.mu.Unlock()
	rt.Session.SetState(session.Connected)

	a.logger.Info("hue layout fetched", "lights", len(layout))
	return nil
}

// Close implements accessor.Accessor. The bridge holds no connection.
func (a *Accessor) Close() error {
	return nil
}

// State returns the lifecycle state.
func (a *Accessor) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Report implements accessor.Reporter.
func (a *Accessor) Report() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return map[string]any{"state": a.state, "bulb": a.bulbName}
}

func (a *Accessor) markUnavailable(err error) {
	a.mu.Lock()
	a.state = StateUnavailable
	a.unavailableErr = err
	a.mu.Unlock()

	a.logger.Error("hue bridge unavailable; port operations will fail until restart", "error", err)
}

// resolveBulb maps the configured bulb name to its bridge ID.
func (a *Accessor) resolveBulb() (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.state != StateReady {
		if a.unavailableErr != nil {
			return "", a.unavailableErr
		}
		return "", fmt.Errorf("%w: layout not fetched", fault.ErrDeviceUnavailable)
	}
	id, ok := a.layout.Resolve(a.bulbName)
	if !ok {
		return "", fmt.Errorf("%w: bulb %q not in layout", fault.ErrDeviceUnavailable, a.bulbName)
	}
	return id, nil
}

func (a *Accessor) put(t *suspend.Task, st LightState) error {
	id, err := a.resolveBulb()
	if err != nil {
		return err
	}
	return a.client.PutState(t, a.timeout, id, st)
}

func (a *Accessor) get(t *suspend.Task) (LightState, error) {
	id, err := a.resolveBulb()
	if err != nil {
		return LightState{}, err
	}
	return a.client.GetState(t, a.timeout, id)
}

func (a *Accessor) writePower(t *suspend.Task, v any) error {
	on := v.(bool)
	return a.put(t, LightState{On: &on})
}

func (a *Accessor) readPower(t *suspend.Task) (any, error) {
	st, err := a.get(t)
	if err != nil {
		return nil, err
	}
	if st.On == nil {
		return nil, fmt.Errorf("%w: bridge state has no \"on\" field", fault.ErrNoDataAvailable)
	}
	return *st.On, nil
}

func (a *Accessor) writeColor(t *suspend.Task, v any) error {
	c, err := HexToHSB(v.(string))
	if err != nil {
		return err
	}
	return a.put(t, LightState{Hue: &c.Hue, Sat: &c.Sat, Bri: &c.Bri})
}

// readColor returns ColorPlaceholder once the bulb resolves.
func (a *Accessor) readColor(*suspend.Task) (any, error) {
	if _, err := a.resolveBulb(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	warned := a.colorWarned
	a.colorWarned = true
	a.mu.Unlock()
	if !warned {
		a.logger.Warn("color readback is not supported; returning placeholder", "placeholder", ColorPlaceholder)
	}
	return ColorPlaceholder, nil
}

func (a *Accessor) writeBrightness(t *suspend.Task, v any) error {
	bri := brightness(v.(float64))
	return a.put(t, LightState{Bri: &bri})
}

func (a *Accessor) readBrightness(t *suspend.Task) (any, error) {
	st, err := a.get(t)
	if err != nil {
		return nil, err
	}
	if st.Bri == nil {
		return nil, fmt.Errorf("%w: bridge state has no \"bri\" field", fault.ErrNoDataAvailable)
	}
	return float64(*st.Bri), nil
}

// writeCombined merges Power, Color and Brightness into one PUT. Brightness
// overrides the brightness implied by Color.
func (a *Accessor) writeCombined(t *suspend.Task, v any) error {
	fields := v.(map[string]any)
	var st LightState

	if raw, ok := fields[PortPower]; ok {
		on, err := port.Coerce(port.Bool, raw)
		if err != nil {
			return fmt.Errorf("PCB.Power: %w", err)
		}
		b := on.(bool)
		st.On = &b
	}
	if raw, ok := fields[PortColor]; ok {
		s, err := port.Coerce(port.String, raw)
		if err != nil {
			return fmt.Errorf("PCB.Color: %w", err)
		}
		c, err := HexToHSB(s.(string))
		if err != nil {
			return fmt.Errorf("PCB.Color: %w", err)
		}
		st.Hue, st.Sat, st.Bri = &c.Hue, &c.Sat, &c.Bri
	}
	if raw, ok := fields[PortBrightness]; ok {
		n, err := port.Coerce(port.Numeric, raw)
		if err != nil {
			return fmt.Errorf("PCB.Brightness: %w", err)
		}
		bri := brightness(n.(float64))
		st.Bri = &bri
	}

	if st.Empty() {
		return fmt.Errorf("%w: PCB needs at least one of Power, Color, Brightness", port.ErrInvalidValue)
	}
	return a.put(t, st)
}

// brightness truncates to an integer in the bridge's 0-255 range.
func brightness(v float64) int {
	return clamp(int(math.Trunc(v)), 0, maxBri)
}
