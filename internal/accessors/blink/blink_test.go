package blink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/accessor"
	"github.com/nerrad567/gray-logic-accessors/internal/fault"
	"github.com/nerrad567/gray-logic-accessors/internal/port"
	"github.com/nerrad567/gray-logic-accessors/internal/session"
	"github.com/nerrad567/gray-logic-accessors/internal/suspend"
)

// fakeScanner replays advertisements fed through ads.
type fakeScanner struct {
	ads    chan Advertisement
	fail   chan error
	mu     sync.Mutex
	closed bool
}

func newFakeScanner() *fakeScanner {
	return &fakeScanner{ads: make(chan Advertisement, 16), fail: make(chan error, 1)}
}

func (s *fakeScanner) Scan(ctx context.Context, handle func(Advertisement)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-s.fail:
			return err
		case adv := <-s.ads:
			handle(adv)
		}
	}
}

func (s *fakeScanner) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []port.Event
}

func (l *eventLog) Emit(ev port.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []port.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]port.Event(nil), l.events...)
}

type harness struct {
	acc    *Accessor
	reg    *port.Registry
	sess   *session.Session
	events *eventLog
}

func start(t *testing.T, open Opener, params accessor.Params) (*harness, error) {
	t.Helper()
	if params == nil {
		params = accessor.Params{}
	}

	acc := NewWithOpener(open)
	reg := port.NewRegistry()
	if err := acc.Setup(reg, params); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	reg.Seal()

	events := &eventLog{}
	reg.SetEmitter(events)

	sess := session.New(session.Options{ID: "pir", Kind: Kind, Ports: reg})
	t.Cleanup(func() { _ = sess.Close() })

	h := &harness{acc: acc, reg: reg, sess: sess, events: events}
	_, err := sess.Scheduler().Call(context.Background(), "init", func(task *suspend.Task) (any, error) {
		return nil, acc.Init(task, accessor.Runtime{Ports: reg, Session: sess, Params: params})
	})
	return h, err
}

func startScanning(t *testing.T) (*harness, *fakeScanner) {
	t.Helper()
	sc := newFakeScanner()
	h, err := start(t, func(context.Context) (Scanner, error) { return sc, nil }, nil)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return h, sc
}

func (h *harness) read(name string) (any, error) {
	return h.sess.Scheduler().Call(context.Background(), "read", func(task *suspend.Task) (any, error) {
		return h.reg.Read(task, name)
	})
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func sensor(current, since, lastMin byte) Advertisement {
	return Advertisement{
		Address:          "c0:98:e5:00:00:01",
		Name:             "squall+PIR",
		ManufacturerData: []byte{0xE0, 0x02, 0x13, current, since, lastMin},
	}
}

func TestInit_Scanning(t *testing.T) {
	h, _ := startScanning(t)
	if got := h.acc.State(); got != StateScanning {
		t.Errorf("State() = %s, want %s", got, StateScanning)
	}
	if got := h.sess.State(); got != session.Connected {
		t.Errorf("session state = %s, want connected", got)
	}
}

func TestRead_BeforeAdvertisement(t *testing.T) {
	h, _ := startScanning(t)
	for _, name := range Ports {
		if _, err := h.read(name); !errors.Is(err, fault.ErrNoDataAvailable) {
			t.Errorf("read %s: error = %v, want NoDataAvailable", name, err)
		}
	}
}

func TestAdvertisement_PushedAndCached(t *testing.T) {
	h, sc := startScanning(t)

	sc.ads <- sensor(1, 3, 7)
	waitUntil(t, func() bool { return len(h.events.snapshot()) == 3 })

	events := h.events.snapshot()
	want := []struct {
		port  string
		value float64
	}{
		{PortCurrentMotion, 1},
		{PortMotionSinceLastAdv, 3},
		{PortMotionLastMin, 7},
	}
	for i, w := range want {
		if events[i].Port != w.port || events[i].Value != w.value {
			t.Errorf("event %d = %s:%v, want %s:%v", i, events[i].Port, events[i].Value, w.port, w.value)
		}
	}

	v, err := h.read(PortMotionLastMin)
	if err != nil || v != float64(7) {
		t.Errorf("read = %v, %v; want 7", v, err)
	}

	sc.ads <- sensor(0, 0, 2)
	waitUntil(t, func() bool { return len(h.events.snapshot()) == 6 })

	v, err = h.read(PortMotionLastMin)
	if err != nil || v != float64(2) {
		t.Errorf("read after second advertisement = %v, %v; want 2", v, err)
	}
	v, _ = h.read(PortCurrentMotion)
	if v != float64(0) {
		t.Errorf("Current_motion = %v, want 0", v)
	}
}

func TestAdvertisement_Discarded(t *testing.T) {
	tests := []struct {
		name string
		adv  Advertisement
	}{
		{"wrong manufacturer", Advertisement{Name: "squall+PIR", ManufacturerData: []byte{0x4C, 0x00, 0x13, 1, 1, 1}}},
		{"wrong length", Advertisement{Name: "squall+PIR", ManufacturerData: []byte{0xE0, 0x02, 0x13, 1, 1}}},
		{"wrong name", Advertisement{Name: "thermostat", ManufacturerData: []byte{0xE0, 0x02, 0x13, 1, 1, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, sc := startScanning(t)

			sc.ads <- tt.adv
			waitUntil(t, func() bool { return h.acc.Stats().Discarded == 1 })

			if n := len(h.events.snapshot()); n != 0 {
				t.Errorf("pushed %d events, want 0", n)
			}
			if _, err := h.read(PortCurrentMotion); !errors.Is(err, fault.ErrNoDataAvailable) {
				t.Errorf("read error = %v, want NoDataAvailable", err)
			}
		})
	}
}

func TestInit_HardwareUnavailable(t *testing.T) {
	h, err := start(t, func(context.Context) (Scanner, error) { return nil, ErrNoHardware }, nil)
	if !errors.Is(err, fault.ErrDeviceUnavailable) {
		t.Fatalf("Init error = %v, want DeviceUnavailable", err)
	}
	if got := h.acc.State(); got != StateHardwareUnavailable {
		t.Errorf("State() = %s, want %s", got, StateHardwareUnavailable)
	}
	if got := h.sess.State(); got != session.Failed {
		t.Errorf("session state = %s, want failed", got)
	}

	for _, name := range Ports {
		_, err := h.read(name)
		if !errors.Is(err, fault.ErrNoDataAvailable) {
			t.Errorf("read %s: error = %v, want NoDataAvailable", name, err)
		}
	}
}

func TestScanFailure_HardwareUnavailable(t *testing.T) {
	h, sc := startScanning(t)
	sc.fail <- errors.New("adapter removed")

	waitUntil(t, func() bool { return h.acc.State() == StateHardwareUnavailable })
	if _, err := h.read(PortCurrentMotion); !errors.Is(err, fault.ErrNoDataAvailable) {
		t.Errorf("read error = %v, want NoDataAvailable", err)
	}
}

func TestSetup(t *testing.T) {
	reg := port.NewRegistry()
	if err := NewWithOpener(nil).Setup(reg, accessor.Params{"acquire_timeout_ms": "x"}); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("bad timeout: error = %v, want ConfigurationError", err)
	}

	reg = port.NewRegistry()
	if err := NewWithOpener(nil).Setup(reg, nil); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	for _, name := range Ports {
		p, err := reg.Lookup(name)
		if err != nil {
			t.Fatalf("Lookup %s: %v", name, err)
		}
		if p.Direction != port.Output || p.Meta.Type != port.Numeric {
			t.Errorf("%s = %+v, want numeric output", name, p)
		}
	}
}

func TestOpenWithin(t *testing.T) {
	errRadio := errors.New("radio busy")

	tests := []struct {
		name       string
		cancel     string // "", "before" or "during"
		openErr    error
		wantErr    error
		wantOpened bool
		wantClosed bool
	}{
		{name: "opened", wantOpened: true},
		{name: "cancelled before open", cancel: "before", wantErr: context.Canceled},
		{name: "cancelled while opening", cancel: "during", wantErr: context.Canceled, wantOpened: true, wantClosed: true},
		{name: "open fails", openErr: errRadio, wantErr: errRadio, wantOpened: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel == "before" {
				cancel()
			}

			sc := newFakeScanner()
			opened := false
			got, err := openWithin(ctx, func() (Scanner, error) {
				opened = true
				if tt.cancel == "during" {
					cancel()
				}
				if tt.openErr != nil {
					return nil, tt.openErr
				}
				return sc, nil
			})

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil && got != nil {
				t.Errorf("scanner = %v, want nil", got)
			}
			if opened != tt.wantOpened {
				t.Errorf("opened = %v, want %v", opened, tt.wantOpened)
			}
			sc.mu.Lock()
			closed := sc.closed
			sc.mu.Unlock()
			if closed != tt.wantClosed {
				t.Errorf("closed = %v, want %v", closed, tt.wantClosed)
			}
		})
	}
}
