package host

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

// echo copies every write on Level to its Reading output.
type echo struct {
	failInit bool
	closed   bool
}

func (e *echo) Setup(reg *port.Registry, params accessor.Params) error {
	if _, err := params.Millis("timeout_ms", 0); err != nil {
		return err
	}
	if err := reg.DeclarePort("Level", port.Input, port.Meta{Type: port.Numeric}); err != nil {
		return err
	}
	return reg.DeclarePort("Reading", port.Output, port.Meta{Type: port.Numeric})
}

func (e *echo) Init(t *suspend.Task, rt accessor.Runtime) error {
	if err := rt.Ports.BindInput("Level", func(_ *suspend.Task, v any) error {
		if e.failInit {
			return fault.ErrDeviceUnavailable
		}
		rt.Session.Observe(session.Value{Port: "Reading", Value: v})
		return nil
	}); err != nil {
		return err
	}
	if err := accessor.BindCached(rt, "Reading"); err != nil {
		return err
	}
	if e.failInit {
		return errors.Join(fault.ErrDeviceUnavailable, errors.New("no device"))
	}
	return nil
}

func (e *echo) Close() error {
	e.closed = true
	return nil
}

func (e *echo) Interfaces() []string { return []string{"/test/echo"} }

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Deliver(id string, ev port.Event) {
	r.mu.Lock()
	r.events = append(r.events, id+"/"+ev.Port)
	r.mu.Unlock()
}

func newTestHost(t *testing.T) (*Host, map[string]*echo) {
	t.Helper()
	made := make(map[string]*echo)
	var mu sync.Mutex
	factory := func(key string, fail bool) accessor.Factory {
		return func() accessor.Accessor {
			e := &echo{failInit: fail}
			mu.Lock()
			made[key] = e
			mu.Unlock()
			return e
		}
	}
	h := New(Options{Kinds: accessor.Kinds{"echo": factory("echo", false), "broken": factory("broken", true)}})
	t.Cleanup(h.Stop)
	return h, made
}

func TestStart_WriteAndRead(t *testing.T) {
	h, _ := newTestHost(t)
	rec := &recorder{}
	h.AddSink(rec)

	inst, err := h.Start(context.Background(), Spec{ID: "e1", Kind: "echo"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if inst.Status != StatusReady {
		t.Errorf("Status = %s, want ready", inst.Status)
	}
	if len(inst.Interfaces) != 1 || inst.Interfaces[0] != "/test/echo" {
		t.Errorf("Interfaces = %v", inst.Interfaces)
	}

	if _, err := h.Read(context.Background(), "e1", "Reading"); !errors.Is(err, fault.ErrNoDataAvailable) {
		t.Errorf("Read before write: error = %v, want NoDataAvailable", err)
	}

	if err := h.Write(context.Background(), "e1", "Level", "42"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	v, err := h.Read(context.Background(), "e1", "Reading")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v != float64(42) {
		t.Errorf("Read = %v (%T), want 42", v, v)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 1 || rec.events[0] != "e1/Reading" {
		t.Errorf("sink events = %v, want [e1/Reading]", rec.events)
	}
}

func TestStart_Errors(t *testing.T) {
	h, _ := newTestHost(t)
	if _, err := h.Start(context.Background(), Spec{ID: "e1", Kind: "echo"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	tests := []struct {
		name string
		spec Spec
		want error
	}{
		{"missing id", Spec{Kind: "echo"}, fault.ErrConfiguration},
		{"unknown kind", Spec{ID: "x", Kind: "toaster"}, fault.ErrConfiguration},
		{"duplicate", Spec{ID: "e1", Kind: "echo"}, ErrDuplicateInstance},
		{"bad params", Spec{ID: "e2", Kind: "echo", Params: accessor.Params{"timeout_ms": "-1"}}, fault.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.Start(context.Background(), tt.spec); !errors.Is(err, tt.want) {
				t.Errorf("Start error = %v, want %v", err, tt.want)
			}
		})
	}

	if n := len(h.Instances()); n != 1 {
		t.Errorf("Instances = %d, want 1", n)
	}
}

func TestStart_InitFailureIsDegraded(t *testing.T) {
	h, _ := newTestHost(t)

	inst, err := h.Start(context.Background(), Spec{ID: "b1", Kind: "broken"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if inst.Status != StatusDegraded {
		t.Errorf("Status = %s, want degraded", inst.Status)
	}
	if inst.ErrorCode != fault.CodeDeviceUnavailable {
		t.Errorf("ErrorCode = %q, want %q", inst.ErrorCode, fault.CodeDeviceUnavailable)
	}

	// operations still reach the accessor
	if err := h.Write(context.Background(), "b1", "Level", 1); !errors.Is(err, fault.ErrDeviceUnavailable) {
		t.Errorf("Write error = %v, want DeviceUnavailable", err)
	}

	st := h.Stats()
	if st.Instances != 1 || st.Degraded != 1 || st.ByKind["broken"] != 1 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestUnknownInstance(t *testing.T) {
	h, _ := newTestHost(t)

	if err := h.Write(context.Background(), "nope", "Level", 1); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("Write error = %v, want ErrInstanceNotFound", err)
	}
	if _, err := h.Read(context.Background(), "nope", "Reading"); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("Read error = %v, want ErrInstanceNotFound", err)
	}
	if _, err := h.Describe("nope"); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("Describe error = %v, want ErrInstanceNotFound", err)
	}
	if err := h.Remove("nope"); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("Remove error = %v, want ErrInstanceNotFound", err)
	}
}

func TestDescribe(t *testing.T) {
	h, _ := newTestHost(t)
	if _, err := h.Start(context.Background(), Spec{ID: "e1", Kind: "echo", Name: "Echo"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.Write(context.Background(), "e1", "Level", 3); err != nil {
		t.Fatalf("Write: %v", err)
	}

	d, err := h.Describe("e1")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if d.Name != "Echo" || len(d.Ports) != 2 {
		t.Errorf("Describe = %+v", d.Instance)
	}
	entry, ok := d.Values["Reading"]
	if !ok || !entry.Valid || entry.Value != float64(3) {
		t.Errorf("Values[Reading] = %+v", entry)
	}
	if d.Session.Events != 1 {
		t.Errorf("Session.Events = %d, want 1", d.Session.Events)
	}
	if !h.Has("e1", "Level") || h.Has("e1", "Missing") {
		t.Error("Has() mismatch")
	}
}

func TestRemoveAndStop(t *testing.T) {
	h, made := newTestHost(t)
	if _, err := h.Start(context.Background(), Spec{ID: "e1", Kind: "echo"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.Remove("e1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !made["echo"].closed {
		t.Error("accessor not closed on Remove")
	}
	if len(h.Instances()) != 0 {
		t.Error("instance still listed after Remove")
	}

	h.Stop()
	if _, err := h.Start(context.Background(), Spec{ID: "e2", Kind: "echo"}); !errors.Is(err, ErrStopped) {
		t.Errorf("Start after Stop: error = %v, want ErrStopped", err)
	}
	if _, err := h.Read(context.Background(), "e2", "Reading"); !errors.Is(err, ErrStopped) {
		t.Errorf("Read after Stop: error = %v, want ErrStopped", err)
	}
}

func TestDefaultKinds(t *testing.T) {
	names := DefaultKinds().Names()
	want := []string{"blink", "hue", "scarab"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

// gated blocks in Init until release is closed.
type gated struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gated) Setup(reg *port.Registry, _ accessor.Params) error {
	return reg.DeclarePort("Reading", port.Output, port.Meta{Type: port.Numeric})
}

func (g *gated) Init(t *suspend.Task, rt accessor.Runtime) error {
	close(g.entered)
	_, err := suspend.Await(t, 5*time.Second, func(ctx context.Context) (struct{}, error) {
		select {
		case <-g.release:
			return struct{}{}, nil
		case <-ctx.Done():
			return struct{}{}, ctx.Err()
		}
	})
	if err != nil {
		return err
	}
	return accessor.BindCached(rt, "Reading")
}

func (g *gated) Close() error { return nil }

func TestStart_CallerGivesUpDuringInit(t *testing.T) {
	g := &gated{entered: make(chan struct{}), release: make(chan struct{})}
	h := New(Options{Kinds: accessor.Kinds{"gated": func() accessor.Accessor { return g }}})
	t.Cleanup(h.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-g.entered
		cancel()
	}()

	inst, err := h.Start(ctx, Spec{ID: "g1", Kind: "gated"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if inst.Status != StatusStarting {
		t.Errorf("Status = %s, want starting", inst.Status)
	}

	close(g.release)

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := h.Instance("g1")
		if err != nil {
			t.Fatalf("Instance: %v", err)
		}
		if got.Status == StatusReady {
			if got.InitError != "" {
				t.Errorf("InitError = %q, want none", got.InitError)
			}
			return
		}
		if got.Status == StatusDegraded || time.Now().After(deadline) {
			t.Fatalf("Status = %s (%s), want ready", got.Status, got.InitError)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
