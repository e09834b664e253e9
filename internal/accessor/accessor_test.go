package accessor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/cache"
	"github.com/nerrad567/gray-logic-accessors/internal/fault"
	"github.com/nerrad567/gray-logic-accessors/internal/port"
	"github.com/nerrad567/gray-logic-accessors/internal/session"
	"github.com/nerrad567/gray-logic-accessors/internal/suspend"
)

type nopAccessor struct{}

func (nopAccessor) Setup(*port.Registry, Params) error { return nil }
func (nopAccessor) Init(*suspend.Task, Runtime) error  { return nil }
func (nopAccessor) Close() error                       { return nil }

func TestKinds(t *testing.T) {
	kinds := Kinds{
		"hue":   func() Accessor { return nopAccessor{} },
		"blink": func() Accessor { return nopAccessor{} },
	}

	if _, err := kinds.New("hue"); err != nil {
		t.Errorf("New(hue): %v", err)
	}
	if _, err := kinds.New("lamp"); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("New(lamp) err = %v, want ErrConfiguration", err)
	}
	if names := kinds.Names(); len(names) != 2 || names[0] != "blink" {
		t.Errorf("Names() = %v", names)
	}
}

func TestParams(t *testing.T) {
	p := Params{"host": " 10.0.0.9:9090 ", "timeout_ms": "250", "bad_ms": "-1", "macs": "aa, ,bb"}

	if v, err := p.Require("host"); err != nil || v != "10.0.0.9:9090" {
		t.Errorf("Require(host) = %q, %v", v, err)
	}
	if _, err := p.Require("bulb_name"); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("Require(missing) err = %v", err)
	}
	if v := p.String("frame_id", "map_hokuyo"); v != "map_hokuyo" {
		t.Errorf("String default = %q", v)
	}
	if d, err := p.Millis("timeout_ms", time.Second); err != nil || d != 250*time.Millisecond {
		t.Errorf("Millis = %v, %v", d, err)
	}
	if d, _ := p.Millis("absent_ms", 3*time.Second); d != 3*time.Second {
		t.Errorf("Millis default = %v", d)
	}
	if _, err := p.Millis("bad_ms", time.Second); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("Millis(bad) err = %v", err)
	}
	if l := p.List("macs"); len(l) != 2 || l[1] != "bb" {
		t.Errorf("List = %v", l)
	}
	clone := p.Clone()
	clone["host"] = "x"
	if p["host"] == "x" {
		t.Error("Clone shares storage")
	}
}

func TestBindCached(t *testing.T) {
	reg := port.NewRegistry()
	_ = reg.DeclarePort("Motion_last_min", port.Output, port.Meta{Type: port.Numeric, Units: "times"})
	reg.Seal()

	sess := session.New(session.Options{ID: "blink", Ports: reg, Cache: cache.New("Motion_last_min")})
	defer sess.Close()

	rt := Runtime{Ports: reg, Session: sess}
	if err := BindCached(rt, "Motion_last_min"); err != nil {
		t.Fatal(err)
	}
	if err := BindCached(rt, "Undeclared"); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("BindCached(undeclared) err = %v", err)
	}

	read := func() (any, error) {
		return sess.Scheduler().Call(context.Background(), "read", func(task *suspend.Task) (any, error) {
			return reg.Read(task, "Motion_last_min")
		})
	}

	if _, err := read(); !errors.Is(err, fault.ErrNoDataAvailable) {
		t.Fatalf("read before data err = %v", err)
	}
	sess.Observe(session.Value{Port: "Motion_last_min", Value: 4.0})
	if v, err := read(); err != nil || v != 4.0 {
		t.Errorf("read after event = %v, %v", v, err)
	}
}

func TestBindCachedBundle(t *testing.T) {
	reg := port.NewRegistry()
	for _, name := range []string{"X", "Y"} {
		_ = reg.DeclarePort(name, port.InOut, port.Meta{Type: port.Numeric})
	}
	_ = reg.DeclareBundle("Position", "X", "Y")
	reg.Seal()

	sess := session.New(session.Options{ID: "robot", Ports: reg, Cache: cache.New("X", "Y")})
	defer sess.Close()

	rt := Runtime{Ports: reg, Session: sess}
	if err := BindCachedBundle(rt, "Position", "X", "Y"); err != nil {
		t.Fatal(err)
	}
	if err := BindCachedBundle(rt, "Heading", "X"); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("BindCachedBundle(undeclared) err = %v", err)
	}

	read := func() (any, error) {
		return sess.Scheduler().Call(context.Background(), "read", func(task *suspend.Task) (any, error) {
			return reg.Read(task, "Position")
		})
	}

	tests := []struct {
		name    string
		observe []session.Value
		wantErr error
		want    map[string]any
	}{
		{name: "nothing observed", wantErr: fault.ErrNoDataAvailable},
		{name: "one member observed", observe: []session.Value{{Port: "X", Value: 1.0}}, wantErr: fault.ErrNoDataAvailable},
		{name: "every member observed", observe: []session.Value{{Port: "Y", Value: 2.0}}, want: map[string]any{"X": 1.0, "Y": 2.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range tt.observe {
				sess.Observe(v)
			}
			got, err := read()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.want == nil {
				return
			}
			m, ok := got.(map[string]any)
			if !ok || len(m) != len(tt.want) {
				t.Fatalf("Position = %#v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if m[k] != v {
					t.Errorf("Position[%s] = %v, want %v", k, m[k], v)
				}
			}
		})
	}
}
