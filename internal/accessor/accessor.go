package accessor

import (
	"fmt"
	"sort"

	"github.com/nerrad567/gray-logic-accessors/internal/fault"
	"github.com/nerrad567/gray-logic-accessors/internal/port"
	"github.com/nerrad567/gray-logic-accessors/internal/session"
	"github.com/nerrad567/gray-logic-accessors/internal/suspend"
)

// Logger is the logging interface handed to accessors.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Runtime is what an accessor receives at init.
type Runtime struct {
	Ports   *port.Registry
	Session *session.Session
	Params  Params
	Logger  Logger
}

// Log returns rt.Logger, or a logger that discards everything.
func (rt Runtime) Log() Logger {
	if rt.Logger == nil {
		return NopLogger{}
	}
	return rt.Logger
}

// NopLogger discards every record.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// Accessor is implemented by every device adapter.
type Accessor interface {
	// Setup declares the accessor's ports and validates params.
	Setup(ports *port.Registry, params Params) error

	// Init binds handlers and establishes the device session.
	Init(t *suspend.Task, rt Runtime) error

	// Close releases resources not owned by the session.
	Close() error
}

// Describer is implemented by accessors that advertise the abstract
// interfaces they provide, e.g. "/lighting/light".
type Describer interface {
	Interfaces() []string
}

// Reporter is implemented by accessors exposing adapter-specific state
// alongside the session stats.
type Reporter interface {
	Report() map[string]any
}

// Factory builds a fresh, unconfigured accessor.
type Factory func() Accessor

// Kinds maps accessor kind names to factories.
type Kinds map[string]Factory

// New builds an accessor of the named kind.
func (k Kinds) New(kind string) (Accessor, error) {
	f, ok := k[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown accessor kind %q", fault.ErrConfiguration, kind)
	}
	return f(), nil
}

// Names returns the registered kinds, sorted.
func (k Kinds) Names() []string {
	names := make([]string, 0, len(k))
	for name := range k {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BindCached binds each named output port to a handler that returns the
// session's cached value, failing with fault.ErrNoDataAvailable until the
// first observation.
func BindCached(rt Runtime, names ...string) error {
	c := rt.Session.Cache()
	for _, name := range names {
		name := name
		err := rt.Ports.BindOutput(name, func(*suspend.Task) (any, error) {
			return c.Get(name)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// BindCachedBundle binds a bundle's output handler to one cache snapshot of
// its members, so a read never mixes values from two updates.
func BindCachedBundle(rt Runtime, bundle string, members ...string) error {
	c := rt.Session.Cache()
	return rt.Ports.BindOutput(bundle, func(*suspend.Task) (any, error) {
		return c.Snapshot(members...)
	})
}
