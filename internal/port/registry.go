package port

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/fault"
	"github.com/nerrad567/gray-logic-accessors/internal/suspend"
)

// InputHandler is invoked with the value written to a port or bundle. For
// bundles the value is a map[string]any keyed by member name.
type InputHandler func(t *suspend.Task, value any) error

// OutputHandler returns a port's current value.
type OutputHandler func(t *suspend.Task) (any, error)

type portEntry struct {
	Port
	input  InputHandler
	output OutputHandler
}

type bundleEntry struct {
	Bundle
	input  InputHandler
	output OutputHandler
}

// Registry holds the ports and bundles of one accessor instance.
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	ports   map[string]*portEntry
	bundles map[string]*bundleEntry
	order   []string
	sealed  bool
	emitter Emitter
	now     func() time.Time
}

// NewRegistry returns an empty registry in its setup phase.
func NewRegistry() *Registry {
	return &Registry{
		ports:   make(map[string]*portEntry),
		bundles: make(map[string]*bundleEntry),
		now:     time.Now,
	}
}

// DeclarePort registers a port. Names are unique across ports and bundles.
func (r *Registry) DeclarePort(name string, dir Direction, meta Meta) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkDeclarable(name); err != nil {
		return err
	}
	if dir == 0 || dir&^InOut != 0 {
		return fmt.Errorf("%w: port %q has invalid direction %d", fault.ErrConfiguration, name, dir)
	}
	if meta.Type == "" {
		meta.Type = Object
	}

	r.ports[name] = &portEntry{Port: Port{Name: name, Direction: dir, Meta: meta}}
	r.order = append(r.order, name)
	return nil
}

// DeclareBundle groups existing ports. Every member must already be
// declared and may belong to at most one bundle.
func (r *Registry) DeclareBundle(name string, members ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkDeclarable(name); err != nil {
		return err
	}
	if len(members) == 0 {
		return fmt.Errorf("%w: bundle %q has no members", fault.ErrConfiguration, name)
	}

	seen := make(map[string]bool, len(members))
	for _, m := range members {
		p, ok := r.ports[m]
		switch {
		case !ok:
			return fmt.Errorf("%w: bundle %q member %q is not declared", fault.ErrConfiguration, name, m)
		case p.Bundle != "":
			return fmt.Errorf("%w: port %q already belongs to bundle %q", fault.ErrConfiguration, m, p.Bundle)
		case seen[m]:
			return fmt.Errorf("%w: bundle %q lists %q twice", fault.ErrConfiguration, name, m)
		}
		seen[m] = true
	}

	for _, m := range members {
		r.ports[m].Bundle = name
	}
	r.bundles[name] = &bundleEntry{Bundle: Bundle{Name: name, Members: append([]string(nil), members...)}}
	return nil
}

func (r *Registry) checkDeclarable(name string) error {
	if r.sealed {
		return fmt.Errorf("%w: %q declared after setup", fault.ErrConfiguration, name)
	}
	if name == "" {
		return fmt.Errorf("%w: empty port name", fault.ErrConfiguration)
	}
	if _, ok := r.ports[name]; ok {
		return fmt.Errorf("%w: port %q already declared", fault.ErrConfiguration, name)
	}
	if _, ok := r.bundles[name]; ok {
		return fmt.Errorf("%w: bundle %q already declared", fault.ErrConfiguration, name)
	}
	return nil
}

// Seal ends the setup phase.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether setup has ended.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// BindInput sets the handler for writes to a port or bundle. Bundles are
// writable only if every member accepts input.
func (r *Registry) BindInput(name string, h InputHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.ports[name]; ok {
		if !p.Direction.Accepts(Input) {
			return fmt.Errorf("%w: port %q is not an input", fault.ErrConfiguration, name)
		}
		p.input = h
		return nil
	}
	if b, ok := r.bundles[name]; ok {
		for _, m := range b.Members {
			if !r.ports[m].Direction.Accepts(Input) {
				return fmt.Errorf("%w: bundle %q member %q is not an input", fault.ErrConfiguration, name, m)
			}
		}
		b.input = h
		return nil
	}
	return undeclared(name)
}

// BindOutput sets the handler for reads of a port or bundle.
func (r *Registry) BindOutput(name string, h OutputHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.ports[name]; ok {
		if !p.Direction.Accepts(Output) {
			return fmt.Errorf("%w: port %q is not an output", fault.ErrConfiguration, name)
		}
		p.output = h
		return nil
	}
	if b, ok := r.bundles[name]; ok {
		b.output = h
		return nil
	}
	return undeclared(name)
}

// Lookup returns the declared port called name.
func (r *Registry) Lookup(name string) (Port, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.ports[name]; ok {
		return p.Port, nil
	}
	return Port{}, undeclared(name)
}

// LookupBundle returns the declared bundle called name.
func (r *Registry) LookupBundle(name string) (Bundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.bundles[name]; ok {
		return Bundle{Name: b.Name, Members: append([]string(nil), b.Members...)}, nil
	}
	return Bundle{}, undeclared(name)
}

// Has reports whether name is a declared port or bundle.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, p := r.ports[name]
	_, b := r.bundles[name]
	return p || b
}

// Ports returns every declared port in declaration order.
func (r *Registry) Ports() []Port {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Port, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.ports[name].Port)
	}
	return out
}

// Bundles returns every declared bundle sorted by name.
func (r *Registry) Bundles() []Bundle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Bundle, 0, len(r.bundles))
	for _, b := range r.bundles {
		out = append(out, Bundle{Name: b.Name, Members: append([]string(nil), b.Members...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetEmitter installs the sink for pushed output events.
func (r *Registry) SetEmitter(e Emitter) {
	r.mu.Lock()
	r.emitter = e
	r.mu.Unlock()
}

func undeclared(name string) error {
	return fmt.Errorf("%w: port %q is not declared", fault.ErrConfiguration, name)
}
