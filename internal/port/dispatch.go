package port

import (
	"fmt"

	"github.com/nerrad567/gray-logic-accessors/internal/fault"
	"github.com/nerrad567/gray-logic-accessors/internal/suspend"
)

// Write delivers value to the input handler of a port or bundle. Scalar
// values are coerced to the port's declared type first; bundle values
// must be objects.
func (r *Registry) Write(t *suspend.Task, name string, value any) error {
	r.mu.RLock()
	p, isPort := r.ports[name]
	b, isBundle := r.bundles[name]
	var h InputHandler
	var typ ValueType
	switch {
	case isPort:
		if !p.Direction.Accepts(Input) {
			r.mu.RUnlock()
			return fmt.Errorf("%w: port %q is not writable", fault.ErrConfiguration, name)
		}
		h, typ = p.input, p.Meta.Type
	case isBundle:
		h, typ = b.input, Object
	}
	r.mu.RUnlock()

	if !isPort && !isBundle {
		return undeclared(name)
	}
	if h == nil {
		return fmt.Errorf("%w: port %q has no input handler", fault.ErrConfiguration, name)
	}

	if isBundle {
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("%w: bundle %q expects an object, got %T", ErrInvalidValue, name, value)
		}
	} else {
		v, err := Coerce(typ, value)
		if err != nil {
			return fmt.Errorf("port %q: %w", name, err)
		}
		value = v
	}

	return h(t, value)
}

// Read returns the current value of a port or bundle.
func (r *Registry) Read(t *suspend.Task, name string) (any, error) {
	r.mu.RLock()
	p, isPort := r.ports[name]
	b, isBundle := r.bundles[name]
	var h OutputHandler
	var members []string
	switch {
	case isPort:
		if !p.Direction.Accepts(Output) {
			r.mu.RUnlock()
			return nil, fmt.Errorf("%w: port %q is not readable", fault.ErrConfiguration, name)
		}
		h = p.output
	case isBundle:
		h = b.output
		members = b.Members
	}
	r.mu.RUnlock()

	switch {
	case !isPort && !isBundle:
		return nil, undeclared(name)
	case h != nil:
		return h(t)
	case isBundle:
		out := make(map[string]any, len(members))
		for _, m := range members {
			v, err := r.Read(t, m)
			if err != nil {
				return nil, fmt.Errorf("bundle %q: %w", name, err)
			}
			out[m] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: port %q has no output handler", fault.ErrConfiguration, name)
	}
}

// Send pushes value out of an output port without waiting for a read.
func (r *Registry) Send(name string, value any) error {
	r.mu.RLock()
	p, ok := r.ports[name]
	e := r.emitter
	now := r.now
	r.mu.RUnlock()

	if !ok {
		return undeclared(name)
	}
	if !p.Direction.Accepts(Output) {
		return fmt.Errorf("%w: port %q is not an output", fault.ErrConfiguration, name)
	}
	if e != nil {
		e.Emit(Event{Port: name, Value: value, Time: now()})
	}
	return nil
}
