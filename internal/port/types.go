package port

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Direction says which way values flow through a port.
type Direction uint8

const (
	// Input ports accept writes from the host.
	Input Direction = 1 << iota
	// Output ports produce values, on read or pushed through Send.
	Output
	// InOut ports do both.
	InOut = Input | Output
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	case InOut:
		return "inout"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "input":
		*d = Input
	case "output":
		*d = Output
	case "inout":
		*d = InOut
	default:
		return fmt.Errorf("unknown port direction %q", text)
	}
	return nil
}

// Accepts reports whether d includes all of want.
func (d Direction) Accepts(want Direction) bool {
	return d&want == want
}

// ValueType is the declared type of a port's values.
type ValueType string

// Port value types.
const (
	Numeric ValueType = "numeric"
	String  ValueType = "string"
	Bool    ValueType = "bool"
	Object  ValueType = "object"
)

// Meta is the type metadata attached to a port.
type Meta struct {
	Type        ValueType `json:"type"`
	Units       string    `json:"units,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Port describes one declared port. Immutable once declared.
type Port struct {
	Name      string    `json:"name"`
	Direction Direction `json:"direction"`
	Meta      Meta      `json:"meta"`
	Bundle    string    `json:"bundle,omitempty"`
}

// Bundle groups ports written or read together as one structured value.
type Bundle struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Event is an output value pushed by an accessor.
type Event struct {
	Port  string    `json:"port"`
	Value any       `json:"value"`
	Time  time.Time `json:"time"`
}

// Emitter receives pushed output events.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit calls f(ev).
func (f EmitterFunc) Emit(ev Event) { f(ev) }

// Coerce converts v to the Go representation of typ: float64 for Numeric,
// string for String, bool for Bool. Object values pass through unchanged.
func Coerce(typ ValueType, v any) (any, error) {
	switch typ {
	case Numeric:
		return toFloat(v)
	case Bool:
		return toBool(v)
	case String:
		switch s := v.(type) {
		case string:
			return s, nil
		case fmt.Stringer:
			return s.String(), nil
		}
		return nil, fmt.Errorf("%w: %T is not a string", ErrInvalidValue, v)
	default:
		return v, nil
	}
}

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case interface{ Float64() (float64, error) }:
		var err error
		if f, err = n.Float64(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(n), 64); err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, n)
		}
	default:
		return 0, fmt.Errorf("%w: %T is not numeric", ErrInvalidValue, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v is not finite", ErrInvalidValue, f)
	}
	return f, nil
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "on", "1":
			return true, nil
		case "false", "off", "0":
			return false, nil
		}
	case float64:
		return b != 0, nil
	case int:
		return b != 0, nil
	}
	return false, fmt.Errorf("%w: %v is not a boolean", ErrInvalidValue, v)
}
