// Package port declares the named, typed ports an accessor exposes and
// dispatches reads and writes to the handlers bound to them.
//
// A Registry has two phases. During setup the accessor declares ports and
// bundles; Seal ends that phase and any further declaration is a
// configuration error. Handlers are bound during init, after the session
// exists:
//
//	reg := port.NewRegistry()
//	reg.DeclarePort("X", port.InOut, port.Meta{Type: port.Numeric})
//	reg.DeclarePort("Y", port.InOut, port.Meta{Type: port.Numeric})
//	reg.DeclareBundle("Position", "X", "Y")
//	reg.Seal()
//
//	reg.BindInput("Position", setGoal)
//
// Writing to a bundle passes the handler a map keyed by member name.
// Reading a bundle without its own output handler reads every member.
//
// Output events pushed by an accessor go through Send to the Emitter the
// host installed.
package port
