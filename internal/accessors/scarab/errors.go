package scarab

import "errors"

// ErrGoalDropped is returned when a goal is requested while the rosbridge
// connection is not open. It is always wrapped with fault.ErrTransportFailure.
var ErrGoalDropped = errors.New("scarab: goal dropped, not connected")
