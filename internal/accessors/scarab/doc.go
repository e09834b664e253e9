// Package scarab is the subscribe/publish accessor for a Scarab robot
// reached through a rosbridge WebSocket.
//
// Init opens one connection to ws://<host> and moves
// DISCONNECTED → CONNECTING → CONNECTED, then subscribes to the pose topic.
// Pose reports update X, Y and Z in the session cache as one record and are
// pushed out of those ports immediately.
//
// Writing the Position bundle publishes a goal on /goal. Every goal carries
// the next session sequence number; numbers are allocated and written under
// one lock, so the wire order matches the numbering. Goals requested while
// not connected are dropped with a warning and ErrGoalDropped; nothing is
// queued.
//
// A read or write failure on the socket moves the accessor to ERROR and
// fails the session. There is no reconnect loop; restarting the instance is
// up to the host.
package scarab
