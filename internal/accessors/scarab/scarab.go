package scarab

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/accessor"
	"github.com/nerrad567/gray-logic-accessors/internal/fault"
	"github.com/nerrad567/gray-logic-accessors/internal/port"
	"github.com/nerrad567/gray-logic-accessors/internal/session"
	"github.com/nerrad567/gray-logic-accessors/internal/suspend"
)

// Kind is the accessor kind name.
const Kind = "scarab"

// Port and bundle names.
const (
	PortX          = "X"
	PortY          = "Y"
	PortZ          = "Z"
	BundlePosition = "Position"
)

// Parameter defaults.
const (
	DefaultPoseTopic      = "/scarab0/gt_pose"
	DefaultGoalTopic      = "/goal"
	DefaultFrameID        = "map_hokuyo"
	DefaultConnectTimeout = 5 * time.Second
	DefaultWriteTimeout   = 3 * time.Second
)

// State is the connection state machine.
type State string

// Connection states.
const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Accessor drives one robot.
type Accessor struct {
	dialer Dialer

	endpoint       string
	poseTopic      string
	goalTopic      string
	frameID        string
	connectTimeout time.Duration
	writeTimeout   time.Duration

	logger accessor.Logger
	sess   *session.Session

	mu    sync.RWMutex
	state State
	conn  Conn

	// sendMu keeps sequence allocation and the socket write together.
	sendMu sync.Mutex

	dropped atomic.Uint64
}

// New returns an accessor dialing with gorilla/websocket.
func New() accessor.Accessor {
	return NewWithDialer(WebSocketDialer{})
}

// NewWithDialer returns an accessor using d.
func NewWithDialer(d Dialer) *Accessor {
	return &Accessor{dialer: d, state: StateDisconnected}
}

// Interfaces implements accessor.Describer.
func (a *Accessor) Interfaces() []string {
	return []string{"/robotics/position"}
}

// Setup validates params and declares X, Y, Z and the Position bundle.
func (a *Accessor) Setup(reg *port.Registry, params accessor.Params) error {
	host, err := params.Require("host")
	if err != nil {
		return err
	}
	a.endpoint = endpointFor(host)
	a.poseTopic = params.String("pose_topic", DefaultPoseTopic)
	a.goalTopic = params.String("goal_topic", DefaultGoalTopic)
	a.frameID = params.String("frame_id", DefaultFrameID)
	if a.connectTimeout, err = params.Millis("connect_timeout_ms", DefaultConnectTimeout); err != nil {
		return err
	}
	if a.writeTimeout, err = params.Millis("write_timeout_ms", DefaultWriteTimeout); err != nil {
		return err
	}

	for _, name := range []string{PortX, PortY, PortZ} {
		if err := reg.DeclarePort(name, port.InOut, port.Meta{Type: port.Numeric, Units: "m"}); err != nil {
			return err
		}
	}
	return reg.DeclareBundle(BundlePosition, PortX, PortY, PortZ)
}

// endpointFor accepts "host:port" or a full ws:// or wss:// URL.
func endpointFor(host string) string {
	if strings.HasPrefix(host, "ws://") || strings.HasPrefix(host, "wss://") {
		return host
	}
	return "ws://" + host
}

// Init binds the ports, connects and subscribes to the pose topic.
func (a *Accessor) Init(t *suspend.Task, rt accessor.Runtime) error {
	a.logger = rt.Log()
	a.sess = rt.Session

	if err := rt.Ports.BindInput(BundlePosition, a.writePosition); err != nil {
		return err
	}
	if err := accessor.BindCached(rt, PortX, PortY, PortZ); err != nil {
		return err
	}
	if err := accessor.BindCachedBundle(rt, BundlePosition, PortX, PortY, PortZ); err != nil {
		return err
	}

	a.setState(StateConnecting)
	conn, err := suspend.Await(t, a.connectTimeout, func(ctx context.Context) (Conn, error) {
		return a.dialer.Dial(ctx, a.endpoint)
	})
	if err != nil {
		err = fmt.Errorf("connecting to %s: %w", a.endpoint, err)
		a.fail(err)
		return err
	}
	if err := a.sess.Attach(conn); err != nil {
		_ = conn.Close()
		return err
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
	a.setState(StateConnected)
	a.logger.Info("rosbridge connected", "endpoint", a.endpoint)

	go a.readLoop(conn)
	if err := a.sess.Scheduler().Go("inbound", a.consume); err != nil {
		return err
	}

	if err := a.send(t, subscribeFrame{Op: opSubscribe, Topic: a.poseTopic}); err != nil {
		err = fmt.Errorf("subscribing to %s: %w", a.poseTopic, err)
		a.fail(err)
		return err
	}
	return nil
}

// Close implements accessor.Accessor. The session owns the connection.
func (a *Accessor) Close() error {
	return nil
}

// State returns the connection state.
func (a *Accessor) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Dropped returns how many goals were dropped while not connected.
func (a *Accessor) Dropped() uint64 {
	return a.dropped.Load()
}

// Report implements accessor.Reporter.
func (a *Accessor) Report() map[string]any {
	return map[string]any{"state": a.State(), "goals_dropped": a.Dropped()}
}

func (a *Accessor) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()

	switch s {
	case StateConnecting:
		a.sess.SetState(session.Connecting)
	case StateConnected:
		a.sess.SetState(session.Connected)
	case StateDisconnected:
		a.sess.SetState(session.Disconnected)
	}
}

// fail moves to ERROR and fails the session, which closes the socket.
func (a *Accessor) fail(err error) {
	a.mu.Lock()
	already := a.state == StateError
	a.state = StateError
	a.conn = nil
	a.mu.Unlock()

	a.sess.Fail(err)
	if !already {
		a.logger.Error("rosbridge session failed", "endpoint", a.endpoint, "error", err)
	}
}

// readLoop forwards socket frames to the session inbox until the socket
// fails or is closed.
func (a *Accessor) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-a.sess.Done():
				return
			default:
			}
			if !a.sess.Post(connLost{err: err}) {
				a.lost(err)
			}
			return
		}
		a.sess.Post(frameReceived{data: data})
	}
}

// consume is the inbound task: it applies inbox messages one at a time.
func (a *Accessor) consume(t *suspend.Task) {
	for {
		msg, ok := suspend.Recv(t, a.sess.Inbox())
		if !ok {
			return
		}
		switch m := msg.(type) {
		case frameReceived:
			a.dispatch(m.data)
		case connLost:
			a.lost(m.err)
			return
		}
	}
}

func (a *Accessor) lost(err error) {
	if a.State() != StateConnected {
		return
	}
	a.fail(fmt.Errorf("%w: rosbridge connection lost: %w", fault.ErrTransportFailure, err))
}

// dispatch routes one inbound frame by topic. Frames that do not decode
// are ignored.
func (a *Accessor) dispatch(data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		a.logger.Debug("ignoring undecodable rosbridge frame", "error", err)
		return
	}

	switch frame.Topic {
	case a.poseTopic:
		var report poseReport
		if err := json.Unmarshal(frame.Msg, &report); err != nil || report.Pose == nil {
			a.logger.Debug("ignoring pose frame without pose", "topic", frame.Topic)
			return
		}
		p := report.Pose.Position
		a.sess.Observe(
			session.Value{Port: PortX, Value: p.X},
			session.Value{Port: PortY, Value: p.Y},
			session.Value{Port: PortZ, Value: p.Z},
		)
	default:
		a.logger.Debug("ignoring frame for unhandled topic", "topic", frame.Topic, "op", frame.Op)
	}
}

// writePosition publishes a goal. Coordinates that are not numbers are
// sent as 0.
func (a *Accessor) writePosition(t *suspend.Task, v any) error {
	fields := v.(map[string]any)
	goal := Point{
		X: coordinate(fields[PortX]),
		Y: coordinate(fields[PortY]),
		Z: coordinate(fields[PortZ]),
	}

	if state := a.State(); state != StateConnected {
		n := a.dropped.Add(1)
		a.logger.Warn("rosbridge not connected, dropping goal", "state", state, "dropped", n)
		return fmt.Errorf("%w: %w (state %s)", fault.ErrTransportFailure, ErrGoalDropped, state)
	}

	return a.sendGoal(t, goal)
}

func (a *Accessor) sendGoal(t *suspend.Task, goal Point) error {
	conn := a.currentConn()
	if conn == nil {
		return fmt.Errorf("%w: %w", fault.ErrTransportFailure, ErrGoalDropped)
	}

	_, err := suspend.Await(t, a.writeTimeout, func(ctx context.Context) (struct{}, error) {
		a.sendMu.Lock()
		defer a.sendMu.Unlock()
		// A goal that timed out behind a stalled write must not take a number.
		if err := ctx.Err(); err != nil {
			return struct{}{}, err
		}

		frame := publishFrame{
			Op:    opPublish,
			Topic: a.goalTopic,
			Msg: PoseStamped{
				Header: Header{Seq: a.sess.NextSeq(), FrameID: a.frameID},
				Pose:   Pose{Position: goal, Orientation: identity},
			},
		}
		data, err := json.Marshal(frame)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, conn.WriteMessage(ctx, data)
	})
	return err
}

func (a *Accessor) send(t *suspend.Task, frame any) error {
	conn := a.currentConn()
	if conn == nil {
		return fmt.Errorf("%w: not connected", fault.ErrTransportFailure)
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_, err = suspend.Await(t, a.writeTimeout, func(ctx context.Context) (struct{}, error) {
		a.sendMu.Lock()
		defer a.sendMu.Unlock()
		if err := ctx.Err(); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, conn.WriteMessage(ctx, data)
	})
	return err
}

func (a *Accessor) currentConn() Conn {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.conn
}

func coordinate(v any) float64 {
	if v == nil {
		return 0
	}
	f, err := port.Coerce(port.Numeric, v)
	if err != nil {
		return 0
	}
	return f.(float64)
}
