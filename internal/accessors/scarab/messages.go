package scarab

import "encoding/json"

// rosbridge operations.
const (
	opSubscribe = "subscribe"
	opPublish   = "publish"
)

type subscribeFrame struct {
	Op    string `json:"op"`
	Topic string `json:"topic"`
}

type publishFrame struct {
	Op    string      `json:"op"`
	Topic string      `json:"topic"`
	Msg   PoseStamped `json:"msg"`
}

// PoseStamped mirrors geometry_msgs/PoseStamped.
type PoseStamped struct {
	Header Header `json:"header"`
	Pose   Pose   `json:"pose"`
}

// Header mirrors std_msgs/Header.
type Header struct {
	Seq     uint64 `json:"seq"`
	Stamp   Stamp  `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Stamp is a ROS time.
type Stamp struct {
	Secs  int64 `json:"secs"`
	Nsecs int64 `json:"nsecs"`
}

// Pose is a position and orientation.
type Pose struct {
	Position    Point      `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// Point is a position in metres.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is an orientation.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// identity is the orientation sent with every goal.
var identity = Quaternion{W: 1}

type inboundFrame struct {
	Op    string          `json:"op"`
	Topic string          `json:"topic"`
	Msg   json.RawMessage `json:"msg"`
}

type poseReport struct {
	Pose *Pose `json:"pose"`
}

// Inbox messages posted by the socket reader.
type (
	frameReceived struct{ data []byte }
	connLost      struct{ err error }
)
