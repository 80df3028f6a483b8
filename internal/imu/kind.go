package imu

import "strings"

// Kind is the logical category of a motion sensor exposed as one stream.
type Kind int

const (
	Accelerometer Kind = iota
	Gyroscope
	Magnetometer
	Gravity
	LinearAcceleration
	Orientation
	AbsoluteOrientation
)

// ChannelPrefix is prepended to a kind's name to form its stream id.
const ChannelPrefix = "motion_sensors/"

// Kinds lists every kind in stream order.
var Kinds = []Kind{
	Accelerometer,
	Gyroscope,
	Magnetometer,
	Gravity,
	LinearAcceleration,
	Orientation,
	AbsoluteOrientation,
}

var kindNames = [...]string{
	Accelerometer:       "accelerometer",
	Gyroscope:           "gyroscope",
	Magnetometer:        "magnetometer",
	Gravity:             "gravity",
	LinearAcceleration:  "linear_acceleration",
	Orientation:         "orientation",
	AbsoluteOrientation: "absolute_orientation",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// StreamID returns the stable stream identifier, e.g. "motion_sensors/gyroscope".
func (k Kind) StreamID() string {
	return ChannelPrefix + k.String()
}

// VectorLen is the length of the vector emitted for this kind.
func (k Kind) VectorLen() int {
	if k == AbsoluteOrientation {
		return 4
	}
	return 3
}

// ParseStreamID accepts a full stream id or its short form ("gravity").
func ParseStreamID(s string) (Kind, bool) {
	name := strings.TrimPrefix(s, ChannelPrefix)
	for _, k := range Kinds {
		if kindNames[k] == name {
			return k, true
		}
	}
	return 0, false
}
