package stream

import (
	"encoding/json"
	"math"

	"github.com/relabs-tech/motion_sensors/internal/imu"
)

// MethodChannel names the configuration entry point.
const MethodChannel = imu.ChannelPrefix + "method"

// MethodSetUpdateInterval is the only method the dispatcher implements.
const MethodSetUpdateInterval = "setUpdateInterval"

// MethodCall is one request on the method channel.
type MethodCall struct {
	Method string         `json:"method"`
	Args   map[string]any `json:"args"`
}

// Dispatcher validates configuration requests and forwards them to the
// registry's subscriptions.
type Dispatcher struct {
	reg *Registry
}

func NewDispatcher(r *Registry) *Dispatcher {
	return &Dispatcher{reg: r}
}

// SetInterval changes the sampling period of the stream id. value must be an
// integer: any Go integer type, an integral float64 or a json.Number. On
// error nothing is changed and the error matches ErrArgument.
func (d *Dispatcher) SetInterval(streamID string, value any) error {
	sub, err := d.reg.Resolve(streamID)
	if err != nil {
		return argumentError(err, streamID)
	}
	us, ok := intervalValue(value)
	if !ok {
		return argumentError(nil, value)
	}
	return sub.SetInterval(us)
}

// Call executes a method-channel request.
func (d *Dispatcher) Call(c MethodCall) error {
	if c.Method != MethodSetUpdateInterval {
		return &Error{Code: CodeNotImplemented, Message: "method not implemented", Details: c.Method}
	}
	id, ok := c.Args["sensor"].(string)
	if !ok {
		return argumentError(nil, c.Args)
	}
	interval, ok := c.Args["interval"]
	if !ok || interval == nil {
		return argumentError(nil, c.Args)
	}
	return d.SetInterval(id, interval)
}

func intervalValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int64ToInt(n)
	case uint:
		return uint64ToInt(uint64(n))
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return uint64ToInt(uint64(n))
	case uint64:
		return uint64ToInt(n)
	case float64:
		return floatToInt(n)
	case float32:
		return floatToInt(float64(n))
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int64ToInt(i)
	}
	return 0, false
}

func int64ToInt(n int64) (int, bool) {
	if n < math.MinInt || n > math.MaxInt {
		return 0, false
	}
	return int(n), true
}

func uint64ToInt(n uint64) (int, bool) {
	if n > math.MaxInt {
		return 0, false
	}
	return int(n), true
}

// floatToInt accepts integral floats within the 32-bit range JSON clients
// send intervals in.
func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
