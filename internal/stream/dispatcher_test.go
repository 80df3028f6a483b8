package stream

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_sensors/internal/sensors"
	"github.com/relabs-tech/motion_sensors/internal/sensors/sensorstest"
)

func TestDispatcherUnknownStream(t *testing.T) {
	m := sensorstest.NewManager(allTypes...)
	reg := Attach(m, nil)
	require.NoError(t, reg.Listen("accelerometer", NewChanSink(1)))
	d := NewDispatcher(reg)

	err := d.SetInterval("motion_sensors/barometer", 1000)
	assert.ErrorIs(t, err, ErrArgument)
	assert.ErrorIs(t, err, ErrUnknownStream)

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Invalid arguments", se.Message)

	assertCalls(t, []sensorstest.Call{register(sensors.TypeAccelerometer, 20000)}, m)
	for _, s := range reg.Subscriptions() {
		assert.Equal(t, 20000, s.Interval(), s.ID())
	}
}

func TestDispatcherIntervalTypes(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int
		ok    bool
	}{
		{"int", 5000, 5000, true},
		{"int64", int64(7000), 7000, true},
		{"uint16", uint16(100), 100, true},
		{"integral float", 66667.0, 66667, true},
		{"json number", json.Number("200000"), 200000, true},
		{"zero", 0, sensors.SensorDelayGame, true},
		{"negative", -1, sensors.SensorDelayGame, true},
		{"fractional float", 1.5, 0, false},
		{"NaN", math.NaN(), 0, false},
		{"huge float", 1e12, 0, false},
		{"fractional json", json.Number("1.5"), 0, false},
		{"huge uint", uint64(math.MaxUint64), 0, false},
		{"string", "5000", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := Attach(sensorstest.NewManager(allTypes...), nil)
			d := NewDispatcher(reg)
			sub := mustResolve(t, reg, "gyroscope")
			require.NoError(t, sub.SetInterval(12345))

			err := d.SetInterval("gyroscope", tt.value)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrArgument)
				assert.Equal(t, 12345, sub.Interval(), "rejected value must not mutate")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sub.Interval())
		})
	}
}

func TestDispatcherCall(t *testing.T) {
	m := sensorstest.NewManager(allTypes...)
	reg := Attach(m, nil)
	d := NewDispatcher(reg)
	require.NoError(t, reg.Listen("magnetometer", NewChanSink(1)))

	err := d.Call(MethodCall{Method: "getSensors"})
	assert.ErrorIs(t, err, ErrNotImplemented)

	for _, args := range []map[string]any{
		nil,
		{"sensor": "motion_sensors/magnetometer"},
		{"interval": 1000.0},
		{"sensor": 3, "interval": 1000.0},
		{"sensor": "motion_sensors/magnetometer", "interval": nil},
	} {
		err := d.Call(MethodCall{Method: MethodSetUpdateInterval, Args: args})
		assert.ErrorIs(t, err, ErrArgument, "%v", args)
	}

	var call MethodCall
	require.NoError(t, json.Unmarshal([]byte(`{"method":"setUpdateInterval","args":{"sensor":"motion_sensors/magnetometer","interval":100000}}`), &call))
	require.NoError(t, d.Call(call))

	mag := sensors.TypeMagneticField
	assertCalls(t, []sensorstest.Call{register(mag, 20000), unregister(mag), register(mag, 100000)}, m)
	assert.Equal(t, "motion_sensors/method", MethodChannel)
}
