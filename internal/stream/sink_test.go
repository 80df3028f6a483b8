package stream

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/motion_sensors/internal/imu"
	"github.com/relabs-tech/motion_sensors/internal/sensors"
)

func TestChanSinkDropsWhenFull(t *testing.T) {
	s := NewChanSink(2)
	s.Success(imu.Vector{1, 2, 3})
	s.Success(imu.Vector{4, 5, 6})
	s.Error(unavailable(sensors.TypeGravity, nil))

	assert.Equal(t, uint64(1), s.Dropped())
	assert.Len(t, s.C, 2)
}

func TestFuncSinkNilHandlers(t *testing.T) {
	var got []imu.Vector
	s := FuncSink{OnSuccess: func(v imu.Vector) { got = append(got, v) }}
	s.Success(imu.Vector{1})
	s.Error(ErrSensorUnavailable)
	assert.Equal(t, []imu.Vector{{1}}, got)
}

func TestErrorMatching(t *testing.T) {
	e := unavailable(sensors.TypeGyroscope, nil)
	assert.ErrorIs(t, e, ErrSensorUnavailable)
	assert.NotErrorIs(t, e, ErrArgument)
	assert.Equal(t, "unavailable: Sensor 4 not available", e.Error())

	wrapped := fmt.Errorf("bridge: %w", e)
	assert.ErrorIs(t, wrapped, ErrSensorUnavailable)

	cause := errors.New("spi timeout")
	e = unavailable(sensors.TypeAccelerometer, cause)
	assert.ErrorIs(t, e, cause)
	assert.Equal(t, "unavailable: Sensor 1 not available (spi timeout)", e.Error())

	// the platform's own "missing" error is not repeated as a detail
	assert.Nil(t, unavailable(sensors.TypeAccelerometer, sensors.ErrNoSensor).Details)
}
