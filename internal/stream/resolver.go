package stream

import (
	"github.com/relabs-tech/motion_sensors/internal/imu"
	"github.com/relabs-tech/motion_sensors/internal/sensors"
)

// Resolver chooses the hardware sensor type backing a kind.
type Resolver func(imu.Kind) sensors.Type

var defaultTypes = map[imu.Kind]sensors.Type{
	imu.Accelerometer:       sensors.TypeAccelerometer,
	imu.Gyroscope:           sensors.TypeGyroscope,
	imu.Magnetometer:        sensors.TypeMagneticField,
	imu.Gravity:             sensors.TypeGravity,
	imu.LinearAcceleration:  sensors.TypeLinearAcceleration,
	imu.Orientation:         sensors.TypeRotationVector,
	imu.AbsoluteOrientation: sensors.TypeGameRotationVector,
}

// DefaultResolver maps each kind to its preferred hardware type.
func DefaultResolver(k imu.Kind) sensors.Type {
	return defaultTypes[k]
}

// CapabilityResolver is DefaultResolver, except AbsoluteOrientation falls
// back to the rotation vector when m has no game rotation vector.
func CapabilityResolver(m sensors.Manager) Resolver {
	return func(k imu.Kind) sensors.Type {
		if k == imu.AbsoluteOrientation {
			if _, ok := m.DefaultSensor(sensors.TypeGameRotationVector); !ok {
				return sensors.TypeRotationVector
			}
		}
		return DefaultResolver(k)
	}
}
