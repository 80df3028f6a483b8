package imu

import (
	"fmt"

	"github.com/relabs-tech/motion_sensors/internal/orientation"
)

// minSampleLen is the shortest sample the driver may hand over for any kind;
// rotation-vector sources may append w and a heading accuracy.
const minSampleLen = 3

// Map converts one raw sample into the vector emitted on the kind's stream.
// It panics when the sample is shorter than the kind requires; the hardware
// layer guarantees the shape, so a mismatch is a bug in that layer.
func Map(kind Kind, raw RawSample) Vector {
	if n := len(raw.Values); n < minSampleLen {
		panic(fmt.Sprintf("imu: %s sample has %d values, want at least %d", kind, n, minSampleLen))
	}

	switch kind {
	case Accelerometer, Gyroscope, Magnetometer, Gravity, LinearAcceleration:
		return Vector{
			float64(raw.Values[0]),
			float64(raw.Values[1]),
			float64(raw.Values[2]),
		}

	case Orientation:
		p := orientation.PoseFromVector(widen(raw.Values))
		return Vector{p.Azimuth, p.Pitch, p.Roll}

	case AbsoluteOrientation:
		q := orientation.QuaternionFromVector(widen(raw.Values))
		return Vector{q.Imag, q.Jmag, q.Kmag, q.Real}
	}

	panic(fmt.Sprintf("imu: unknown kind %d", int(kind)))
}

func widen(vs []float32) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = float64(v)
	}
	return out
}
