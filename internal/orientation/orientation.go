package orientation

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Pose is the device orientation derived from a rotation vector, in radians.
// Field order matches the order it is emitted on the orientation stream.
type Pose struct {
	Azimuth float64 `json:"azimuth"`
	Pitch   float64 `json:"pitch"`
	Roll    float64 `json:"roll"`
}

// scalarPart returns the w component of a rotation vector. Sources that
// report only x, y, z leave w implicit; it is then the positive root that
// completes a unit quaternion.
func scalarPart(rv []float64) float64 {
	if len(rv) >= 4 {
		return rv[3]
	}
	w := 1 - rv[0]*rv[0] - rv[1]*rv[1] - rv[2]*rv[2]
	if w > 0 {
		return math.Sqrt(w)
	}
	return 0
}

// RotationMatrixFromVector converts a rotation vector (x, y, z[, w[, accuracy]])
// into a row-major 3x3 rotation matrix.
func RotationMatrixFromVector(rv []float64) [9]float64 {
	q1, q2, q3 := rv[0], rv[1], rv[2]
	q0 := scalarPart(rv)

	sqQ1 := 2 * q1 * q1
	sqQ2 := 2 * q2 * q2
	sqQ3 := 2 * q3 * q3
	q1q2 := 2 * q1 * q2
	q3q0 := 2 * q3 * q0
	q1q3 := 2 * q1 * q3
	q2q0 := 2 * q2 * q0
	q2q3 := 2 * q2 * q3
	q1q0 := 2 * q1 * q0

	return [9]float64{
		1 - sqQ2 - sqQ3, q1q2 - q3q0, q1q3 + q2q0,
		q1q2 + q3q0, 1 - sqQ1 - sqQ3, q2q3 - q1q0,
		q1q3 - q2q0, q2q3 + q1q0, 1 - sqQ1 - sqQ2,
	}
}

// PoseFromMatrix derives azimuth, pitch and roll from a rotation matrix using
// the device-orientation convention:
//
//	azimuth = atan2(R[1], R[4])
//	pitch   = asin(-R[7])
//	roll    = atan2(-R[6], R[8])
func PoseFromMatrix(r [9]float64) Pose {
	return Pose{
		Azimuth: math.Atan2(r[1], r[4]),
		Pitch:   math.Asin(clamp(-r[7], -1, 1)),
		Roll:    math.Atan2(-r[6], r[8]),
	}
}

// PoseFromVector is RotationMatrixFromVector followed by PoseFromMatrix.
func PoseFromVector(rv []float64) Pose {
	return PoseFromMatrix(RotationMatrixFromVector(rv))
}

// QuaternionFromVector converts a rotation vector into a unit quaternion.
// The sign reported by the hardware is kept as is; q and -q are not
// canonicalized.
func QuaternionFromVector(rv []float64) quat.Number {
	q := quat.Number{
		Real: scalarPart(rv),
		Imag: rv[0],
		Jmag: rv[1],
		Kmag: rv[2],
	}
	if n := quat.Abs(q); n > 0 && n != 1 {
		q = quat.Scale(1/n, q)
	}
	return q
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
