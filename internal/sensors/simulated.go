// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Earth field used by the simulation, world frame (x east, y north, z up), µT.
var simulatedField = r3.Vec{X: 0, Y: 22, Z: -42}

var simulatedSensors = []Sensor{
	{Type: TypeAccelerometer, Name: "Simulated Accelerometer", Vendor: "relabs"},
	{Type: TypeGyroscope, Name: "Simulated Gyroscope", Vendor: "relabs"},
	{Type: TypeMagneticField, Name: "Simulated Magnetometer", Vendor: "relabs"},
	{Type: TypeGravity, Name: "Simulated Gravity", Vendor: "relabs"},
	{Type: TypeLinearAcceleration, Name: "Simulated Linear Acceleration", Vendor: "relabs"},
	{Type: TypeRotationVector, Name: "Simulated Rotation Vector", Vendor: "relabs"},
	{Type: TypeGameRotationVector, Name: "Simulated Game Rotation Vector", Vendor: "relabs"},
}

type simulation struct {
	start time.Time
}

// NewSimulatedManager creates a platform whose sensors follow a smooth,
// self-consistent synthetic motion. Types listed in missing are reported as
// absent, e.g. to mimic a device without a game rotation vector.
func NewSimulatedManager(missing ...Type) *PollingManager {
	skip := make(map[Type]bool, len(missing))
	for _, t := range missing {
		skip[t] = true
	}
	var available []Sensor
	for _, s := range simulatedSensors {
		if !skip[s.Type] {
			available = append(available, s)
		}
	}

	sim := &simulation{start: time.Now()}
	return NewPollingManager("simulated", sim.read, available...)
}

func (s *simulation) read(t Type) ([]float32, error) {
	return SimulatedSample(t, time.Since(s.start).Seconds())
}

// simulatedAttitude is the device-to-world rotation at elapsed seconds.
func simulatedAttitude(elapsed float64) quat.Number {
	yaw := math.Mod(elapsed*0.5, 2*math.Pi)
	pitch := 0.26 * math.Cos(elapsed*0.7)
	roll := 0.35 * math.Sin(elapsed)

	qz := quat.Number(r3.NewRotation(yaw, r3.Vec{Z: 1}))
	qx := quat.Number(r3.NewRotation(pitch, r3.Vec{X: 1}))
	qy := quat.Number(r3.NewRotation(roll, r3.Vec{Y: 1}))
	return quat.Mul(quat.Mul(qz, qx), qy)
}

// toDevice rotates a world-frame vector into the device frame.
func toDevice(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(quat.Conj(q)).Rotate(v)
}

// SimulatedSample returns the values the simulated platform reports for t
// after elapsed seconds.
func SimulatedSample(t Type, elapsed float64) ([]float32, error) {
	q := simulatedAttitude(elapsed)
	gravity := toDevice(q, r3.Vec{Z: GravityEarth})
	linear := r3.Vec{X: 0.4 * math.Sin(elapsed*3), Y: 0.2 * math.Cos(elapsed*2)}

	switch t {
	case TypeAccelerometer:
		return vec3(r3.Add(gravity, linear)), nil
	case TypeGravity:
		return vec3(gravity), nil
	case TypeLinearAcceleration:
		return vec3(linear), nil
	case TypeGyroscope:
		return []float32{
			float32(-0.26 * 0.7 * math.Sin(elapsed*0.7)),
			float32(0.35 * math.Cos(elapsed)),
			0.5,
		}, nil
	case TypeMagneticField:
		return vec3(toDevice(q, simulatedField)), nil
	case TypeRotationVector:
		return []float32{float32(q.Imag), float32(q.Jmag), float32(q.Kmag), float32(q.Real), 0.05}, nil
	case TypeGameRotationVector:
		return []float32{float32(q.Imag), float32(q.Jmag), float32(q.Kmag), float32(q.Real)}, nil
	}
	return nil, ErrNoSensor
}

func vec3(v r3.Vec) []float32 {
	return []float32{float32(v.X), float32(v.Y), float32(v.Z)}
}
