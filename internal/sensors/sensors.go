// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors defines the platform sensor service the streaming core
// registers listeners with, plus the platforms this project runs on.
package sensors

import (
	"errors"
	"fmt"
)

// Type identifies a hardware sensor. Values follow the Android numbering so
// recorded logs and serial hubs can share ids with phone captures.
type Type int

const (
	TypeAccelerometer      Type = 1
	TypeMagneticField      Type = 2
	TypeGyroscope          Type = 4
	TypeGravity            Type = 9
	TypeLinearAcceleration Type = 10
	TypeRotationVector     Type = 11
	TypeGameRotationVector Type = 15
)

func (t Type) String() string {
	switch t {
	case TypeAccelerometer:
		return "accelerometer"
	case TypeMagneticField:
		return "magnetic_field"
	case TypeGyroscope:
		return "gyroscope"
	case TypeGravity:
		return "gravity"
	case TypeLinearAcceleration:
		return "linear_acceleration"
	case TypeRotationVector:
		return "rotation_vector"
	case TypeGameRotationVector:
		return "game_rotation_vector"
	}
	return fmt.Sprintf("type(%d)", int(t))
}

var allTypes = []Type{
	TypeAccelerometer,
	TypeMagneticField,
	TypeGyroscope,
	TypeGravity,
	TypeLinearAcceleration,
	TypeRotationVector,
	TypeGameRotationVector,
}

// ParseType accepts a type name as printed by String or its numeric id.
func ParseType(s string) (Type, bool) {
	for _, t := range allTypes {
		if t.String() == s || fmt.Sprint(int(t)) == s {
			return t, true
		}
	}
	return 0, false
}

// Sampling periods in microseconds.
const (
	SensorDelayFastest = 0
	SensorDelayGame    = 20000
	SensorDelayUI      = 66667
	SensorDelayNormal  = 200000
)

// Accuracy levels reported through Listener.OnAccuracyChanged.
const (
	AccuracyUnreliable = 0
	AccuracyLow        = 1
	AccuracyMedium     = 2
	AccuracyHigh       = 3
)

// GravityEarth is standard gravity in m/s².
const GravityEarth = 9.80665

var (
	ErrNoSensor = errors.New("sensors: no such sensor on this platform")
	ErrClosed   = errors.New("sensors: platform closed")
)

// Sensor describes one hardware sensor available on the platform.
type Sensor struct {
	Type   Type
	Name   string
	Vendor string
	// MinDelay is the shortest supported period in microseconds.
	MinDelay int
}

// Event is one hardware sample.
type Event struct {
	Sensor    Type
	Values    []float32
	Accuracy  int
	Timestamp int64 // nanoseconds
}

// Listener receives samples for the sensors it is registered with.
type Listener interface {
	OnSensorChanged(e Event)
	OnAccuracyChanged(t Type, accuracy int)
}

// Manager is the platform sensor service.
//
// Implementations must not call a Listener from within RegisterListener or
// while holding a lock that UnregisterListener also takes, and
// UnregisterListener must not wait for an in-flight callback to return:
// listeners serialize delivery against their own unregistration.
type Manager interface {
	DefaultSensor(t Type) (*Sensor, bool)
	RegisterListener(l Listener, s *Sensor, periodUs int) error
	UnregisterListener(l Listener, s *Sensor)
}

// regKey identifies one listener registration.
type regKey struct {
	l Listener
	t Type
}
