// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"math"
	"sync"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

// MPU9250Options selects the SPI wiring and full-scale ranges.
type MPU9250Options struct {
	SPIDevice string
	CSPin     string
	// AccelRange: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	AccelRange byte
	// GyroRange: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	GyroRange byte
}

// mpu9250Min is the fastest period the polling loop is allowed to run at.
// The SPI reads of one axis triple take a few hundred microseconds.
const mpu9250Min = 1000

// mpuReader wraps the device; periph devices are not safe for concurrent use
// and accelerometer and gyroscope are polled from separate goroutines.
type mpuReader struct {
	mu         sync.Mutex
	dev        *mpu9250.MPU9250
	accelScale float64 // counts -> m/s²
	gyroScale  float64 // counts -> rad/s
}

// NewMPU9250Manager initializes an MPU9250 over SPI and exposes its
// accelerometer and gyroscope. The magnetometer and the derived sensors are
// not present on this platform.
func NewMPU9250Manager(opts MPU9250Options) (*PollingManager, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("mpu9250: periph host init: %w", err)
	}
	if opts.AccelRange > 3 || opts.GyroRange > 3 {
		return nil, fmt.Errorf("mpu9250: ranges must be 0-3, got accel=%d gyro=%d", opts.AccelRange, opts.GyroRange)
	}

	cs := gpioreg.ByName(opts.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("mpu9250: CS pin %q not found", opts.CSPin)
	}

	tr, err := mpu9250.NewSpiTransport(opts.SPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("mpu9250: SPI transport (%s): %w", opts.SPIDevice, err)
	}

	dev, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("mpu9250: device creation: %w", err)
	}
	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("mpu9250: initialization: %w", err)
	}
	if err := dev.SetAccelRange(opts.AccelRange); err != nil {
		return nil, fmt.Errorf("mpu9250: set accel range: %w", err)
	}
	if err := dev.SetGyroRange(opts.GyroRange); err != nil {
		return nil, fmt.Errorf("mpu9250: set gyro range: %w", err)
	}
	log.Printf("mpu9250: accel range ±%dg, gyro range ±%d°/s",
		[]int{2, 4, 8, 16}[opts.AccelRange], []int{250, 500, 1000, 2000}[opts.GyroRange])

	if err := dev.Calibrate(); err != nil {
		log.Warnf("mpu9250: calibration failed: %v", err)
	}

	r := &mpuReader{
		dev:        dev,
		accelScale: AccelScale(opts.AccelRange),
		gyroScale:  GyroScale(opts.GyroRange),
	}
	return NewPollingManager("mpu9250", r.read,
		Sensor{Type: TypeAccelerometer, Name: "MPU9250 Accelerometer", Vendor: "InvenSense", MinDelay: mpu9250Min},
		Sensor{Type: TypeGyroscope, Name: "MPU9250 Gyroscope", Vendor: "InvenSense", MinDelay: mpu9250Min},
	), nil
}

// AccelScale converts raw accelerometer counts to m/s² for a range setting.
func AccelScale(accelRange byte) float64 {
	return GravityEarth / float64(int(16384)>>accelRange)
}

// GyroScale converts raw gyroscope counts to rad/s for a range setting.
func GyroScale(gyroRange byte) float64 {
	lsbPerDeg := 131.0 / float64(int(1)<<gyroRange)
	return math.Pi / 180 / lsbPerDeg
}

func (r *mpuReader) read(t Type) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		get   [3]func() (int16, error)
		scale float64
	)
	switch t {
	case TypeAccelerometer:
		get = [3]func() (int16, error){r.dev.GetAccelerationX, r.dev.GetAccelerationY, r.dev.GetAccelerationZ}
		scale = r.accelScale
	case TypeGyroscope:
		get = [3]func() (int16, error){r.dev.GetRotationX, r.dev.GetRotationY, r.dev.GetRotationZ}
		scale = r.gyroScale
	default:
		return nil, ErrNoSensor
	}

	out := make([]float32, 3)
	for i, f := range get {
		v, err := f()
		if err != nil {
			return nil, fmt.Errorf("mpu9250: %s axis %d: %w", t, i, err)
		}
		out[i] = float32(float64(v) * scale)
	}
	return out, nil
}
