package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_sensors/internal/config"
	"github.com/relabs-tech/motion_sensors/internal/sensors"
)

// Platform is an opened sensor manager plus its lifecycle hooks.
type Platform struct {
	sensors.Manager
	Name string

	run   func(ctx context.Context) error
	close func() error
}

// Run drives platforms that need a reader loop and blocks until ctx is done.
func (p *Platform) Run(ctx context.Context) error {
	if p.run == nil {
		<-ctx.Done()
		return nil
	}
	err := p.run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("platform: %s reader stopped", p.Name)
	}
	return err
}

func (p *Platform) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

// OpenPlatform opens the sensor platform selected by SENSOR_PLATFORM.
func OpenPlatform(cfg *config.Config) (*Platform, error) {
	switch cfg.SensorPlatform {
	case config.PlatformMock:
		m := sensors.NewSimulatedManager()
		log.Println("platform: simulated sensors")
		return &Platform{Manager: m, Name: cfg.SensorPlatform, close: m.Close}, nil

	case config.PlatformMPU9250:
		m, err := sensors.NewMPU9250Manager(sensors.MPU9250Options{
			SPIDevice:  cfg.IMUSPIDevice,
			CSPin:      cfg.IMUCSPin,
			AccelRange: cfg.IMUAccelRange,
			GyroRange:  cfg.IMUGyroRange,
		})
		if err != nil {
			return nil, err
		}
		log.Printf("platform: MPU9250 on %s (CS %s)", cfg.IMUSPIDevice, cfg.IMUCSPin)
		return &Platform{Manager: m, Name: cfg.SensorPlatform, close: m.Close}, nil

	case config.PlatformSerial:
		types := make([]sensors.Type, 0, len(cfg.SerialSensors))
		for _, name := range cfg.SerialSensors {
			t, ok := sensors.ParseType(name)
			if !ok {
				return nil, fmt.Errorf("platform: unknown serial sensor %q", name)
			}
			types = append(types, t)
		}
		hub, err := sensors.OpenSerialHub(sensors.SerialOptions{
			PortName: cfg.SerialPort,
			BaudRate: cfg.SerialBaudRate,
			Sensors:  types,
		})
		if err != nil {
			return nil, err
		}
		return &Platform{Manager: hub, Name: cfg.SensorPlatform, run: hub.Run, close: hub.Close}, nil
	}
	return nil, fmt.Errorf("platform: unknown sensor platform %q", cfg.SensorPlatform)
}
