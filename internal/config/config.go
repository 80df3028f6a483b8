package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Platforms accepted for SENSOR_PLATFORM.
const (
	PlatformMock    = "mock"
	PlatformMPU9250 = "mpu9250"
	PlatformSerial  = "serial"
)

// EnvPrefix prefixes environment overrides, e.g. MOTION_MQTT_BROKER.
const EnvPrefix = "MOTION"

// SSD1306Addr is the only address the ssd1306 driver talks to.
const SSD1306Addr = 0x3C

// Config holds all application configuration values.
type Config struct {
	// Sensor platform
	SensorPlatform string

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string

	// IMU Sensor Ranges
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// Serial hub
	SerialPort     string
	SerialBaudRate uint
	SerialSensors  []string // hardware type names; empty streams everything

	// Streams
	DefaultIntervalUs int

	// MQTT
	MQTTBroker   string
	MQTTClientID string
	TopicPrefix  string

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CAddr        uint16
	DisplayStream         string
	DisplayUpdateInterval int // milliseconds

	LogLevel string
}

var defaults = map[string]string{
	"SENSOR_PLATFORM":         PlatformMock,
	"IMU_SPI_DEVICE":          "/dev/spidev0.0",
	"IMU_CS_PIN":              "GPIO8",
	"IMU_ACCEL_RANGE":         "0",
	"IMU_GYRO_RANGE":          "0",
	"SERIAL_PORT":             "/dev/ttyUSB0",
	"SERIAL_BAUD_RATE":        "115200",
	"SERIAL_SENSORS":          "",
	"DEFAULT_INTERVAL_US":     "20000",
	"MQTT_BROKER":             "tcp://localhost:1883",
	"MQTT_CLIENT_ID":          "motion-sensors",
	"TOPIC_PREFIX":            "motion_sensors",
	"WEB_SERVER_PORT":         "8080",
	"DISPLAY_I2C_ADDR":        "0x3C",
	"DISPLAY_STREAM":          "motion_sensors/orientation",
	"DISPLAY_UPDATE_INTERVAL": "200",
	"LOG_LEVEL":               "info",
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads a KEY=VALUE configuration file; MOTION_-prefixed environment
// variables override it and unset keys fall back to defaults. An empty path
// loads defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for _, key := range v.AllKeys() {
		if _, ok := defaults[strings.ToUpper(key)]; !ok {
			return nil, fmt.Errorf("unknown config key: %q", strings.ToUpper(key))
		}
	}

	cfg := &Config{}
	for key := range defaults {
		value := strings.TrimSpace(v.GetString(key))
		if err := cfg.setValue(key, value); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	case "SENSOR_PLATFORM":
		c.SensorPlatform = strings.ToLower(value)

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value

	// IMU Sensor Ranges
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_GYRO_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.IMUGyroRange = byte(rangeVal)

	// Serial hub
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = uint(rate)
	case "SERIAL_SENSORS":
		c.SerialSensors = nil
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				c.SerialSensors = append(c.SerialSensors, name)
			}
		}

	// Streams
	case "DEFAULT_INTERVAL_US":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DEFAULT_INTERVAL_US %q: %w", value, err)
		}
		c.DefaultIntervalUs = interval

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "TOPIC_PREFIX":
		c.TopicPrefix = strings.TrimSuffix(value, "/")

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_STREAM":
		c.DisplayStream = value
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks the fields the selected platform depends on.
func (c *Config) validate() error {
	platforms := []string{PlatformMock, PlatformMPU9250, PlatformSerial}
	if !slices.Contains(platforms, c.SensorPlatform) {
		return fmt.Errorf("SENSOR_PLATFORM must be one of %v, got %q", platforms, c.SensorPlatform)
	}
	switch c.SensorPlatform {
	case PlatformMPU9250:
		if c.IMUSPIDevice == "" {
			return fmt.Errorf("IMU_SPI_DEVICE is required")
		}
		if c.IMUCSPin == "" {
			return fmt.Errorf("IMU_CS_PIN is required")
		}
	case PlatformSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required")
		}
		if c.SerialBaudRate == 0 {
			return fmt.Errorf("SERIAL_BAUD_RATE is required")
		}
	}
	if c.DisplayI2CAddr != SSD1306Addr {
		return fmt.Errorf("DISPLAY_I2C_ADDR must be 0x%02X, got 0x%02X", SSD1306Addr, c.DisplayI2CAddr)
	}
	if c.DefaultIntervalUs <= 0 {
		return fmt.Errorf("DEFAULT_INTERVAL_US must be positive, got %d", c.DefaultIntervalUs)
	}
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicPrefix == "" {
		return fmt.Errorf("TOPIC_PREFIX is required")
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive, got %d", c.DisplayUpdateInterval)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
