package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "motion_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, PlatformMock, cfg.SensorPlatform)
	assert.Equal(t, 20000, cfg.DefaultIntervalUs)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, "motion_sensors", cfg.TopicPrefix)
	assert.Equal(t, uint16(0x3C), cfg.DisplayI2CAddr)
	assert.Equal(t, uint(115200), cfg.SerialBaudRate)
	assert.Empty(t, cfg.SerialSensors)
	assert.Equal(t, 8080, cfg.WebServerPort)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
# hardware
SENSOR_PLATFORM=serial
SERIAL_PORT=/dev/ttyACM0
SERIAL_BAUD_RATE=230400
SERIAL_SENSORS=accelerometer, gyroscope,game_rotation_vector

IMU_ACCEL_RANGE=2
IMU_GYRO_RANGE=3
DEFAULT_INTERVAL_US=5000
TOPIC_PREFIX=lab/imu/
DISPLAY_I2C_ADDR=0x3c
LOG_LEVEL=DEBUG
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, PlatformSerial, cfg.SensorPlatform)
	assert.Equal(t, "/dev/ttyACM0", cfg.SerialPort)
	assert.Equal(t, uint(230400), cfg.SerialBaudRate)
	assert.Equal(t, []string{"accelerometer", "gyroscope", "game_rotation_vector"}, cfg.SerialSensors)
	assert.Equal(t, byte(2), cfg.IMUAccelRange)
	assert.Equal(t, byte(3), cfg.IMUGyroRange)
	assert.Equal(t, 5000, cfg.DefaultIntervalUs)
	assert.Equal(t, "lab/imu", cfg.TopicPrefix)
	assert.Equal(t, uint16(SSD1306Addr), cfg.DisplayI2CAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "MQTT_BROKER=tcp://broker:1883\nWEB_SERVER_PORT=9000\n")
	t.Setenv("MOTION_WEB_SERVER_PORT", "9100")
	t.Setenv("MOTION_SENSOR_PLATFORM", "mpu9250")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
	assert.Equal(t, 9100, cfg.WebServerPort)
	assert.Equal(t, PlatformMPU9250, cfg.SensorPlatform)
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]string{
		"unknown key":         "GPS_SERIAL_PORT=/dev/ttyS0\n",
		"accel range":         "IMU_ACCEL_RANGE=4\n",
		"gyro range":          "IMU_GYRO_RANGE=x\n",
		"platform":            "SENSOR_PLATFORM=android\n",
		"interval":            "DEFAULT_INTERVAL_US=0\n",
		"port":                "WEB_SERVER_PORT=70000\n",
		"i2c address":         "DISPLAY_I2C_ADDR=zz\n",
		"i2c alternate addr":  "DISPLAY_I2C_ADDR=0x3D\n",
		"serial without rate": "SENSOR_PLATFORM=serial\nSERIAL_BAUD_RATE=0\n",
		"empty broker":        "MQTT_BROKER=\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
