package sensors

import (
	"strings"
	"testing"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatParseReading(t *testing.T) {
	tests := []struct {
		typ    Type
		values []float32
	}{
		{TypeAccelerometer, []float32{0.12, -0.03, 9.79}},
		{TypeGyroscope, []float32{0, 0, 0.5}},
		{TypeMagneticField, []float32{12.5, 22, -42.25}},
		{TypeGravity, []float32{0, 0, 9.80665}},
		{TypeLinearAcceleration, []float32{-1e-3, 2, 3}},
		{TypeRotationVector, []float32{0.01, 0.02, 0.7, 0.71, 0.05}},
		{TypeGameRotationVector, []float32{0, 0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			line, err := FormatReading(tt.typ, tt.values)
			require.NoError(t, err)

			r, err := ParseReading(line)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, r.Sensor)
			require.Len(t, r.Values, len(tt.values))
			for i, v := range tt.values {
				assert.Equal(t, v, float32(r.Values[i]))
			}
		})
	}
}

func TestFormatReadingChecksum(t *testing.T) {
	line, err := FormatReading(TypeAccelerometer, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "$IMACC,1,2,3*59", line)

	line, err = FormatReading(TypeMagneticField, []float32{12.5, 22, -42.25})
	require.NoError(t, err)
	body, sum, ok := strings.Cut(strings.TrimPrefix(line, "$"), "*")
	require.True(t, ok)
	assert.Equal(t, "IMMAG,12.5,22,-42.25", body)
	assert.Equal(t, nmea.Checksum(body), sum)

	_, err = FormatReading(Type(99), []float32{1, 2, 3})
	assert.Error(t, err)
}

func TestParseReadingRejects(t *testing.T) {
	tests := map[string]string{
		"bad checksum":  "$IMACC,1,2,3*00",
		"no checksum":   "$IMACC,1,2,3",
		"wrong talker":  "$GPACC,1,2,3*4A",
		"too few":       "$IMACC,1,2*46",
		"not a number":  "$IMACC,1,x,3*13",
		"standard type": "$GPGLL,3723.2475,N,12158.3416,W,161229.487,A,A*41",
	}
	for name, line := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseReading(line)
			assert.Error(t, err)
		})
	}
}
