package imu

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats/scalar"
)

const tol = 1e-6

func TestMapVectorKindsAreIdentity(t *testing.T) {
	samples := [][]float32{
		{1, 2, 3},
		{-0.5, 0.25, -9.75},
		{0, 0, 0},
		{1024.125, -3e-3, 7},
	}
	for _, kind := range []Kind{Accelerometer, Gyroscope, Magnetometer, Gravity, LinearAcceleration} {
		for _, values := range samples {
			got := Map(kind, RawSample{Kind: kind, Values: values})
			require.Len(t, got, 3, kind.String())
			for i := range got {
				assert.Equal(t, float64(values[i]), got[i], "%s axis %d", kind, i)
			}
		}
	}
}

func TestMapIgnoresTrailingValues(t *testing.T) {
	got := Map(Gyroscope, RawSample{Kind: Gyroscope, Values: []float32{1, 2, 3, 4, 5}})
	assert.Equal(t, Vector{1, 2, 3}, got)
}

func TestMapAbsoluteOrientationIdentityQuaternion(t *testing.T) {
	got := Map(AbsoluteOrientation, RawSample{Kind: AbsoluteOrientation, Values: []float32{0, 0, 0, 1}})
	assert.Equal(t, Vector{0, 0, 0, 1}, got)
}

func TestMapAbsoluteOrientationDerivesScalar(t *testing.T) {
	// 90° about z without the w component.
	s := float32(math.Sqrt2 / 2)
	got := Map(AbsoluteOrientation, RawSample{Kind: AbsoluteOrientation, Values: []float32{0, 0, s}})
	require.Len(t, got, 4)
	assert.True(t, scalar.EqualWithinAbs(got[2], math.Sqrt2/2, tol), "z=%v", got[2])
	assert.True(t, scalar.EqualWithinAbs(got[3], math.Sqrt2/2, tol), "w=%v", got[3])
	assert.GreaterOrEqual(t, got[3], 0.0)
}

func TestMapAbsoluteOrientationIsUnit(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		x, y, z, w := rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()
		n := math.Sqrt(x*x + y*y + z*z + w*w)
		values := []float32{float32(x / n), float32(y / n), float32(z / n), float32(w / n)}
		if i%2 == 1 {
			// Drop w, keeping the sign convention of a positive scalar.
			if w < 0 {
				values = []float32{float32(-x / n), float32(-y / n), float32(-z / n)}
			} else {
				values = values[:3]
			}
		}

		got := Map(AbsoluteOrientation, RawSample{Kind: AbsoluteOrientation, Values: values})
		norm := got[0]*got[0] + got[1]*got[1] + got[2]*got[2] + got[3]*got[3]
		assert.True(t, scalar.EqualWithinAbs(norm, 1, tol), "sample %d: |q|²=%v", i, norm)
	}
}

func TestMapAbsoluteOrientationKeepsSign(t *testing.T) {
	got := Map(AbsoluteOrientation, RawSample{Kind: AbsoluteOrientation, Values: []float32{0, 0, 0, -1}})
	assert.Equal(t, Vector{0, 0, 0, -1}, got)
}

func TestMapOrientation(t *testing.T) {
	theta := math.Pi / 6
	s, c := float32(math.Sin(theta/2)), float32(math.Cos(theta/2))

	tests := []struct {
		name   string
		values []float32
		want   Vector
	}{
		{"identity", []float32{0, 0, 0, 1}, Vector{0, 0, 0}},
		{"identity without w", []float32{0, 0, 0}, Vector{0, 0, 0}},
		{"about z", []float32{0, 0, s, c}, Vector{-theta, 0, 0}},
		{"about x", []float32{s, 0, 0, c}, Vector{0, -theta, 0}},
		{"about y", []float32{0, s, 0, c}, Vector{0, 0, theta}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Map(Orientation, RawSample{Kind: Orientation, Values: tt.values})
			require.Len(t, got, 3)
			for i := range got {
				assert.True(t, scalar.EqualWithinAbs(got[i], tt.want[i], tol), "axis %d: got %v want %v", i, got[i], tt.want[i])
			}
		})
	}
}

func TestMapPanicsOnShortSample(t *testing.T) {
	assert.Panics(t, func() {
		Map(Accelerometer, RawSample{Kind: Accelerometer, Values: []float32{1, 2}})
	})
	assert.Panics(t, func() {
		Map(AbsoluteOrientation, RawSample{Kind: AbsoluteOrientation})
	})
}

func TestVectorLen(t *testing.T) {
	for _, k := range Kinds {
		values := []float32{0, 0, 0, 1}
		assert.Len(t, Map(k, RawSample{Kind: k, Values: values}), k.VectorLen(), k.String())
	}
}
