package imu

// RawSample is one unmapped hardware reading.
type RawSample struct {
	Kind   Kind      `json:"kind"`
	Values []float32 `json:"values"` // axis readings as reported by the driver
}

// Vector is the mapped value delivered to stream consumers.
// Length 3 for every kind except AbsoluteOrientation (x, y, z, w).
type Vector []float64
