// Package sensorstest provides a scripted sensors.Manager for tests.
package sensorstest

import (
	"sync"

	"github.com/relabs-tech/motion_sensors/internal/sensors"
)

// Call records one RegisterListener or UnregisterListener invocation.
type Call struct {
	Op       string // "register" or "unregister"
	Type     sensors.Type
	PeriodUs int
}

// Manager is a sensors.Manager whose samples are pushed by the test through
// Emit. It records every registration call in order.
type Manager struct {
	sensors map[sensors.Type]*sensors.Sensor

	mu        sync.Mutex
	calls     []Call
	listeners map[sensors.Type][]sensors.Listener
	reject    map[sensors.Type]error
}

// NewManager returns a fake platform exposing the given types.
func NewManager(types ...sensors.Type) *Manager {
	m := &Manager{
		sensors:   make(map[sensors.Type]*sensors.Sensor, len(types)),
		listeners: make(map[sensors.Type][]sensors.Listener),
		reject:    make(map[sensors.Type]error),
	}
	for _, t := range types {
		m.sensors[t] = &sensors.Sensor{Type: t, Name: "fake " + t.String(), Vendor: "test"}
	}
	return m
}

// RejectRegister makes RegisterListener for t fail with err.
func (m *Manager) RejectRegister(t sensors.Type, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reject[t] = err
}

func (m *Manager) DefaultSensor(t sensors.Type) (*sensors.Sensor, bool) {
	s, ok := m.sensors[t]
	return s, ok
}

func (m *Manager) RegisterListener(l sensors.Listener, s *sensors.Sensor, periodUs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "register", Type: s.Type, PeriodUs: periodUs})
	if err := m.reject[s.Type]; err != nil {
		return err
	}
	for _, have := range m.listeners[s.Type] {
		if have == l {
			return nil
		}
	}
	m.listeners[s.Type] = append(m.listeners[s.Type], l)
	return nil
}

func (m *Manager) UnregisterListener(l sensors.Listener, s *sensors.Sensor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "unregister", Type: s.Type})
	ls := m.listeners[s.Type]
	for i, have := range ls {
		if have == l {
			m.listeners[s.Type] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
}

// Calls returns a copy of the call log.
func (m *Manager) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Live reports how many listeners are registered for t.
func (m *Manager) Live(t sensors.Type) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners[t])
}

// Listeners returns the listeners currently registered for t.
func (m *Manager) Listeners(t sensors.Type) []sensors.Listener {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sensors.Listener(nil), m.listeners[t]...)
}

// Emit delivers values to every listener registered for t. Listeners are
// called outside the manager lock.
func (m *Manager) Emit(t sensors.Type, values ...float32) {
	for _, l := range m.Listeners(t) {
		l.OnSensorChanged(sensors.Event{Sensor: t, Values: values, Accuracy: sensors.AccuracyHigh})
	}
}

// EmitAccuracy delivers an accuracy change to every listener registered for t.
func (m *Manager) EmitAccuracy(t sensors.Type, accuracy int) {
	for _, l := range m.Listeners(t) {
		l.OnAccuracyChanged(t, accuracy)
	}
}
