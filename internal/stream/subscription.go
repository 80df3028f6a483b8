package stream

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_sensors/internal/imu"
	"github.com/relabs-tech/motion_sensors/internal/sensors"
)

// State of a Subscription.
type State int

const (
	Inactive State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "inactive"
}

// Subscription owns at most one hardware registration for one kind and
// forwards mapped samples to the sink given to Start.
type Subscription struct {
	kind            imu.Kind
	hw              sensors.Type
	mgr             sensors.Manager
	defaultInterval int
	log             logrus.FieldLogger

	mu       sync.Mutex
	interval int
	sink     Sink
	sensor   *sensors.Sensor
	handle   *listener // live registration, nil while inactive
	gen      uint64
	released bool
}

// listener is the value registered with the platform. Each registration gets
// a fresh one, so samples from a superseded registration are recognized by
// their generation and dropped.
type listener struct {
	sub *Subscription
	gen uint64
}

func (l *listener) OnSensorChanged(e sensors.Event) { l.sub.onSample(l.gen, e.Values) }

func (l *listener) OnAccuracyChanged(sensors.Type, int) {}

func newSubscription(kind imu.Kind, hw sensors.Type, mgr sensors.Manager, o options) *Subscription {
	return &Subscription{
		kind:            kind,
		hw:              hw,
		mgr:             mgr,
		defaultInterval: o.interval,
		interval:        o.interval,
		log:             o.log.WithField("stream", kind.StreamID()),
	}
}

func (s *Subscription) Kind() imu.Kind { return s.kind }

func (s *Subscription) ID() string { return s.kind.StreamID() }

// HardwareType is the platform sensor type backing the subscription.
func (s *Subscription) HardwareType() sensors.Type { return s.hw }

// Interval is the sampling period in microseconds used by the current or
// next registration.
func (s *Subscription) Interval() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		return Active
	}
	return Inactive
}

// Start registers with the platform and begins delivering to sink. When the
// sensor is missing or the platform rejects the registration, one
// unavailable error is delivered to sink and returned, and the subscription
// stays inactive.
func (s *Subscription) Start(sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrDetached
	}
	if s.handle != nil {
		return ErrAlreadyListening
	}

	sensor, ok := s.mgr.DefaultSensor(s.hw)
	if !ok {
		e := unavailable(s.hw, nil)
		s.log.Debugf("start: %v", e)
		sink.Error(e)
		return e
	}
	if err := s.register(sensor); err != nil {
		e := unavailable(s.hw, err)
		s.log.Debugf("start: %v", e)
		sink.Error(e)
		return e
	}
	s.sink = sink
	s.log.Debugf("active at %dµs", s.interval)
	return nil
}

// Stop unregisters and forgets the sink. After Stop returns no further item
// reaches that sink. Stopping an inactive subscription does nothing.
func (s *Subscription) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return
	}
	s.unregister()
	s.sink = nil
	s.log.Debug("inactive")
}

// SetInterval changes the sampling period; a non-positive value selects the
// default. An active subscription re-registers immediately with the same
// sink; an inactive one uses the value on its next Start. If the platform
// rejects the new registration the sink gets an unavailable error and the
// subscription becomes inactive. A released subscription returns ErrDetached.
func (s *Subscription) SetInterval(us int) error {
	if us <= 0 {
		us = s.defaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrDetached
	}
	s.interval = us
	if s.handle == nil {
		return nil
	}

	sensor := s.sensor
	s.unregister()
	if err := s.register(sensor); err != nil {
		e := unavailable(s.hw, err)
		s.log.Warnf("re-register at %dµs: %v", us, err)
		s.sink.Error(e)
		s.sink = nil
		return e
	}
	s.log.Debugf("interval now %dµs", us)
	return nil
}

// release stops the subscription for good; later Starts fail with
// ErrDetached.
func (s *Subscription) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.released = true
	if s.handle == nil {
		return
	}
	s.unregister()
	s.sink = nil
	s.log.Debug("released")
}

// register must be called with s.mu held.
func (s *Subscription) register(sensor *sensors.Sensor) error {
	s.gen++
	h := &listener{sub: s, gen: s.gen}
	if err := s.mgr.RegisterListener(h, sensor, s.interval); err != nil {
		return err
	}
	s.handle = h
	s.sensor = sensor
	return nil
}

// unregister must be called with s.mu held.
func (s *Subscription) unregister() {
	s.mgr.UnregisterListener(s.handle, s.sensor)
	s.handle = nil
}

func (s *Subscription) onSample(gen uint64, values []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil || s.handle.gen != gen || s.sink == nil {
		return
	}
	s.sink.Success(imu.Map(s.kind, imu.RawSample{Kind: s.kind, Values: values}))
}
