package sensors

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// fastestPoll bounds SensorDelayFastest for hardware without its own floor.
const fastestPoll = 1000

// ReadFunc reads the current values of one sensor type.
type ReadFunc func(t Type) ([]float32, error)

// PollingManager is a Manager for hardware that has to be read actively.
// Every registration gets its own goroutine ticking at the requested period.
type PollingManager struct {
	name    string
	read    ReadFunc
	sensors map[Type]*Sensor

	mu     sync.Mutex
	regs   map[regKey]context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewPollingManager returns a manager exposing the given sensors, all read
// through read.
func NewPollingManager(name string, read ReadFunc, available ...Sensor) *PollingManager {
	m := &PollingManager{
		name:    name,
		read:    read,
		sensors: make(map[Type]*Sensor, len(available)),
		regs:    make(map[regKey]context.CancelFunc),
	}
	for i := range available {
		s := available[i]
		m.sensors[s.Type] = &s
	}
	return m
}

func (m *PollingManager) DefaultSensor(t Type) (*Sensor, bool) {
	s, ok := m.sensors[t]
	return s, ok
}

func (m *PollingManager) RegisterListener(l Listener, s *Sensor, periodUs int) error {
	if s == nil || m.sensors[s.Type] != s {
		return ErrNoSensor
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	if periodUs < s.MinDelay {
		periodUs = s.MinDelay
	}
	if periodUs < fastestPoll {
		periodUs = fastestPoll
	}

	key := regKey{l: l, t: s.Type}
	if cancel, ok := m.regs[key]; ok {
		cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.regs[key] = cancel
	m.wg.Add(1)
	go m.poll(ctx, l, s.Type, time.Duration(periodUs)*time.Microsecond)

	log.Debugf("%s: registered %s every %dµs", m.name, s.Type, periodUs)
	return nil
}

func (m *PollingManager) UnregisterListener(l Listener, s *Sensor) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := regKey{l: l, t: s.Type}
	if cancel, ok := m.regs[key]; ok {
		cancel()
		delete(m.regs, key)
		log.Debugf("%s: unregistered %s", m.name, s.Type)
	}
}

// Registrations reports how many listener registrations are live.
func (m *PollingManager) Registrations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.regs)
}

// Close stops every polling goroutine and waits for them to exit.
func (m *PollingManager) Close() error {
	m.mu.Lock()
	m.closed = true
	for key, cancel := range m.regs {
		cancel()
		delete(m.regs, key)
	}
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

func (m *PollingManager) poll(ctx context.Context, l Listener, t Type, period time.Duration) {
	defer m.wg.Done()

	l.OnAccuracyChanged(t, AccuracyHigh)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			values, err := m.read(t)
			if err != nil {
				log.Debugf("%s: read %s: %v", m.name, t, err)
				continue
			}
			if ctx.Err() != nil {
				return
			}
			l.OnSensorChanged(Event{
				Sensor:    t,
				Values:    values,
				Accuracy:  AccuracyHigh,
				Timestamp: now.UnixNano(),
			})
		}
	}
}
