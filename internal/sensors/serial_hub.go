package sensors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// SerialOptions describes the hub's serial link.
type SerialOptions struct {
	PortName string
	BaudRate uint
	// Sensors lists the hardware types the hub streams. Empty means all.
	Sensors []Type
}

type hubListener struct {
	l       Listener
	limiter *rate.Limiter
}

// SerialHub is a Manager for a microcontroller that streams every sensor at
// its own fixed rate over a serial line. Registrations do not reconfigure the
// device; each listener is throttled to its requested period instead.
type SerialHub struct {
	port    io.ReadCloser
	sensors map[Type]*Sensor

	mu        sync.Mutex
	listeners map[regKey]*hubListener
	closed    bool
	closeOnce sync.Once
}

// OpenSerialHub opens the serial port and returns a hub reading from it.
// Run must be called to start dispatching samples.
func OpenSerialHub(opts SerialOptions) (*SerialHub, error) {
	port, err := serial.Open(serial.OpenOptions{
		PortName:              opts.PortName,
		BaudRate:              opts.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("serial hub: open %s: %w", opts.PortName, err)
	}
	log.Printf("serial hub: opened %s at %d baud", opts.PortName, opts.BaudRate)
	return NewSerialHub(port, opts.Sensors...), nil
}

// NewSerialHub returns a hub reading sentences from r.
func NewSerialHub(r io.ReadCloser, types ...Type) *SerialHub {
	if len(types) == 0 {
		for _, t := range hubSentenceTypes {
			types = append(types, t)
		}
	}
	h := &SerialHub{
		port:      r,
		sensors:   make(map[Type]*Sensor, len(types)),
		listeners: make(map[regKey]*hubListener),
	}
	for _, t := range types {
		h.sensors[t] = &Sensor{Type: t, Name: "Serial " + t.String(), Vendor: "serial hub"}
	}
	return h
}

func (h *SerialHub) DefaultSensor(t Type) (*Sensor, bool) {
	s, ok := h.sensors[t]
	return s, ok
}

func (h *SerialHub) RegisterListener(l Listener, s *Sensor, periodUs int) error {
	if s == nil || h.sensors[s.Type] != s {
		return ErrNoSensor
	}
	limit := rate.Inf
	if periodUs > 0 {
		limit = rate.Every(time.Duration(periodUs) * time.Microsecond)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.listeners[regKey{l: l, t: s.Type}] = &hubListener{l: l, limiter: rate.NewLimiter(limit, 1)}
	log.Debugf("serial hub: registered %s every %dµs", s.Type, periodUs)
	return nil
}

func (h *SerialHub) UnregisterListener(l Listener, s *Sensor) {
	if s == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners, regKey{l: l, t: s.Type})
}

// Registrations reports how many listener registrations are live.
func (h *SerialHub) Registrations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// Run reads sentences until ctx is done or the port fails.
func (h *SerialHub) Run(ctx context.Context) error {
	scan := bufio.NewScanner(h.port)
	lines := make(chan string)
	scanErr := make(chan error, 1)

	// The blocking Scan runs apart from the loop below so that ctx
	// cancellation is observed without waiting for the next line.
	go func() {
		defer close(lines)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErr <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return h.readErr(err)
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return h.readErr(err)
				default:
					return nil
				}
			}
			h.handleLine(line, time.Now())
		}
	}
}

// readErr maps a port error to Run's result; errors caused by Close are not
// failures.
func (h *SerialHub) readErr(err error) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil
	}
	return fmt.Errorf("serial hub: read: %w", err)
}

func (h *SerialHub) handleLine(line string, now time.Time) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return
	}
	r, err := ParseReading(line)
	if err != nil {
		// partial sentences are common right after the port opens
		log.Debugf("serial hub: parse %q: %v", line, err)
		return
	}
	if _, ok := h.sensors[r.Sensor]; !ok {
		return
	}

	values := make([]float32, len(r.Values))
	for i, v := range r.Values {
		values[i] = float32(v)
	}

	h.mu.Lock()
	var targets []Listener
	for key, hl := range h.listeners {
		if key.t == r.Sensor && hl.limiter.AllowN(now, 1) {
			targets = append(targets, hl.l)
		}
	}
	h.mu.Unlock()

	for _, l := range targets {
		l.OnSensorChanged(Event{
			Sensor:    r.Sensor,
			Values:    values,
			Accuracy:  AccuracyHigh,
			Timestamp: now.UnixNano(),
		})
	}
}

// Close drops every listener and closes the port, which also ends Run.
func (h *SerialHub) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		clear(h.listeners)
		h.mu.Unlock()

		if cerr := h.port.Close(); cerr != nil && !errors.Is(cerr, io.ErrClosedPipe) {
			err = fmt.Errorf("serial hub: close: %w", cerr)
		}
	})
	return err
}
