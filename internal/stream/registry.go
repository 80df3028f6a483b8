// Package stream turns platform sensor callbacks into independently
// controllable per-kind streams.
package stream

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_sensors/internal/imu"
	"github.com/relabs-tech/motion_sensors/internal/sensors"
)

// ErrDetached is returned for lookups on a registry after Detach, and by
// subscriptions it released.
var ErrDetached = errors.New("stream: registry detached")

type options struct {
	interval int
	log      logrus.FieldLogger
}

// Option configures Attach.
type Option func(*options)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithDefaultInterval sets the initial sampling period in microseconds, also
// used when SetInterval receives a non-positive value.
func WithDefaultInterval(us int) Option {
	return func(o *options) {
		if us > 0 {
			o.interval = us
		}
	}
}

// Registry holds one Subscription per kind. The set is fixed at Attach.
type Registry struct {
	subs     map[imu.Kind]*Subscription
	detached atomic.Bool
	log      logrus.FieldLogger
}

// Attach builds a Subscription for every kind against m. A nil resolve uses
// CapabilityResolver(m). No hardware is registered until a stream is started.
func Attach(m sensors.Manager, resolve Resolver, opts ...Option) *Registry {
	o := options{interval: sensors.SensorDelayGame, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if resolve == nil {
		resolve = CapabilityResolver(m)
	}

	r := &Registry{subs: make(map[imu.Kind]*Subscription, len(imu.Kinds)), log: o.log}
	for _, k := range imu.Kinds {
		r.subs[k] = newSubscription(k, resolve(k), m, o)
	}
	o.log.Debugf("stream: attached %d streams", len(r.subs))
	return r
}

// Resolve returns the Subscription for a stream id, full or short form.
func (r *Registry) Resolve(id string) (*Subscription, error) {
	if r.detached.Load() {
		return nil, ErrDetached
	}
	k, ok := imu.ParseStreamID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStream, id)
	}
	return r.subs[k], nil
}

// Listen starts the stream id delivering to sink.
func (r *Registry) Listen(id string, sink Sink) error {
	s, err := r.Resolve(id)
	if err != nil {
		return err
	}
	return s.Start(sink)
}

// Cancel stops the stream id.
func (r *Registry) Cancel(id string) error {
	s, err := r.Resolve(id)
	if err != nil {
		return err
	}
	s.Stop()
	return nil
}

// Subscriptions lists every subscription in stream order.
func (r *Registry) Subscriptions() []*Subscription {
	out := make([]*Subscription, 0, len(imu.Kinds))
	for _, k := range imu.Kinds {
		out = append(out, r.subs[k])
	}
	return out
}

// IDs lists every stream id in stream order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(imu.Kinds))
	for _, k := range imu.Kinds {
		ids = append(ids, k.StreamID())
	}
	return ids
}

// Detach stops every subscription whatever its state and releases it, so a
// Subscription obtained earlier from Resolve can no longer register. It may
// be called more than once.
func (r *Registry) Detach() {
	if r.detached.Swap(true) {
		return
	}
	for _, s := range r.Subscriptions() {
		s.release()
	}
	r.log.Debug("stream: detached")
}
