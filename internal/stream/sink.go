package stream

import (
	"sync/atomic"

	"github.com/relabs-tech/motion_sensors/internal/imu"
)

// Sink is the consumer side of one stream. Implementations must not block:
// they are called from hardware callbacks with the Subscription lock held.
type Sink interface {
	Success(v imu.Vector)
	Error(err *Error)
}

// Item is one element delivered to a ChanSink: a vector or a terminal error.
type Item struct {
	Vector imu.Vector
	Err    *Error
}

// ChanSink buffers items on a channel and drops them when the buffer is full.
type ChanSink struct {
	C       chan Item
	dropped atomic.Uint64
}

// NewChanSink returns a sink buffering up to size items.
func NewChanSink(size int) *ChanSink {
	return &ChanSink{C: make(chan Item, size)}
}

func (s *ChanSink) Success(v imu.Vector) { s.offer(Item{Vector: v}) }

func (s *ChanSink) Error(err *Error) { s.offer(Item{Err: err}) }

func (s *ChanSink) offer(it Item) {
	select {
	case s.C <- it:
	default:
		s.dropped.Add(1)
	}
}

// Dropped reports how many items did not fit the buffer.
func (s *ChanSink) Dropped() uint64 { return s.dropped.Load() }

// FuncSink adapts a pair of functions to a Sink. Nil functions ignore their
// items.
type FuncSink struct {
	OnSuccess func(imu.Vector)
	OnError   func(*Error)
}

func (f FuncSink) Success(v imu.Vector) {
	if f.OnSuccess != nil {
		f.OnSuccess(v)
	}
}

func (f FuncSink) Error(err *Error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}
