package app

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_sensors/internal/imu"
	"github.com/relabs-tech/motion_sensors/internal/sensors"
	"github.com/relabs-tech/motion_sensors/internal/sensors/sensorstest"
	"github.com/relabs-tech/motion_sensors/internal/stream"
)

type published struct {
	topic   string
	payload []byte
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *recordingPublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic: topic, payload: payload})
	return nil
}

func (p *recordingPublisher) on(topic string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, m := range p.msgs {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// gatedPublisher blocks every publish until release is closed.
type gatedPublisher struct {
	recordingPublisher
	entered chan struct{}
	release chan struct{}
}

func (p *gatedPublisher) Publish(topic string, payload []byte) error {
	select {
	case p.entered <- struct{}{}:
	default:
	}
	<-p.release
	return p.recordingPublisher.Publish(topic, payload)
}

func newTestBridge(types ...sensors.Type) (*Bridge, *sensorstest.Manager, *recordingPublisher) {
	m := sensorstest.NewManager(types...)
	pub := &recordingPublisher{}
	return NewBridge(stream.Attach(m, nil), pub, Topics{Prefix: "motion_sensors"}), m, pub
}

func request(t *testing.T, b *Bridge, body string) Reply {
	t.Helper()
	return b.HandleRequest([]byte(body))
}

func TestBridgeListenPublishesVectors(t *testing.T) {
	b, m, pub := newTestBridge(sensors.TypeAccelerometer, sensors.TypeGameRotationVector)
	defer b.Close()

	reply := request(t, b, `{"id":"1","method":"listen","args":{"sensor":"motion_sensors/accelerometer"}}`)
	require.True(t, reply.OK, "%+v", reply.Error)
	assert.Equal(t, "1", reply.ID)

	m.Emit(sensors.TypeAccelerometer, 0.5, 0.25, 9.75)
	require.Eventually(t, func() bool {
		return len(pub.on("motion_sensors/accelerometer")) == 1
	}, time.Second, time.Millisecond)

	var msg VectorMessage
	require.NoError(t, json.Unmarshal(pub.on("motion_sensors/accelerometer")[0].payload, &msg))
	assert.Equal(t, "motion_sensors/accelerometer", msg.Stream)
	assert.Equal(t, imu.Vector{0.5, 0.25, 9.75}, msg.Values)

	reply = request(t, b, `{"method":"listen","args":{"sensor":"accelerometer"}}`)
	assert.False(t, reply.OK)
	assert.NotEmpty(t, reply.ID, "missing ids are generated")

	reply = request(t, b, `{"method":"cancel","args":{"sensor":"accelerometer"}}`)
	require.True(t, reply.OK)
	assert.Zero(t, m.Live(sensors.TypeAccelerometer))
}

func TestBridgeListenUnavailable(t *testing.T) {
	b, _, pub := newTestBridge(sensors.TypeAccelerometer)
	defer b.Close()

	reply := request(t, b, `{"id":"7","method":"listen","args":{"sensor":"gyroscope"}}`)
	assert.False(t, reply.OK)
	require.NotNil(t, reply.Error)
	assert.Equal(t, stream.CodeUnavailable, reply.Error.Code)

	errs := pub.on("motion_sensors/gyroscope/error")
	require.Len(t, errs, 1)
	var msg ErrorMessage
	require.NoError(t, json.Unmarshal(errs[0].payload, &msg))
	assert.Equal(t, ErrorMessage{Stream: "motion_sensors/gyroscope", Code: "unavailable", Message: "Sensor 4 not available"}, msg)

	// a failed stream can be retried
	reply = request(t, b, `{"method":"listen","args":{"sensor":"gyroscope"}}`)
	assert.Equal(t, stream.CodeUnavailable, reply.Error.Code)
	assert.Len(t, pub.on("motion_sensors/gyroscope/error"), 2)
}

func TestBridgeSetUpdateInterval(t *testing.T) {
	b, m, _ := newTestBridge(sensors.TypeGravity)
	defer b.Close()

	require.True(t, request(t, b, `{"method":"listen","args":{"sensor":"gravity"}}`).OK)
	reply := request(t, b, `{"method":"setUpdateInterval","args":{"sensor":"motion_sensors/gravity","interval":66667}}`)
	require.True(t, reply.OK, "%+v", reply.Error)

	calls := m.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, sensorstest.Call{Op: "register", Type: sensors.TypeGravity, PeriodUs: 66667}, calls[2])

	for _, body := range []string{
		`{"method":"setUpdateInterval","args":{"sensor":"gravity","interval":1.5}}`,
		`{"method":"setUpdateInterval","args":{"sensor":"barometer","interval":1000}}`,
		`{"method":"setUpdateInterval","args":{"interval":1000}}`,
		`{"method":"listen"}`,
		`not json`,
	} {
		reply := request(t, b, body)
		assert.False(t, reply.OK, body)
		require.NotNil(t, reply.Error, body)
		assert.Equal(t, stream.CodeArgument, reply.Error.Code, body)
	}
	assert.Len(t, m.Calls(), 3)

	reply = request(t, b, `{"method":"getSensorList"}`)
	assert.Equal(t, stream.CodeNotImplemented, reply.Error.Code)
}

func TestBridgeTerminalErrorEndsPump(t *testing.T) {
	b, m, pub := newTestBridge(sensors.TypeGyroscope)
	defer b.Close()

	require.True(t, request(t, b, `{"method":"listen","args":{"sensor":"gyroscope"}}`).OK)
	m.RejectRegister(sensors.TypeGyroscope, assert.AnError)
	reply := request(t, b, `{"method":"setUpdateInterval","args":{"sensor":"gyroscope","interval":1000}}`)
	assert.Equal(t, stream.CodeUnavailable, reply.Error.Code)

	require.Eventually(t, func() bool {
		return len(pub.on("motion_sensors/gyroscope/error")) == 1
	}, time.Second, time.Millisecond)

	// the stream can be listened to again once the platform recovers
	m.RejectRegister(sensors.TypeGyroscope, nil)
	require.Eventually(t, func() bool {
		return request(t, b, `{"method":"listen","args":{"sensor":"gyroscope"}}`).OK
	}, time.Second, time.Millisecond)
}

func TestBridgeCancelDiscardsBufferedItems(t *testing.T) {
	m := sensorstest.NewManager(sensors.TypeAccelerometer)
	pub := &gatedPublisher{entered: make(chan struct{}, 1), release: make(chan struct{})}
	b := NewBridge(stream.Attach(m, nil), pub, Topics{Prefix: "motion_sensors"})
	defer b.Close()

	require.NoError(t, b.Listen("accelerometer"))
	for i := range 10 {
		m.Emit(sensors.TypeAccelerometer, float32(i), 0, 9.75)
	}
	// the pump is now blocked publishing the first sample
	select {
	case <-pub.entered:
	case <-time.After(time.Second):
		t.Fatal("pump never published")
	}

	cancelled := make(chan Reply)
	go func() {
		cancelled <- request(t, b, `{"method":"cancel","args":{"sensor":"accelerometer"}}`)
	}()
	close(pub.release)

	select {
	case reply := <-cancelled:
		require.True(t, reply.OK)
	case <-time.After(time.Second):
		t.Fatal("cancel did not return")
	}
	afterCancel := len(pub.on("motion_sensors/accelerometer"))
	assert.LessOrEqual(t, afterCancel, 1)

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, pub.on("motion_sensors/accelerometer"), afterCancel)
}

func TestBridgeCloseStopsStreams(t *testing.T) {
	b, m, _ := newTestBridge(sensors.TypeAccelerometer, sensors.TypeGravity)
	require.NoError(t, b.Listen("accelerometer"))
	require.NoError(t, b.Listen("gravity"))

	b.Close()
	assert.Zero(t, m.Live(sensors.TypeAccelerometer))
	assert.Zero(t, m.Live(sensors.TypeGravity))
}

func TestTopics(t *testing.T) {
	tp := Topics{Prefix: "lab/imu"}
	assert.Equal(t, "lab/imu/absolute_orientation", tp.Vector(imu.AbsoluteOrientation))
	assert.Equal(t, "lab/imu/gravity/error", tp.Error(imu.Gravity))
	assert.Equal(t, "lab/imu/method", tp.Method())
	assert.Equal(t, "lab/imu/method/result", tp.Result())

	k, ok := tp.KindOf("lab/imu/gravity/error")
	assert.True(t, ok)
	assert.Equal(t, imu.Gravity, k)
	_, ok = tp.KindOf("lab/imu/method")
	assert.False(t, ok)
	_, ok = tp.KindOf("other/gravity")
	assert.False(t, ok)
}
