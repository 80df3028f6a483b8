package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_sensors/internal/imu"
	"github.com/relabs-tech/motion_sensors/internal/stream"
)

// Bridge methods accepted on the method topic besides setUpdateInterval.
const (
	MethodListen = "listen"
	MethodCancel = "cancel"
)

// sinkBuffer bounds how many items a stream may queue ahead of the publisher.
const sinkBuffer = 64

// VectorMessage is published on a stream's topic for every sample.
type VectorMessage struct {
	Stream string     `json:"stream"`
	Values imu.Vector `json:"values"`
	Time   time.Time  `json:"time"`
}

// ErrorMessage is published on a stream's error topic.
type ErrorMessage struct {
	Stream  string `json:"stream"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Request is a method-topic message.
type Request struct {
	ID     string         `json:"id,omitempty"`
	Method string         `json:"method"`
	Args   map[string]any `json:"args,omitempty"`
}

// Reply answers a Request on the result topic.
type Reply struct {
	ID    string        `json:"id"`
	OK    bool          `json:"ok"`
	Error *ErrorMessage `json:"error,omitempty"`
}

// Topics derives every MQTT topic from one prefix.
type Topics struct {
	Prefix string
}

func (t Topics) Vector(k imu.Kind) string { return t.Prefix + "/" + k.String() }

func (t Topics) Error(k imu.Kind) string { return t.Prefix + "/" + k.String() + "/error" }

func (t Topics) Method() string { return t.Prefix + "/method" }

func (t Topics) Result() string { return t.Prefix + "/method/result" }

// KindOf maps a vector or error topic back to its kind.
func (t Topics) KindOf(topic string) (imu.Kind, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/")
	if !ok {
		return 0, false
	}
	rest = strings.TrimSuffix(rest, "/error")
	return imu.ParseStreamID(rest)
}

// Publisher sends one payload. The MQTT client is wrapped by mqttPublisher.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

type mqttPublisher struct {
	client mqtt.Client
}

func (p mqttPublisher) Publish(topic string, payload []byte) error {
	if token := p.client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

type pump struct {
	sub  *stream.Subscription
	sink *stream.ChanSink
	stop chan struct{}

	// mu is held across a publish; once stopped is set nothing else is sent.
	mu      sync.Mutex
	stopped bool
}

// Bridge exposes the registry over MQTT: every active stream is published on
// its own topic and method requests are answered on the result topic.
type Bridge struct {
	reg    *stream.Registry
	disp   *stream.Dispatcher
	pub    Publisher
	topics Topics

	mu    sync.Mutex
	pumps map[imu.Kind]*pump
	wg    sync.WaitGroup
}

func NewBridge(reg *stream.Registry, pub Publisher, topics Topics) *Bridge {
	return &Bridge{
		reg:    reg,
		disp:   stream.NewDispatcher(reg),
		pub:    pub,
		topics: topics,
		pumps:  make(map[imu.Kind]*pump),
	}
}

// Listen starts a stream and publishes its items until Cancel. A start
// failure is published on the error topic and returned.
func (b *Bridge) Listen(id string) error {
	sub, err := b.reg.Resolve(id)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pumps[sub.Kind()]; ok {
		return stream.ErrAlreadyListening
	}

	sink := stream.NewChanSink(sinkBuffer)
	if err := sub.Start(sink); err != nil {
	drain:
		for {
			select {
			case it := <-sink.C:
				b.publishItem(sub.Kind(), it)
			default:
				break drain
			}
		}
		return err
	}

	p := &pump{sub: sub, sink: sink, stop: make(chan struct{})}
	b.pumps[sub.Kind()] = p
	b.wg.Add(1)
	go b.run(sub.Kind(), p)
	log.Printf("bridge: publishing %s on %s", sub.ID(), b.topics.Vector(sub.Kind()))
	return nil
}

// Cancel stops a stream started through Listen. Streams started elsewhere
// are left alone.
func (b *Bridge) Cancel(id string) error {
	sub, err := b.reg.Resolve(id)
	if err != nil {
		return err
	}
	b.stop(sub.Kind())
	return nil
}

func (b *Bridge) stop(k imu.Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pumps[k]
	if !ok {
		return
	}
	delete(b.pumps, k)
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.sub.Stop()
	close(p.stop)
	log.Printf("bridge: stopped %s", k.StreamID())
}

// Close stops every stream the bridge started and waits for the publishers.
func (b *Bridge) Close() {
	b.mu.Lock()
	kinds := make([]imu.Kind, 0, len(b.pumps))
	for k := range b.pumps {
		kinds = append(kinds, k)
	}
	b.mu.Unlock()

	for _, k := range kinds {
		b.stop(k)
	}
	b.wg.Wait()
}

func (b *Bridge) run(k imu.Kind, p *pump) {
	defer b.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case it := <-p.sink.C:
			if !b.publishPumped(k, p, it) {
				return
			}
			if it.Err != nil {
				// terminal: the subscription went inactive
				b.mu.Lock()
				if b.pumps[k] == p {
					delete(b.pumps, k)
				}
				b.mu.Unlock()
				return
			}
		}
	}
}

// publishPumped publishes it unless the pump was stopped, in which case the
// buffered item is discarded.
func (b *Bridge) publishPumped(k imu.Kind, p *pump, it stream.Item) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	b.publishItem(k, it)
	return true
}

func (b *Bridge) publishItem(k imu.Kind, it stream.Item) {
	var (
		topic   string
		payload []byte
		err     error
	)
	if it.Err != nil {
		topic = b.topics.Error(k)
		payload, err = json.Marshal(errorMessage(k.StreamID(), it.Err))
	} else {
		topic = b.topics.Vector(k)
		payload, err = json.Marshal(VectorMessage{Stream: k.StreamID(), Values: it.Vector, Time: time.Now()})
	}
	if err != nil {
		log.Printf("bridge: json marshal error (%s): %v", k, err)
		return
	}
	if err := b.pub.Publish(topic, payload); err != nil {
		log.Printf("bridge: MQTT publish error (%s): %v", topic, err)
	}
}

func errorMessage(id string, err error) *ErrorMessage {
	var se *stream.Error
	if errors.As(err, &se) {
		return &ErrorMessage{Stream: id, Code: se.Code, Message: se.Message, Details: se.Details}
	}
	return &ErrorMessage{Stream: id, Code: stream.CodeArgument, Message: err.Error()}
}

// HandleRequest executes one method-topic payload.
func (b *Bridge) HandleRequest(payload []byte) Reply {
	var req Request
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return Reply{ID: uuid.NewString(), Error: &ErrorMessage{Code: stream.CodeArgument, Message: fmt.Sprintf("bad request: %v", err)}}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	var err error
	switch req.Method {
	case MethodListen, MethodCancel:
		id, ok := req.Args["sensor"].(string)
		if !ok {
			err = stream.ErrArgument
			break
		}
		if req.Method == MethodListen {
			err = b.Listen(id)
		} else {
			err = b.Cancel(id)
		}
	default:
		err = b.disp.Call(stream.MethodCall{Method: req.Method, Args: req.Args})
	}

	if err != nil {
		sensor, _ := req.Args["sensor"].(string)
		log.Debugf("bridge: %s %s: %v", req.Method, sensor, err)
		return Reply{ID: req.ID, Error: errorMessage(sensor, err)}
	}
	return Reply{ID: req.ID, OK: true}
}

// Run serves method requests on client until ctx is done, then stops every
// stream it started.
func (b *Bridge) Run(ctx context.Context, client mqtt.Client) error {
	defer b.Close()

	token := client.Subscribe(b.topics.Method(), 1, func(c mqtt.Client, msg mqtt.Message) {
		reply := b.HandleRequest(msg.Payload())
		payload, err := json.Marshal(reply)
		if err != nil {
			log.Printf("bridge: json marshal error (reply): %v", err)
			return
		}
		c.Publish(b.topics.Result(), 1, false, payload)
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("bridge: subscribe %s: %w", b.topics.Method(), token.Error())
	}
	log.Printf("bridge: subscribed to %s", b.topics.Method())

	<-ctx.Done()
	client.Unsubscribe(b.topics.Method()).WaitTimeout(time.Second)
	return nil
}

// NewPublisher wraps a connected MQTT client.
func NewPublisher(client mqtt.Client) Publisher {
	return mqttPublisher{client: client}
}
