package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_sensors/internal/config"
	"github.com/relabs-tech/motion_sensors/internal/imu"
)

// RunConsole prints every stream published under the configured prefix. Each
// id in listen is requested from the streamer first and cancelled on exit.
func RunConsole(ctx context.Context, cfg *config.Config, out io.Writer, listen []string) error {
	topics := Topics{Prefix: cfg.TopicPrefix}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID + "-console-" + uuid.NewString()[:8])

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("console: MQTT connect: %w", token.Error())
	}
	defer client.Disconnect(250)
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	subs := map[string]mqtt.MessageHandler{
		topics.Prefix + "/+": func(_ mqtt.Client, msg mqtt.Message) {
			if _, ok := topics.KindOf(msg.Topic()); !ok {
				return
			}
			var v VectorMessage
			if err := json.Unmarshal(msg.Payload(), &v); err != nil {
				log.Debugf("console: %s unmarshal error: %v", msg.Topic(), err)
				return
			}
			fmt.Fprintln(out, FormatVector(v))
		},
		topics.Prefix + "/+/error": func(_ mqtt.Client, msg mqtt.Message) {
			var e ErrorMessage
			if err := json.Unmarshal(msg.Payload(), &e); err != nil {
				log.Printf("console: %s unmarshal error: %v", msg.Topic(), err)
				return
			}
			fmt.Fprintf(out, "[%-20s] ERROR %s: %s\n", strings.TrimPrefix(e.Stream, imu.ChannelPrefix), e.Code, e.Message)
		},
		topics.Result(): func(_ mqtt.Client, msg mqtt.Message) {
			var r Reply
			if err := json.Unmarshal(msg.Payload(), &r); err != nil {
				return
			}
			if !r.OK && r.Error != nil {
				log.Warnf("console: request %s failed: %s: %s", r.ID, r.Error.Code, r.Error.Message)
			}
		},
	}
	for topic, handler := range subs {
		token := client.Subscribe(topic, 0, handler)
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("console: subscribe %s: %w", topic, token.Error())
		}
		log.Printf("console: subscribed to %s", topic)
	}

	for _, id := range listen {
		if err := sendRequest(client, topics, MethodListen, id); err != nil {
			return err
		}
	}
	defer func() {
		for _, id := range listen {
			if err := sendRequest(client, topics, MethodCancel, id); err != nil {
				log.Printf("console: %v", err)
			}
		}
	}()

	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}

func sendRequest(client mqtt.Client, topics Topics, method, id string) error {
	payload, err := json.Marshal(Request{ID: uuid.NewString(), Method: method, Args: map[string]any{"sensor": id}})
	if err != nil {
		return err
	}
	if token := client.Publish(topics.Method(), 1, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("console: %s %s: %w", method, id, token.Error())
	}
	return nil
}

// FormatVector renders one sample as a console line.
func FormatVector(v VectorMessage) string {
	name := strings.TrimPrefix(v.Stream, imu.ChannelPrefix)
	k, _ := imu.ParseStreamID(v.Stream)

	var b strings.Builder
	fmt.Fprintf(&b, "[%-20s]", name)
	for i, label := range vectorLabels(k, len(v.Values)) {
		fmt.Fprintf(&b, " %s=%8.3f", label, v.Values[i])
	}
	return b.String()
}

func vectorLabels(k imu.Kind, n int) []string {
	var labels []string
	switch k {
	case imu.Orientation:
		labels = []string{"AZ", "PITCH", "ROLL"}
	case imu.AbsoluteOrientation:
		labels = []string{"X", "Y", "Z", "W"}
	default:
		labels = []string{"X", "Y", "Z"}
	}
	if n < len(labels) {
		labels = labels[:n]
	}
	return labels
}
