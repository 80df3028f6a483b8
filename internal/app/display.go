package app

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_sensors/internal/config"
	"github.com/relabs-tech/motion_sensors/internal/imu"
)

// DisplayData holds the latest item of the displayed stream.
type DisplayData struct {
	mu     sync.RWMutex
	vector VectorMessage
	err    *ErrorMessage
	have   bool
}

func (d *DisplayData) setVector(v VectorMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vector, d.err, d.have = v, nil, true
}

func (d *DisplayData) setError(e ErrorMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err, d.have = &e, true
}

// Lines renders the current state as display text for kind k.
func (d *DisplayData) Lines(k imu.Kind) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return displayLines(k, d.vector, d.err, d.have)
}

// RunDisplay renders the latest sample of DISPLAY_STREAM, read from MQTT, on
// an SSD1306 until ctx is done.
func RunDisplay(ctx context.Context, cfg *config.Config) error {
	k, ok := imu.ParseStreamID(cfg.DisplayStream)
	if !ok {
		return fmt.Errorf("display: unknown stream %q", cfg.DisplayStream)
	}
	topics := Topics{Prefix: cfg.TopicPrefix}

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := dev.Draw(dev.Bounds(), renderFrame("Motion", "sensors", k.String()), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID + "-display")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(topics.Vector(k), 0, func(_ mqtt.Client, msg mqtt.Message) {
		var v VectorMessage
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Printf("display: %s unmarshal error: %v", k, err)
			return
		}
		data.setVector(v)
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	token = client.Subscribe(topics.Error(k), 0, func(_ mqtt.Client, msg mqtt.Message) {
		var e ErrorMessage
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			log.Printf("display: %s error unmarshal error: %v", k, err)
			return
		}
		data.setError(e)
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", topics.Vector(k))

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := dev.Draw(dev.Bounds(), renderFrame(data.Lines(k)...), image.Point{}); err != nil {
				log.Printf("display: error updating display: %v", err)
			}
		}
	}
}

func displayLines(k imu.Kind, v VectorMessage, e *ErrorMessage, have bool) []string {
	title := strings.ReplaceAll(k.String(), "_", " ")
	if len(title) > 18 {
		title = title[:18]
	}
	switch {
	case !have:
		return []string{title, "Waiting..."}
	case e != nil:
		return []string{title, e.Code, e.Message}
	}

	lines := []string{title}
	labels := vectorLabels(k, len(v.Values))
	for i, label := range labels {
		value := v.Values[i]
		if k == imu.Orientation {
			lines = append(lines, fmt.Sprintf("%-5s %7.1f", label, value*180/math.Pi))
		} else {
			lines = append(lines, fmt.Sprintf("%-5s %7.3f", label, value))
		}
	}
	return lines
}

// renderFrame draws up to five lines of text on a blank 128x64 frame.
func renderFrame(lines ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		if i == 5 {
			break
		}
		drawer.Dot = fixed.P(0, 12+i*13)
		drawer.DrawString(line)
	}
	return img
}
