package app

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/motion_sensors/internal/config"
	"github.com/relabs-tech/motion_sensors/internal/stream"
)

// RunStreamer opens the platform, attaches the stream registry and serves it
// over MQTT and HTTP until ctx is done. On the way out every stream is
// detached before the platform closes.
func RunStreamer(ctx context.Context, cfg *config.Config) error {
	log.Println("starting motion_sensors streamer")

	platform, err := OpenPlatform(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := platform.Close(); err != nil {
			log.Printf("streamer: platform close: %v", err)
		}
	}()

	reg := stream.Attach(platform, nil,
		stream.WithDefaultInterval(cfg.DefaultIntervalUs),
		stream.WithLogger(log.StandardLogger()),
	)
	defer reg.Detach()

	for _, s := range reg.Subscriptions() {
		if _, ok := platform.DefaultSensor(s.HardwareType()); !ok {
			log.Warnf("streamer: %s has no %s on %s", s.ID(), s.HardwareType(), platform.Name)
		}
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("streamer: MQTT connect error: %w", token.Error())
	}
	defer client.Disconnect(250)
	log.Printf("streamer: connected to MQTT broker at %s", cfg.MQTTBroker)

	bridge := NewBridge(reg, NewPublisher(client), Topics{Prefix: cfg.TopicPrefix})
	web := NewWeb(reg)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return platform.Run(ctx) })
	g.Go(func() error { return bridge.Run(ctx, client) })
	g.Go(func() error { return web.Run(ctx, fmt.Sprintf(":%d", cfg.WebServerPort)) })

	err = g.Wait()
	log.Println("streamer: shutting down")
	return err
}
