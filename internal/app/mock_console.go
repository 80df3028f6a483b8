// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/relabs-tech/motion_sensors/internal/imu"
	"github.com/relabs-tech/motion_sensors/internal/sensors"
	"github.com/relabs-tech/motion_sensors/internal/stream"
)

// RunMockConsole streams the simulated platform in-process and prints every
// sample, without MQTT. ids selects the streams; empty means all of them.
func RunMockConsole(ctx context.Context, out io.Writer, ids []string, intervalUs int) error {
	platform := sensors.NewSimulatedManager()
	defer platform.Close()

	reg := stream.Attach(platform, nil, stream.WithDefaultInterval(intervalUs))
	defer reg.Detach()

	if len(ids) == 0 {
		ids = reg.IDs()
	}

	lines := make(chan string, 256)
	for _, id := range ids {
		sub, err := reg.Resolve(id)
		if err != nil {
			return err
		}
		streamID := sub.ID()
		sink := stream.FuncSink{
			OnSuccess: func(v imu.Vector) {
				line := FormatVector(VectorMessage{Stream: streamID, Values: v, Time: time.Now()})
				select {
				case lines <- line:
				default:
				}
			},
			OnError: func(e *stream.Error) {
				select {
				case lines <- fmt.Sprintf("[%-20s] ERROR %s: %s", sub.Kind(), e.Code, e.Message):
				default:
				}
			},
		}
		if err := sub.Start(sink); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-lines:
			fmt.Fprintln(out, line)
		}
	}
}
