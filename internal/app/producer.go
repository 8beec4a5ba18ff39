// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/relabs-tech/inversion_meter/internal/config"
	"github.com/relabs-tech/inversion_meter/internal/orientation"
)

// producerLogEvery is how many published readings go by between tick logs.
const producerLogEvery = 100

// RunTiltProducer reads the local sensor and publishes every Reading as
// JSON on the tilt topic until ctx is cancelled.
func RunTiltProducer(ctx context.Context) error {
	log.Println("starting inversion tilt producer")

	cfg := config.Get()
	if cfg.SensorSource == "mqtt" {
		return fmt.Errorf("producer: SENSOR_SOURCE must be imu, serial or mock")
	}
	axis, err := orientation.ParseAxis(cfg.TiltAxis)
	if err != nil {
		return err
	}

	src, closer, interval, err := openLocalSource(cfg, axis)
	if err != nil {
		return fmt.Errorf("producer: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	log.Printf("publishing tilt readings on %s", cfg.TopicTilt)

	published := 0
	for r := range orientation.Stream(ctx, src, axis, interval) {
		payload, err := json.Marshal(r)
		if err != nil {
			log.Printf("json marshal error (tilt): %v", err)
			continue
		}
		if token := client.Publish(cfg.TopicTilt, 0, false, payload); token.Wait() && token.Error() != nil {
			log.Printf("MQTT publish error (tilt): %v", token.Error())
			continue
		}

		published++
		if published%producerLogEvery == 0 {
			log.Printf("%s tick: tilt=%.2f landscape=%v (%d published)",
				r.Time.Format("15:04:05"), r.Tilt, r.Landscape, published)
		}
	}

	log.Println("tilt producer stopped")
	return nil
}
