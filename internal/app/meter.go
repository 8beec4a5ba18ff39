// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inversion_meter/internal/config"
	"github.com/relabs-tech/inversion_meter/internal/meter"
	"github.com/relabs-tech/inversion_meter/internal/orientation"
	"github.com/relabs-tech/inversion_meter/internal/permission"
	"github.com/relabs-tech/inversion_meter/internal/session"
)

// tiltQueue bounds the readings waiting for the meter loop.
const tiltQueue = 64

// RunMeter runs the inversion meter: the session controller, its MQTT state
// and command topics, and the web server.
func RunMeter(ctx context.Context) error {
	log.Println("starting inversion meter")

	cfg := config.Get()
	policy, err := permission.ParsePolicy(cfg.PermissionPolicy)
	if err != nil {
		return err
	}
	axis, err := orientation.ParseAxis(cfg.TiltAxis)
	if err != nil {
		return err
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDMeter)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	var (
		readings  <-chan orientation.Reading
		requester permission.Requester
	)
	if cfg.SensorSource == "mqtt" {
		tilt := make(chan orientation.Reading, tiltQueue)
		readings = tilt
		requester = subscriptionRequester{client: client, topic: cfg.TopicTilt, handler: tiltHandler(tilt)}
	} else {
		readings = startLocalStream(ctx, cfg, axis)
		requester = localRequester(cfg)
	}

	ctl := meter.New(meter.Options{
		ZeroPoint:   cfg.InitialZeroPoint,
		BufferSize:  cfg.BufferSize,
		ElapsedTick: time.Duration(cfg.ElapsedTickInterval) * time.Millisecond,
		BufferTick:  time.Duration(cfg.BufferTickInterval) * time.Millisecond,
		Requester:   requester,
		Policy:      policy,
	})

	go publishState(ctx, client, cfg, ctl)

	if err := subscribeCommands(ctx, client, cfg, ctl); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler: NewWebHandler(ctx, ctl, cfg.WebStaticDir),
	}
	go func() {
		log.Printf("web server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("web server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if cfg.PermissionAutoRequest {
		go func() {
			if _, err := ctl.RequestPermission(ctx); err != nil {
				log.Printf("meter: permission request error: %v", err)
			}
		}()
	}

	return ctl.Run(ctx, readings)
}

// publishState mirrors snapshots onto the retained state topic, and the
// history onto its own retained topic whenever a session is added.
func publishState(ctx context.Context, client mqtt.Client, cfg *config.Config, m Meter) {
	updates, cancel := m.Subscribe()
	defer cancel()

	historyLen := -1
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if payload, err := json.Marshal(snap); err != nil {
				log.Printf("json marshal error (state): %v", err)
			} else if token := client.Publish(cfg.TopicState, 0, true, payload); token.Wait() && token.Error() != nil {
				log.Printf("MQTT publish error (state): %v", token.Error())
			}

			if len(snap.History) == historyLen {
				continue
			}
			historyLen = len(snap.History)
			history := snap.History
			if history == nil {
				history = []session.Record{}
			}
			if payload, err := json.Marshal(history); err != nil {
				log.Printf("json marshal error (history): %v", err)
			} else if token := client.Publish(cfg.TopicHistory, 0, true, payload); token.Wait() && token.Error() != nil {
				log.Printf("MQTT publish error (history): %v", token.Error())
			}
		}
	}
}

func subscribeCommands(ctx context.Context, client mqtt.Client, cfg *config.Config, m Meter) error {
	reply := func(res CommandResult) {
		payload, err := json.Marshal(res)
		if err != nil {
			log.Printf("json marshal error (command result): %v", err)
			return
		}
		if token := client.Publish(cfg.TopicCommandResult, 0, false, payload); token.Wait() && token.Error() != nil {
			log.Printf("MQTT publish error (command result): %v", token.Error())
		}
	}

	token := client.Subscribe(cfg.TopicCommand, 0, commandHandler(ctx, m, reply))
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", cfg.TopicCommand, token.Error())
	}
	log.Printf("meter: subscribed to %s", cfg.TopicCommand)
	return nil
}

// commandHandler runs each Command off the MQTT router goroutine and hands
// the outcome to reply.
func commandHandler(ctx context.Context, m Meter, reply func(CommandResult)) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var cmd Command
		if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
			log.Printf("meter: command unmarshal error: %v", err)
			reply(CommandResult{Error: "malformed command"})
			return
		}
		go func() {
			res := CommandResult{Action: cmd.Action}
			if _, _, err := Dispatch(ctx, m, cmd.Action); err != nil {
				log.Printf("meter: command %q: %v", cmd.Action, err)
				res.Error = err.Error()
			}
			reply(res)
		}()
	}
}
