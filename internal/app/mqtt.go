// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inversion_meter/internal/orientation"
	"github.com/relabs-tech/inversion_meter/internal/permission"
)

// subackFailure is the MQTT SUBACK return code for a refused subscription.
const subackFailure = 0x80

func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	log.Printf("connected to MQTT broker at %s as %s", broker, clientID)
	return client, nil
}

// tiltHandler decodes Readings from the tilt topic into out. Readings are
// dropped when the meter is behind; the next one supersedes them anyway.
func tiltHandler(out chan<- orientation.Reading) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var r orientation.Reading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("meter: tilt unmarshal error: %v", err)
			return
		}
		select {
		case out <- r:
		default:
		}
	}
}

// subscriptionRequester treats the tilt topic subscription as the sensor
// permission: a broker ACL refusal is a denial, a transport failure is a
// failed request.
type subscriptionRequester struct {
	client  mqtt.Client
	topic   string
	handler mqtt.MessageHandler
}

func (s subscriptionRequester) Request(ctx context.Context) (permission.Outcome, error) {
	token := s.client.Subscribe(s.topic, 0, s.handler)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return permission.Unsupported, ctx.Err()
	}

	if st, ok := token.(*mqtt.SubscribeToken); ok {
		if code, ok := st.Result()[s.topic]; ok && code == subackFailure {
			return permission.Denied, nil
		}
	}
	if err := token.Error(); err != nil {
		return permission.Unsupported, fmt.Errorf("subscribe %s: %w", s.topic, err)
	}
	log.Printf("meter: subscribed to %s", s.topic)
	return permission.Granted, nil
}
