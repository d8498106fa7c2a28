// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const disconnectQuiesceMs = 250

// MQTT is a Bus backed by a paho client.
type MQTT struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
	log     zerolog.Logger
}

// MQTTOptions configures DialMQTT.
type MQTTOptions struct {
	Broker   string
	ClientID string
	QoS      byte
	Timeout  time.Duration // per-token wait; zero waits forever
}

// DialMQTT connects to the broker and returns a ready bus.
func DialMQTT(o MQTTOptions, log zerolog.Logger) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		})

	client := mqtt.NewClient(opts)
	m := &MQTT{client: client, qos: o.QoS, timeout: o.Timeout, log: log}
	if err := m.wait(client.Connect()); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", o.Broker, err)
	}
	log.Info().Str("broker", o.Broker).Str("client_id", o.ClientID).Msg("connected to MQTT broker")
	return m, nil
}

func (m *MQTT) wait(token mqtt.Token) error {
	if m.timeout <= 0 {
		token.Wait()
	} else if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("timed out after %s", m.timeout)
	}
	return token.Error()
}

// Publish implements Publisher.
func (m *MQTT) Publish(topic string, retained bool, payload []byte) error {
	return m.wait(m.client.Publish(topic, m.qos, retained, payload))
}

// Subscribe implements Subscriber.
func (m *MQTT) Subscribe(topic string, h Handler) error {
	token := m.client.Subscribe(topic, m.qos, func(_ mqtt.Client, msg mqtt.Message) {
		h(msg.Topic(), msg.Payload())
	})
	if err := m.wait(token); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	m.log.Info().Str("topic", topic).Msg("subscribed")
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	m.client.Disconnect(disconnectQuiesceMs)
}
