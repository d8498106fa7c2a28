// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package transport carries visualization messages between the node, the
// viewer bridge and the console. Payloads are JSON.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrClosed is returned by a bus after Close.
var ErrClosed = errors.New("transport: bus closed")

// Handler receives one message.
type Handler func(topic string, payload []byte)

// Publisher sends payloads to a topic.
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// Subscriber delivers messages on a topic to a handler.
type Subscriber interface {
	Subscribe(topic string, h Handler) error
}

// Bus is a connected publish/subscribe client.
type Bus interface {
	Publisher
	Subscriber
	Close()
}

// PublishJSON marshals v and publishes it.
func PublishJSON(p Publisher, topic string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	if err := p.Publish(topic, retained, payload); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
