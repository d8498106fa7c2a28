// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tf publishes coordinate-frame transforms.
package tf

import (
	"time"

	"github.com/relabs-tech/stateviz/internal/geometry"
	"github.com/relabs-tech/stateviz/internal/transport"
)

// Header stamps a message with a time and a reference frame.
type Header struct {
	Stamp   time.Time `json:"stamp"`
	FrameID string    `json:"frame_id"`
}

// Transform is a rigid translation plus rotation.
type Transform struct {
	Translation geometry.Vector3    `json:"translation"`
	Rotation    geometry.Quaternion `json:"rotation"`
}

// TransformStamped relates ChildFrameID to Header.FrameID (the parent).
type TransformStamped struct {
	Header       Header    `json:"header"`
	ChildFrameID string    `json:"child_frame_id"`
	Transform    Transform `json:"transform"`
}

// Message is the envelope published on the transform topic.
type Message struct {
	Transforms []TransformStamped `json:"transforms"`
}

// Broadcaster publishes transforms on one topic.
type Broadcaster struct {
	pub   transport.Publisher
	topic string
}

// NewBroadcaster returns a broadcaster publishing on topic.
func NewBroadcaster(pub transport.Publisher, topic string) *Broadcaster {
	return &Broadcaster{pub: pub, topic: topic}
}

// Topic returns the topic transforms are published on.
func (b *Broadcaster) Topic() string {
	return b.topic
}

// SendTransform publishes a single transform from child to parent.
func (b *Broadcaster) SendTransform(translation geometry.Vector3, rotation geometry.Quaternion, stamp time.Time, child, parent string) error {
	return b.Send(TransformStamped{
		Header:       Header{Stamp: stamp, FrameID: parent},
		ChildFrameID: child,
		Transform: Transform{
			Translation: translation,
			Rotation:    rotation,
		},
	})
}

// Send publishes one or more transforms in a single message.
func (b *Broadcaster) Send(transforms ...TransformStamped) error {
	return transport.PublishJSON(b.pub, b.topic, false, Message{Transforms: transforms})
}
