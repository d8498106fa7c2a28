// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package oscillator generates the synthetic vertical motion of the vehicle.
package oscillator

import (
	"math"
	"time"

	"github.com/relabs-tech/stateviz/internal/geometry"
	"github.com/relabs-tech/stateviz/internal/tf"
)

const (
	DefaultPeriod    = 140.0 // ticks per radian
	DefaultAmplitude = 2.0
)

// Frames names the two ends of the published transform.
type Frames struct {
	Child  string
	Parent string
}

// Oscillator moves a child frame up and down along Z as a sine of a tick
// counter. It is not safe for concurrent use; one goroutine owns it.
type Oscillator struct {
	Period    float64
	Amplitude float64
	Frames    Frames

	counter uint64
}

// New returns an oscillator with the default sine law.
func New(frames Frames) *Oscillator {
	return &Oscillator{
		Period:    DefaultPeriod,
		Amplitude: DefaultAmplitude,
		Frames:    frames,
	}
}

// Counter is the number of ticks taken so far.
func (o *Oscillator) Counter() uint64 {
	return o.counter
}

// Cycle is sin(c/Period) for the current counter, in [-1, 1].
func (o *Oscillator) Cycle() float64 {
	return CycleAt(o.counter, o.Period)
}

// Offset is the current Z offset, Amplitude*Cycle.
func (o *Oscillator) Offset() float64 {
	return o.Cycle() * o.Amplitude
}

// CycleAt evaluates the sine law at tick c.
func CycleAt(c uint64, period float64) float64 {
	return math.Sin(float64(c) / period)
}

// Transform builds the transform for the current counter.
func (o *Oscillator) Transform(stamp time.Time) tf.TransformStamped {
	var roll, pitch, yaw float64
	return tf.TransformStamped{
		Header:       tf.Header{Stamp: stamp, FrameID: o.Frames.Parent},
		ChildFrameID: o.Frames.Child,
		Transform: tf.Transform{
			Translation: geometry.Vector3{Z: o.Offset()},
			Rotation:    geometry.FromEuler(roll, pitch, yaw),
		},
	}
}

// Advance moves to the next tick.
func (o *Oscillator) Advance() {
	o.counter++
}
