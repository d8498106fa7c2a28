// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"

	"github.com/relabs-tech/stateviz/internal/geometry"
	"github.com/relabs-tech/stateviz/internal/markers"
	"github.com/relabs-tech/stateviz/internal/tf"
)

const (
	QuadcopterName = "quadcopter"
	MarkerResource = "package://stateviz/arrowhead.stl"
	MarkerScale    = 0.02 // mesh units per unit of marker scale
)

// StartPosition is where the quadcopter appears in the parent frame.
var StartPosition = geometry.Point{X: 0, Y: -3, Z: 0}

var markerColor = markers.ColorRGBA{R: 1, G: 0, B: 0, A: 1}

// dragHandleOrientation is normalized before use.
var dragHandleOrientation = geometry.Quaternion{X: 0, Y: 1, Z: 0, W: 1}

// dragHandleModes lists one entry per drag-handle control attached to the
// quadcopter. The node has always published the same handle twice.
var dragHandleModes = []markers.InteractionMode{
	markers.InteractionNone,
	markers.InteractionNone,
}

func makeBox(msg markers.InteractiveMarker) markers.Marker {
	return markers.Marker{
		Type:         markers.MeshResource,
		MeshResource: MarkerResource,
		Scale:        geometry.Uniform(msg.Scale * MarkerScale),
		Color:        markerColor,
		Pose:         geometry.NewPose(geometry.Point{}),
	}
}

func makeBoxControl(msg *markers.InteractiveMarker) markers.Control {
	control := markers.Control{
		AlwaysVisible: true,
		Orientation:   geometry.Identity,
		Markers:       []markers.Marker{makeBox(*msg)},
	}
	msg.Controls = append(msg.Controls, control)
	return control
}

// dragHandle builds one handle control. Each call returns an independent
// value.
func dragHandle(mode markers.InteractionMode) (markers.Control, error) {
	q, err := dragHandleOrientation.Normalized()
	if err != nil {
		return markers.Control{}, fmt.Errorf("drag handle orientation: %w", err)
	}
	return markers.Control{
		Orientation:     q,
		InteractionMode: mode,
	}, nil
}

// MakeQuadcopterMarker assembles the quadcopter interactive marker in frame
// at position, drawn at the given marker scale.
func MakeQuadcopterMarker(frame string, position geometry.Point, scale float64) (markers.InteractiveMarker, error) {
	marker := markers.InteractiveMarker{
		Header: tf.Header{FrameID: frame},
		Pose:   geometry.NewPose(position),
		Scale:  scale,
		Name:   QuadcopterName,
	}

	makeBoxControl(&marker)

	for _, mode := range dragHandleModes {
		control, err := dragHandle(mode)
		if err != nil {
			return markers.InteractiveMarker{}, err
		}
		marker.Controls = append(marker.Controls, control)
	}
	return marker, nil
}
