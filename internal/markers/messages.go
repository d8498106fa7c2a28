// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package markers

import (
	"github.com/relabs-tech/stateviz/internal/geometry"
	"github.com/relabs-tech/stateviz/internal/tf"
)

// MarkerType selects the primitive a Marker renders as.
type MarkerType int

const (
	Arrow MarkerType = iota
	Cube
	Sphere
	Cylinder
	LineStrip
	LineList
	CubeList
	SphereList
	Points
	TextViewFacing
	MeshResource
	TriangleList
)

// MarkerAction tells the viewer what to do with a Marker.
type MarkerAction int

const (
	ActionAdd MarkerAction = iota
	ActionModify
	ActionDelete
	ActionDeleteAll
)

// ColorRGBA components are in [0, 1].
type ColorRGBA struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

// Marker is one visual primitive.
type Marker struct {
	Header                   tf.Header        `json:"header"`
	Namespace                string           `json:"ns"`
	ID                       int32            `json:"id"`
	Type                     MarkerType       `json:"type"`
	Action                   MarkerAction     `json:"action"`
	Pose                     geometry.Pose    `json:"pose"`
	Scale                    geometry.Vector3 `json:"scale"`
	Color                    ColorRGBA        `json:"color"`
	Text                     string           `json:"text,omitempty"`
	MeshResource             string           `json:"mesh_resource,omitempty"`
	MeshUseEmbeddedMaterials bool             `json:"mesh_use_embedded_materials"`
}

// OrientationMode controls how a control follows the marker frame.
type OrientationMode int

const (
	OrientationInherit OrientationMode = iota
	OrientationFixed
	OrientationViewFacing
)

// InteractionMode is what dragging a control does.
type InteractionMode int

const (
	InteractionNone InteractionMode = iota
	InteractionMenu
	InteractionButton
	InteractionMoveAxis
	InteractionMovePlane
	InteractionRotateAxis
	InteractionMoveRotate
	InteractionMove3D
	InteractionRotate3D
	InteractionMoveRotate3D
)

// Control is one mode of interaction on an interactive marker, plus the
// markers drawn for it.
type Control struct {
	Name                         string              `json:"name"`
	Orientation                  geometry.Quaternion `json:"orientation"`
	OrientationMode              OrientationMode     `json:"orientation_mode"`
	InteractionMode              InteractionMode     `json:"interaction_mode"`
	AlwaysVisible                bool                `json:"always_visible"`
	Markers                      []Marker            `json:"markers"`
	IndependentMarkerOrientation bool                `json:"independent_marker_orientation"`
	Description                  string              `json:"description,omitempty"`
}

// InteractiveMarker is a named object that clients may manipulate.
type InteractiveMarker struct {
	Header      tf.Header     `json:"header"`
	Pose        geometry.Pose `json:"pose"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Scale       float64       `json:"scale"`
	Controls    []Control     `json:"controls"`
}

// Clone returns a deep copy.
func (m InteractiveMarker) Clone() InteractiveMarker {
	out := m
	if m.Controls == nil {
		return out
	}
	out.Controls = make([]Control, len(m.Controls))
	for i, c := range m.Controls {
		c.Markers = append([]Marker(nil), c.Markers...)
		out.Controls[i] = c
	}
	return out
}

// EventType classifies feedback.
type EventType int

const (
	EventKeepAlive EventType = iota
	EventPoseUpdate
	EventMenuSelect
	EventButtonClick
	EventMouseDown
	EventMouseUp
)

// Feedback is sent by a client when it manipulates a marker.
type Feedback struct {
	Header          tf.Header      `json:"header"`
	ClientID        string         `json:"client_id"`
	MarkerName      string         `json:"marker_name"`
	ControlName     string         `json:"control_name"`
	EventType       EventType      `json:"event_type"`
	Pose            geometry.Pose  `json:"pose"`
	MenuEntryID     uint32         `json:"menu_entry_id,omitempty"`
	MousePoint      geometry.Point `json:"mouse_point"`
	MousePointValid bool           `json:"mouse_point_valid"`
}

// UpdateType distinguishes real updates from keep-alives.
type UpdateType int

const (
	UpdateKeepAlive UpdateType = iota
	UpdateChanges
)

// MarkerPose is a pose-only change to an existing marker.
type MarkerPose struct {
	Header tf.Header     `json:"header"`
	Pose   geometry.Pose `json:"pose"`
	Name   string        `json:"name"`
}

// Update is the incremental message published by a Server.
type Update struct {
	ServerID string              `json:"server_id"`
	SeqNum   uint64              `json:"seq_num"`
	Type     UpdateType          `json:"type"`
	Markers  []InteractiveMarker `json:"markers"`
	Poses    []MarkerPose        `json:"poses"`
	Erases   []string            `json:"erases"`
}

// Init is the full committed state of a Server.
type Init struct {
	ServerID string              `json:"server_id"`
	SeqNum   uint64              `json:"seq_num"`
	Markers  []InteractiveMarker `json:"markers"`
}
