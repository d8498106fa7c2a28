package markers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneIsDeep(t *testing.T) {
	orig := InteractiveMarker{
		Name: "a",
		Controls: []Control{{
			Name:    "c",
			Markers: []Marker{{Type: Cube}},
		}},
	}
	cp := orig.Clone()
	cp.Controls[0].Name = "changed"
	cp.Controls[0].Markers[0].Type = Sphere

	assert.Equal(t, "c", orig.Controls[0].Name)
	assert.Equal(t, Cube, orig.Controls[0].Markers[0].Type)
	assert.Nil(t, InteractiveMarker{}.Clone().Controls)
}

func TestWireNumbering(t *testing.T) {
	assert.Equal(t, MarkerType(10), MeshResource)
	assert.Equal(t, MarkerType(11), TriangleList)
	assert.Equal(t, InteractionMode(5), InteractionRotateAxis)
	assert.Equal(t, InteractionMode(9), InteractionMoveRotate3D)
	assert.Equal(t, EventType(1), EventPoseUpdate)
	assert.Equal(t, EventType(5), EventMouseUp)
	assert.Equal(t, UpdateType(1), UpdateChanges)
}
