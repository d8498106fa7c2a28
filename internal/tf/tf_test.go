package tf

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/stateviz/internal/geometry"
	"github.com/relabs-tech/stateviz/internal/transport"
)

func TestSendTransform(t *testing.T) {
	bus := transport.NewMemory()
	var msgs []Message
	require.NoError(t, bus.Subscribe("tf", func(_ string, p []byte) {
		var m Message
		require.NoError(t, json.Unmarshal(p, &m))
		msgs = append(msgs, m)
	}))

	br := NewBroadcaster(bus, "tf")
	assert.Equal(t, "tf", br.Topic())

	stamp := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	require.NoError(t, br.SendTransform(geometry.Vector3{Z: 1.5}, geometry.Identity, stamp, "map", "moving_frame"))

	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Transforms, 1)
	ts := msgs[0].Transforms[0]
	assert.Equal(t, "map", ts.ChildFrameID)
	assert.Equal(t, "moving_frame", ts.Header.FrameID)
	assert.True(t, stamp.Equal(ts.Header.Stamp))
	assert.Equal(t, 1.5, ts.Transform.Translation.Z)
	assert.Equal(t, geometry.Identity, ts.Transform.Rotation)
}

func TestSendFailsOnClosedBus(t *testing.T) {
	bus := transport.NewMemory()
	bus.Close()
	err := NewBroadcaster(bus, "tf").SendTransform(geometry.Vector3{}, geometry.Identity, time.Now(), "a", "b")
	assert.ErrorIs(t, err, transport.ErrClosed)
}
