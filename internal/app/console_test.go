package app

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/stateviz/internal/geometry"
	"github.com/relabs-tech/stateviz/internal/markers"
	"github.com/relabs-tech/stateviz/internal/tf"
	"github.com/relabs-tech/stateviz/internal/transport"
)

func TestConsolePrintsTraffic(t *testing.T) {
	bus := transport.NewMemory()
	var out bytes.Buffer
	require.NoError(t, subscribeConsole(bus, "tf", "basic_controls", &out, zerolog.Nop()))

	br := tf.NewBroadcaster(bus, "tf")
	require.NoError(t, br.SendTransform(geometry.Vector3{Z: 1.683}, geometry.Identity, time.Now(), "map", "moving_frame"))

	srv := markers.NewServer(bus, markers.ServerOptions{Namespace: "basic_controls", ServerID: "basic_controls"}, zerolog.Nop())
	m, err := MakeQuadcopterMarker("moving_frame", StartPosition, 1)
	require.NoError(t, err)
	srv.Insert(m, nil)
	require.NoError(t, srv.ApplyChanges())
	require.NoError(t, srv.KeepAlive())

	require.NoError(t, bus.Publish("tf", false, []byte("garbage")))

	assert.Equal(t,
		"[TF  ] map -> moving_frame  t=(+0.000 +0.000 +1.683)  q=(0.000 0.000 0.000 1.000)\n"+
			"[MRK ] basic_controls seq=1 markers=1 poses=0 erases=0\n"+
			"[MRK ] basic_controls seq=1 keep-alive\n",
		out.String())
}
