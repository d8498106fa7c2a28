package app

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/stateviz/internal/geometry"
	"github.com/relabs-tech/stateviz/internal/markers"
	"github.com/relabs-tech/stateviz/internal/oscillator"
	"github.com/relabs-tech/stateviz/internal/tf"
	"github.com/relabs-tech/stateviz/internal/transport"
)

type busRecorder struct {
	mu      sync.Mutex
	tf      []tf.Message
	updates []markers.Update
}

func (r *busRecorder) transforms() []tf.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tf.Message(nil), r.tf...)
}

func (r *busRecorder) markerUpdates() []markers.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]markers.Update(nil), r.updates...)
}

func testOptions() NodeOptions {
	return NodeOptions{
		Name:              "basic_controls",
		TopicTF:           "tf",
		MarkerNamespace:   "basic_controls",
		Frames:            oscillator.Frames{Child: "map", Parent: "moving_frame"},
		MarkerScale:       1,
		StartPosition:     StartPosition,
		TimerInterval:     time.Hour,
		KeepAliveInterval: time.Hour,
	}
}

func newTestNode(t *testing.T, opts NodeOptions) (*Node, *transport.Memory, *busRecorder) {
	t.Helper()
	bus := transport.NewMemory()
	rec := &busRecorder{}
	require.NoError(t, bus.Subscribe("tf", func(_ string, p []byte) {
		var m tf.Message
		require.NoError(t, json.Unmarshal(p, &m))
		rec.mu.Lock()
		rec.tf = append(rec.tf, m)
		rec.mu.Unlock()
	}))
	require.NoError(t, bus.Subscribe(markers.UpdateTopic("basic_controls"), func(_ string, p []byte) {
		var u markers.Update
		require.NoError(t, json.Unmarshal(p, &u))
		rec.mu.Lock()
		rec.updates = append(rec.updates, u)
		rec.mu.Unlock()
	}))

	n, err := NewNode(bus, opts, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, n.Start())
	return n, bus, rec
}

func TestNodeStartRegistersQuadcopter(t *testing.T) {
	n, bus, rec := newTestNode(t, testOptions())

	assert.Equal(t, 1, n.Server().Size())
	m, ok := n.Server().Get("quadcopter")
	require.True(t, ok)
	assert.Equal(t, "moving_frame", m.Header.FrameID)
	assert.Equal(t, geometry.Point{Y: -3}, m.Pose.Position)

	require.Len(t, m.Controls, 3)
	assert.Equal(t, geometry.Uniform(0.02), m.Controls[0].Markers[0].Scale)
	for _, c := range m.Controls[1:] {
		assert.InDelta(t, 1, c.Orientation.Norm(), 1e-12)
	}

	updates := rec.markerUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, "basic_controls", updates[0].ServerID)
	require.Len(t, updates[0].Markers, 1)

	var full markers.Init
	p, ok := bus.Retained(markers.FullTopic("basic_controls"))
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(p, &full))
	require.Len(t, full.Markers, 1)
	assert.Equal(t, "quadcopter", full.Markers[0].Name)
}

func TestNodeTicksFollowSineLaw(t *testing.T) {
	stamp := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	opts := testOptions()
	opts.Now = func() time.Time { return stamp }
	n, _, rec := newTestNode(t, opts)

	ctx := context.Background()
	for i := 0; i < 300; i++ {
		n.handle(ctx, Event{Kind: EventTick})
	}

	msgs := rec.transforms()
	require.Len(t, msgs, 300)
	assert.Equal(t, uint64(300), n.Oscillator().Counter())

	for c, m := range msgs {
		require.Len(t, m.Transforms, 1)
		ts := m.Transforms[0]
		assert.Equal(t, "map", ts.ChildFrameID)
		assert.Equal(t, "moving_frame", ts.Header.FrameID)
		assert.True(t, stamp.Equal(ts.Header.Stamp))
		assert.Equal(t, geometry.Identity, ts.Transform.Rotation)
		assert.Equal(t, 2.0*math.Sin(float64(c)/140.0), ts.Transform.Translation.Z, "tick %d", c)
	}

	assert.Equal(t, 0.0, msgs[0].Transforms[0].Transform.Translation.Z)
	assert.InDelta(t, 0.959, msgs[70].Transforms[0].Transform.Translation.Z, 1e-3)
	assert.InDelta(t, 1.683, msgs[140].Transforms[0].Transform.Translation.Z, 1e-3)
}

func TestNodeTickAdvancesOnPublishFailure(t *testing.T) {
	n, bus, _ := newTestNode(t, testOptions())
	bus.Close()

	n.handle(context.Background(), Event{Kind: EventTick})
	assert.Equal(t, uint64(1), n.Oscillator().Counter())
}

func TestNodeKeepAlive(t *testing.T) {
	n, _, rec := newTestNode(t, testOptions())
	n.handle(context.Background(), Event{Kind: EventKeepAlive})

	updates := rec.markerUpdates()
	require.Len(t, updates, 2)
	assert.Equal(t, markers.UpdateKeepAlive, updates[1].Type)
	assert.Equal(t, uint64(1), updates[1].SeqNum)
}

func TestNodeRunAppliesFeedback(t *testing.T) {
	n, bus, rec := newTestNode(t, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	moved := geometry.NewPose(geometry.Point{X: 1, Y: -3, Z: 0.5})
	require.NoError(t, transport.PublishJSON(bus, markers.FeedbackTopic("basic_controls"), false, markers.Feedback{
		ClientID:   "viewer-1",
		MarkerName: "quadcopter",
		EventType:  markers.EventPoseUpdate,
		Pose:       moved,
	}))

	assert.Eventually(t, func() bool {
		return len(rec.markerUpdates()) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	updates := rec.markerUpdates()
	require.Len(t, updates[1].Poses, 1)
	assert.Equal(t, "quadcopter", updates[1].Poses[0].Name)
	assert.Equal(t, moved, updates[1].Poses[0].Pose)

	m, ok := n.Server().Get("quadcopter")
	require.True(t, ok)
	assert.Equal(t, moved, m.Pose)
}

func TestNodeFeedbackNeverBlocksDelivery(t *testing.T) {
	n, bus, _ := newTestNode(t, testOptions())

	delivered := make(chan struct{})
	go func() {
		defer close(delivered)
		for i := 0; i < eventQueueSize+10; i++ {
			_ = transport.PublishJSON(bus, markers.FeedbackTopic("basic_controls"), false, markers.Feedback{
				ClientID:   "viewer-1",
				MarkerName: "quadcopter",
				EventType:  markers.EventMouseDown,
			})
		}
	}()

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("feedback delivery blocked before Run")
	}
	assert.Len(t, n.events, eventQueueSize)
}

func TestNodeRunTicks(t *testing.T) {
	opts := testOptions()
	opts.TimerInterval = time.Millisecond
	n, _, rec := newTestNode(t, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return len(rec.transforms()) >= 5
	}, 2*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	msgs := rec.transforms()
	for c, m := range msgs {
		assert.Equal(t, 2.0*math.Sin(float64(c)/140.0), m.Transforms[0].Transform.Translation.Z)
	}
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "tick", EventTick.String())
	assert.Equal(t, "keep_alive", EventKeepAlive.String())
	assert.Equal(t, "feedback", EventFeedback.String())
	assert.Equal(t, "EventKind(9)", EventKind(9).String())
}
