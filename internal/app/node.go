// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/stateviz/internal/config"
	"github.com/relabs-tech/stateviz/internal/geometry"
	"github.com/relabs-tech/stateviz/internal/logging"
	"github.com/relabs-tech/stateviz/internal/markers"
	"github.com/relabs-tech/stateviz/internal/oscillator"
	"github.com/relabs-tech/stateviz/internal/telemetry"
	"github.com/relabs-tech/stateviz/internal/tf"
	"github.com/relabs-tech/stateviz/internal/transport"
)

// EventKind tags an Event.
type EventKind int

const (
	EventTick EventKind = iota
	EventKeepAlive
	EventFeedback
)

func (k EventKind) String() string {
	switch k {
	case EventTick:
		return "tick"
	case EventKeepAlive:
		return "keep_alive"
	case EventFeedback:
		return "feedback"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one unit of work for the node loop.
type Event struct {
	Kind     EventKind
	Feedback markers.Feedback
}

const eventQueueSize = 64

// NodeOptions configures a Node.
type NodeOptions struct {
	Name              string
	TopicTF           string
	MarkerNamespace   string
	Frames            oscillator.Frames
	MarkerScale       float64
	StartPosition     geometry.Point
	TimerInterval     time.Duration
	KeepAliveInterval time.Duration
	Now               func() time.Time
}

// NodeOptionsFromConfig maps the loaded configuration onto node options.
func NodeOptionsFromConfig(cfg *config.Config) NodeOptions {
	return NodeOptions{
		Name:              cfg.NodeName,
		TopicTF:           cfg.TopicTF,
		MarkerNamespace:   cfg.MarkerNamespace,
		Frames:            oscillator.Frames{Child: cfg.FrameChild, Parent: cfg.FrameParent},
		MarkerScale:       cfg.MarkerScale,
		StartPosition:     StartPosition,
		TimerInterval:     cfg.TimerInterval,
		KeepAliveInterval: cfg.KeepAliveInterval,
	}
}

// Node owns all state touched by the timer and feedback callbacks. Only the
// goroutine running Run mutates it.
type Node struct {
	opts    NodeOptions
	bus     transport.Bus
	osc     *oscillator.Oscillator
	br      *tf.Broadcaster
	server  *markers.Server
	metrics *telemetry.Instruments
	log     zerolog.Logger

	events chan Event
}

// NewNode wires the oscillator, broadcaster and marker server onto bus.
func NewNode(bus transport.Bus, opts NodeOptions, log zerolog.Logger) (*Node, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	metrics, err := telemetry.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	log = log.With().Str("node", opts.Name).Logger()
	return &Node{
		opts: opts,
		bus:  bus,
		osc:  oscillator.New(opts.Frames),
		br:   tf.NewBroadcaster(bus, opts.TopicTF),
		server: markers.NewServer(bus, markers.ServerOptions{
			Namespace: opts.MarkerNamespace,
			ServerID:  opts.Name,
			Now:       opts.Now,
		}, log),
		metrics: metrics,
		log:     logging.Component(log, "node"),
		events:  make(chan Event, eventQueueSize),
	}, nil
}

// Server exposes the node's interactive-marker server.
func (n *Node) Server() *markers.Server { return n.server }

// Oscillator exposes the node's frame oscillator.
func (n *Node) Oscillator() *oscillator.Oscillator { return n.osc }

// Start registers the quadcopter marker and subscribes to client feedback.
func (n *Node) Start() error {
	marker, err := MakeQuadcopterMarker(n.opts.Frames.Parent, n.opts.StartPosition, n.opts.MarkerScale)
	if err != nil {
		return fmt.Errorf("build quadcopter marker: %w", err)
	}
	n.server.Insert(marker, n.processFeedback)
	n.metrics.Applied(context.Background())
	if err := n.server.ApplyChanges(); err != nil {
		return fmt.Errorf("register quadcopter marker: %w", err)
	}
	n.log.Info().Str("marker", marker.Name).Str("frame", marker.Header.FrameID).Msg("marker registered")

	if err := n.bus.Subscribe(markers.FeedbackTopic(n.server.Namespace()), n.onFeedbackMessage); err != nil {
		return fmt.Errorf("subscribe feedback: %w", err)
	}
	return nil
}

func (n *Node) onFeedbackMessage(_ string, payload []byte) {
	var fb markers.Feedback
	if err := json.Unmarshal(payload, &fb); err != nil {
		n.log.Warn().Err(err).Msg("feedback unmarshal error")
		return
	}
	n.offer(Event{Kind: EventFeedback, Feedback: fb})
}

// offer never blocks, so bus callbacks keep flowing while the loop is busy
// or not yet running.
func (n *Node) offer(ev Event) {
	select {
	case n.events <- ev:
	default:
		lvl := zerolog.DebugLevel
		if ev.Kind == EventFeedback {
			lvl = zerolog.WarnLevel
		}
		n.log.WithLevel(lvl).Stringer("event", ev.Kind).Msg("event queue full, dropping")
	}
}

// Run services ticks, keep-alives and feedback until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	go n.pump(ctx)

	n.log.Info().
		Dur("timer", n.opts.TimerInterval).
		Dur("keep_alive", n.opts.KeepAliveInterval).
		Msg("spinning")

	for {
		select {
		case <-ctx.Done():
			n.log.Info().Uint64("ticks", n.osc.Counter()).Msg("shutting down")
			return nil
		case ev := <-n.events:
			n.handle(ctx, ev)
		}
	}
}

func (n *Node) pump(ctx context.Context) {
	timer := time.NewTicker(n.opts.TimerInterval)
	defer timer.Stop()
	keepAlive := time.NewTicker(n.opts.KeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			n.offer(Event{Kind: EventTick})
		case <-keepAlive.C:
			n.offer(Event{Kind: EventKeepAlive})
		}
	}
}

func (n *Node) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventTick:
		n.frameCallback(ctx)
	case EventKeepAlive:
		if err := n.server.KeepAlive(); err != nil {
			n.log.Warn().Err(err).Msg("keep-alive publish error")
		}
	case EventFeedback:
		n.metrics.Feedback(ctx, ev.Feedback.MarkerName)
		n.server.ProcessFeedback(ev.Feedback)
	}
}

// frameCallback broadcasts the transform for the current counter, then
// advances it.
func (n *Node) frameCallback(ctx context.Context) {
	now := n.opts.Now()
	n.log.Info().Msgf("%+3.3f", n.osc.Cycle())

	if err := n.br.Send(n.osc.Transform(now)); err != nil {
		n.metrics.BroadcastFailed(ctx)
		n.log.Error().Err(err).Msg("transform broadcast error")
	}
	n.osc.Advance()
	n.metrics.Tick(ctx)
}

// processFeedback is the quadcopter's feedback callback.
func (n *Node) processFeedback(markers.Feedback) {
	n.metrics.Applied(context.Background())
	if err := n.server.ApplyChanges(); err != nil {
		n.log.Error().Err(err).Msg("apply changes error")
	}
}

// RunNode connects to the broker, registers the marker and spins until
// SIGINT or SIGTERM.
func RunNode() error {
	cfg := config.Get()
	log := logging.New(cfg.LogLevel, os.Stderr)

	bus, err := transport.DialMQTT(transport.MQTTOptions{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientIDNode,
		QoS:      cfg.MQTTQoS,
		Timeout:  cfg.MQTTTimeout,
	}, logging.Component(log, "mqtt"))
	if err != nil {
		return err
	}
	defer bus.Close()

	node, err := NewNode(bus, NodeOptionsFromConfig(cfg), log)
	if err != nil {
		return err
	}
	if err := node.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return node.Run(ctx)
}
