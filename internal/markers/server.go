// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package markers implements an interactive-marker server: it keeps a set of
// named markers, publishes batched changes to clients and routes client
// feedback to per-marker callbacks.
package markers

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/stateviz/internal/geometry"
	"github.com/relabs-tech/stateviz/internal/tf"
	"github.com/relabs-tech/stateviz/internal/transport"
)

// ErrUnknownMarker is returned when an operation names a marker the server
// neither holds nor has pending.
var ErrUnknownMarker = errors.New("markers: unknown marker")

// DefaultCallback registers a callback for every event type that has no
// specific one.
const DefaultCallback EventType = -1

// DefaultFeedbackWindow is how long a marker stays locked to the last client
// that sent feedback for it.
const DefaultFeedbackWindow = time.Second

// FeedbackFunc handles one feedback event.
type FeedbackFunc func(Feedback)

// UpdateTopic is where incremental updates are published.
func UpdateTopic(ns string) string { return ns + "/update" }

// FullTopic is where the retained full state is published.
func FullTopic(ns string) string { return ns + "/update_full" }

// FeedbackTopic is where clients send feedback.
func FeedbackTopic(ns string) string { return ns + "/feedback" }

type updateKind int

const (
	kindFull updateKind = iota
	kindPose
	kindErase
)

type pendingUpdate struct {
	kind      updateKind
	marker    InteractiveMarker
	defaultCB FeedbackFunc
	callbacks map[EventType]FeedbackFunc
}

type markerContext struct {
	marker       InteractiveMarker
	lastFeedback time.Time
	lastClientID string
	defaultCB    FeedbackFunc
	callbacks    map[EventType]FeedbackFunc
}

// ServerOptions configures NewServer.
type ServerOptions struct {
	Namespace      string
	ServerID       string        // random when empty
	FeedbackWindow time.Duration // DefaultFeedbackWindow when zero
	Now            func() time.Time
}

// Server holds the committed and pending marker state.
type Server struct {
	mu       sync.Mutex
	ns       string
	serverID string
	window   time.Duration
	now      func() time.Time
	pub      transport.Publisher
	log      zerolog.Logger

	contexts map[string]*markerContext
	pending  map[string]*pendingUpdate
	seq      uint64
}

// NewServer returns a server that publishes on pub under opts.Namespace.
func NewServer(pub transport.Publisher, opts ServerOptions, log zerolog.Logger) *Server {
	if opts.ServerID == "" {
		opts.ServerID = uuid.NewString()
	}
	if opts.FeedbackWindow == 0 {
		opts.FeedbackWindow = DefaultFeedbackWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{
		ns:       opts.Namespace,
		serverID: opts.ServerID,
		window:   opts.FeedbackWindow,
		now:      opts.Now,
		pub:      pub,
		log:      log.With().Str("component", "marker_server").Str("ns", opts.Namespace).Logger(),
		contexts: make(map[string]*markerContext),
		pending:  make(map[string]*pendingUpdate),
	}
}

// Namespace returns the topic namespace.
func (s *Server) Namespace() string { return s.ns }

// ServerID identifies this server in published messages.
func (s *Server) ServerID() string { return s.serverID }

// SeqNum is the sequence number of the last published update.
func (s *Server) SeqNum() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Insert stages marker as a full update, replacing anything pending for the
// same name. A non-nil cb becomes the marker's default feedback callback.
func (s *Server) Insert(marker InteractiveMarker, cb FeedbackFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.pending[marker.Name]
	if !ok {
		u = &pendingUpdate{}
		s.pending[marker.Name] = u
	}
	u.kind = kindFull
	u.marker = marker.Clone()
	if cb != nil {
		s.setCallbackLocked(marker.Name, cb, DefaultCallback)
	}
}

// SetPose stages a pose change. An empty header frame keeps the marker's
// current header.
func (s *Server) SetPose(name string, pose geometry.Pose, header tf.Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := s.contexts[name]
	u := s.pending[name]
	if ctx == nil && u == nil {
		return fmt.Errorf("set pose %q: %w", name, ErrUnknownMarker)
	}

	if u != nil && u.kind == kindFull {
		if header.FrameID == "" {
			header = u.marker.Header
		}
		u.marker.Pose = pose
		u.marker.Header = header
		return nil
	}

	if header.FrameID == "" {
		if ctx == nil {
			return fmt.Errorf("set pose %q: %w", name, ErrUnknownMarker)
		}
		header = ctx.marker.Header
	}
	s.stagePoseLocked(u, name, pose, header)
	return nil
}

func (s *Server) stagePoseLocked(u *pendingUpdate, name string, pose geometry.Pose, header tf.Header) {
	if u == nil {
		u = &pendingUpdate{kind: kindPose}
		s.pending[name] = u
	} else if u.kind != kindFull {
		u.kind = kindPose
	}
	u.marker.Pose = pose
	u.marker.Header = header
}

// Erase stages removal of a marker.
func (s *Server) Erase(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eraseLocked(name)
}

func (s *Server) eraseLocked(name string) error {
	if u, ok := s.pending[name]; ok {
		u.kind = kindErase
		return nil
	}
	if _, ok := s.contexts[name]; ok {
		s.pending[name] = &pendingUpdate{kind: kindErase}
		return nil
	}
	return fmt.Errorf("erase %q: %w", name, ErrUnknownMarker)
}

// Clear stages removal of every committed marker and drops pending changes.
func (s *Server) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[string]*pendingUpdate)
	for name := range s.contexts {
		_ = s.eraseLocked(name)
	}
}

// SetCallback registers cb for one event type, or for DefaultCallback. A nil
// cb removes the registration.
func (s *Server) SetCallback(name string, cb FeedbackFunc, event EventType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.setCallbackLocked(name, cb, event) {
		return fmt.Errorf("set callback %q: %w", name, ErrUnknownMarker)
	}
	return nil
}

func (s *Server) setCallbackLocked(name string, cb FeedbackFunc, event EventType) bool {
	ctx := s.contexts[name]
	u := s.pending[name]
	if ctx == nil && u == nil {
		return false
	}
	if event == DefaultCallback {
		if ctx != nil {
			ctx.defaultCB = cb
		}
		if u != nil {
			u.defaultCB = cb
		}
		return true
	}
	if ctx != nil {
		ctx.callbacks = setOrDelete(ctx.callbacks, event, cb)
	}
	if u != nil {
		u.callbacks = setOrDelete(u.callbacks, event, cb)
	}
	return true
}

func setOrDelete(m map[EventType]FeedbackFunc, event EventType, cb FeedbackFunc) map[EventType]FeedbackFunc {
	if cb == nil {
		delete(m, event)
		return m
	}
	if m == nil {
		m = make(map[EventType]FeedbackFunc)
	}
	m[event] = cb
	return m
}

// Get returns the marker as it will look after the next ApplyChanges.
func (s *Server) Get(name string) (InteractiveMarker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.pending[name]
	ctx := s.contexts[name]
	if u != nil {
		switch u.kind {
		case kindFull:
			return u.marker.Clone(), true
		case kindErase:
			return InteractiveMarker{}, false
		case kindPose:
			if ctx == nil {
				return InteractiveMarker{}, false
			}
			m := ctx.marker.Clone()
			m.Pose = u.marker.Pose
			m.Header = u.marker.Header
			return m, true
		}
	}
	if ctx == nil {
		return InteractiveMarker{}, false
	}
	return ctx.marker.Clone(), true
}

// Size is the number of committed markers.
func (s *Server) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts)
}

// Empty reports whether no markers are committed.
func (s *Server) Empty() bool {
	return s.Size() == 0
}

// ApplyChanges commits pending changes and publishes them. It does nothing
// when nothing is pending.
func (s *Server) ApplyChanges() error {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}

	update := Update{ServerID: s.serverID, Type: UpdateChanges}
	for _, name := range sortedKeys(s.pending) {
		u := s.pending[name]
		switch u.kind {
		case kindFull:
			ctx, ok := s.contexts[name]
			if !ok {
				ctx = &markerContext{}
				s.contexts[name] = ctx
			}
			ctx.marker = u.marker
			ctx.defaultCB = u.defaultCB
			ctx.callbacks = u.callbacks
			update.Markers = append(update.Markers, ctx.marker.Clone())
		case kindPose:
			ctx, ok := s.contexts[name]
			if !ok {
				s.log.Error().Str("marker", name).Msg("pending pose update for unknown marker")
				continue
			}
			ctx.marker.Pose = u.marker.Pose
			ctx.marker.Header = u.marker.Header
			update.Poses = append(update.Poses, MarkerPose{
				Header: ctx.marker.Header,
				Pose:   ctx.marker.Pose,
				Name:   name,
			})
		case kindErase:
			if _, ok := s.contexts[name]; ok {
				delete(s.contexts, name)
				update.Erases = append(update.Erases, name)
			}
		}
	}
	s.pending = make(map[string]*pendingUpdate)
	s.seq++
	update.SeqNum = s.seq
	full := s.fullLocked()
	s.mu.Unlock()

	if err := transport.PublishJSON(s.pub, UpdateTopic(s.ns), false, update); err != nil {
		return err
	}
	if err := transport.PublishJSON(s.pub, FullTopic(s.ns), true, full); err != nil {
		return err
	}
	s.log.Debug().Uint64("seq", update.SeqNum).
		Int("markers", len(update.Markers)).
		Int("poses", len(update.Poses)).
		Int("erases", len(update.Erases)).
		Msg("applied changes")
	return nil
}

func (s *Server) fullLocked() Init {
	full := Init{ServerID: s.serverID, SeqNum: s.seq, Markers: []InteractiveMarker{}}
	for _, name := range sortedKeys(s.contexts) {
		full.Markers = append(full.Markers, s.contexts[name].marker.Clone())
	}
	return full
}

// KeepAlive tells clients the server is still up.
func (s *Server) KeepAlive() error {
	s.mu.Lock()
	update := Update{ServerID: s.serverID, SeqNum: s.seq, Type: UpdateKeepAlive}
	s.mu.Unlock()
	return transport.PublishJSON(s.pub, UpdateTopic(s.ns), false, update)
}

// ProcessFeedback applies client feedback and runs the matching callback.
// Feedback for unknown markers, or from a second client while the marker is
// held by another, is dropped.
func (s *Server) ProcessFeedback(fb Feedback) {
	s.mu.Lock()
	ctx, ok := s.contexts[fb.MarkerName]
	if !ok {
		s.mu.Unlock()
		s.log.Debug().Str("marker", fb.MarkerName).Msg("feedback for unknown marker")
		return
	}

	now := s.now()
	if ctx.lastClientID != fb.ClientID && !ctx.lastFeedback.IsZero() && now.Sub(ctx.lastFeedback) < s.window {
		s.mu.Unlock()
		s.log.Debug().Str("marker", fb.MarkerName).
			Str("client_id", fb.ClientID).
			Str("holder", ctx.lastClientID).
			Msg("rejecting feedback, marker held by another client")
		return
	}
	ctx.lastFeedback = now
	ctx.lastClientID = fb.ClientID

	if fb.EventType == EventPoseUpdate {
		header := fb.Header
		if ctx.marker.Header.Stamp.IsZero() {
			header = ctx.marker.Header
		}
		s.stagePoseLocked(s.pending[fb.MarkerName], fb.MarkerName, fb.Pose, header)
	}

	cb := ctx.defaultCB
	if specific, ok := ctx.callbacks[fb.EventType]; ok {
		cb = specific
	}
	s.mu.Unlock()

	if cb != nil {
		cb(fb)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
