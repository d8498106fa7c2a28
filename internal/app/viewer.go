// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/stateviz/internal/config"
	"github.com/relabs-tech/stateviz/internal/logging"
	"github.com/relabs-tech/stateviz/internal/markers"
	"github.com/relabs-tech/stateviz/internal/transport"
)

const (
	clientSendBuffer = 256
	maxFeedbackSize  = 64 << 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// ViewerMessage is what browser clients receive over the WebSocket.
type ViewerMessage struct {
	Type string          `json:"type"` // tf, update, full
	Data json.RawMessage `json:"data"`
}

type viewerClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Viewer bridges the bus to browser clients: it caches the latest transform
// and marker state, streams everything to WebSocket clients, and forwards
// their feedback to the marker server.
type Viewer struct {
	pub transport.Publisher
	ns  string
	log zerolog.Logger

	mu       sync.RWMutex
	lastTF   json.RawMessage
	lastFull json.RawMessage
	clients  map[*viewerClient]struct{}
}

// NewViewer returns a viewer that publishes feedback for namespace ns on pub.
func NewViewer(pub transport.Publisher, ns string, log zerolog.Logger) *Viewer {
	return &Viewer{
		pub:     pub,
		ns:      ns,
		log:     logging.Component(log, "viewer"),
		clients: make(map[*viewerClient]struct{}),
	}
}

// Subscribe attaches the viewer to the transform and marker topics.
func (v *Viewer) Subscribe(sub transport.Subscriber, tfTopic string) error {
	if err := sub.Subscribe(tfTopic, func(_ string, p []byte) { v.store("tf", p) }); err != nil {
		return err
	}
	if err := sub.Subscribe(markers.UpdateTopic(v.ns), func(_ string, p []byte) { v.store("update", p) }); err != nil {
		return err
	}
	return sub.Subscribe(markers.FullTopic(v.ns), func(_ string, p []byte) { v.store("full", p) })
}

func (v *Viewer) store(kind string, payload []byte) {
	if !json.Valid(payload) {
		v.log.Warn().Str("type", kind).Msg("dropping invalid JSON payload")
		return
	}
	data := json.RawMessage(append([]byte(nil), payload...))

	v.mu.Lock()
	switch kind {
	case "tf":
		v.lastTF = data
	case "full":
		v.lastFull = data
	}
	v.mu.Unlock()

	v.broadcast(ViewerMessage{Type: kind, Data: data})
}

func (v *Viewer) broadcast(msg ViewerMessage) {
	out, err := json.Marshal(msg)
	if err != nil {
		v.log.Error().Err(err).Msg("viewer message marshal error")
		return
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	for c := range v.clients {
		select {
		case c.send <- out:
		default:
			v.log.Warn().Str("client_id", c.id).Msg("client too slow, dropping message")
		}
	}
}

// Handler serves the JSON API, the WebSocket and static files.
func (v *Viewer) Handler(staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/transform", v.latest(func() json.RawMessage { return v.lastTF }))
	mux.HandleFunc("/api/markers", v.latest(func() json.RawMessage { return v.lastFull }))
	mux.HandleFunc("/ws", v.serveWS)
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

func (v *Viewer) latest(get func() json.RawMessage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v.mu.RLock()
		data := get()
		v.mu.RUnlock()

		if data == nil {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(data); err != nil {
			v.log.Warn().Err(err).Msg("response write error")
		}
	}
}

func (v *Viewer) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		v.log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}
	c := &viewerClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	v.mu.Lock()
	for _, snap := range []ViewerMessage{{Type: "full", Data: v.lastFull}, {Type: "tf", Data: v.lastTF}} {
		if snap.Data == nil {
			continue
		}
		if out, err := json.Marshal(snap); err == nil {
			c.send <- out
		}
	}
	v.clients[c] = struct{}{}
	v.mu.Unlock()
	v.log.Info().Str("client_id", c.id).Str("remote", r.RemoteAddr).Msg("client connected")

	go v.writePump(c)
	v.readPump(c)

	v.mu.Lock()
	delete(v.clients, c)
	close(c.send)
	v.mu.Unlock()
	v.log.Info().Str("client_id", c.id).Msg("client disconnected")
}

func (v *Viewer) writePump(c *viewerClient) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			v.log.Debug().Err(err).Str("client_id", c.id).Msg("websocket write error")
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (v *Viewer) readPump(c *viewerClient) {
	c.conn.SetReadLimit(maxFeedbackSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				v.log.Warn().Err(err).Str("client_id", c.id).Msg("websocket read error")
			}
			return
		}
		var fb markers.Feedback
		if err := json.Unmarshal(data, &fb); err != nil {
			v.log.Warn().Err(err).Str("client_id", c.id).Msg("feedback unmarshal error")
			continue
		}
		fb.ClientID = c.id
		if fb.Header.Stamp.IsZero() {
			fb.Header.Stamp = time.Now()
		}
		if err := transport.PublishJSON(v.pub, markers.FeedbackTopic(v.ns), false, fb); err != nil {
			v.log.Error().Err(err).Msg("feedback publish error")
		}
	}
}

// RunViewer subscribes to the node's topics and serves the viewer.
func RunViewer() error {
	cfg := config.Get()
	log := logging.New(cfg.LogLevel, os.Stderr)

	bus, err := transport.DialMQTT(transport.MQTTOptions{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientIDViewer,
		QoS:      cfg.MQTTQoS,
		Timeout:  cfg.MQTTTimeout,
	}, logging.Component(log, "mqtt"))
	if err != nil {
		return err
	}
	defer bus.Close()

	viewer := NewViewer(bus, cfg.MarkerNamespace, log)
	if err := viewer.Subscribe(bus, cfg.TopicTF); err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Info().Str("addr", addr).Msg("web server listening")
	return http.ListenAndServe(addr, viewer.Handler(cfg.WebStaticDir))
}
