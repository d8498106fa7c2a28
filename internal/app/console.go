package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/stateviz/internal/config"
	"github.com/relabs-tech/stateviz/internal/logging"
	"github.com/relabs-tech/stateviz/internal/markers"
	"github.com/relabs-tech/stateviz/internal/tf"
	"github.com/relabs-tech/stateviz/internal/transport"
)

func formatTF(m tf.Message) []string {
	lines := make([]string, 0, len(m.Transforms))
	for _, ts := range m.Transforms {
		t := ts.Transform.Translation
		r := ts.Transform.Rotation
		lines = append(lines, fmt.Sprintf(
			"[TF  ] %s -> %s  t=(%+.3f %+.3f %+.3f)  q=(%.3f %.3f %.3f %.3f)",
			ts.ChildFrameID, ts.Header.FrameID, t.X, t.Y, t.Z, r.X, r.Y, r.Z, r.W,
		))
	}
	return lines
}

func formatUpdate(u markers.Update) string {
	if u.Type == markers.UpdateKeepAlive {
		return fmt.Sprintf("[MRK ] %s seq=%d keep-alive", u.ServerID, u.SeqNum)
	}
	return fmt.Sprintf("[MRK ] %s seq=%d markers=%d poses=%d erases=%d",
		u.ServerID, u.SeqNum, len(u.Markers), len(u.Poses), len(u.Erases))
}

// subscribeConsole prints every transform and marker update on sub to w.
func subscribeConsole(sub transport.Subscriber, tfTopic, ns string, w io.Writer, log zerolog.Logger) error {
	if err := sub.Subscribe(tfTopic, func(_ string, p []byte) {
		var m tf.Message
		if err := json.Unmarshal(p, &m); err != nil {
			log.Warn().Err(err).Msg("tf unmarshal error")
			return
		}
		for _, line := range formatTF(m) {
			fmt.Fprintln(w, line)
		}
	}); err != nil {
		return err
	}

	return sub.Subscribe(markers.UpdateTopic(ns), func(_ string, p []byte) {
		var u markers.Update
		if err := json.Unmarshal(p, &u); err != nil {
			log.Warn().Err(err).Msg("marker update unmarshal error")
			return
		}
		fmt.Fprintln(w, formatUpdate(u))
	})
}

// RunConsole prints bus traffic until SIGINT or SIGTERM.
func RunConsole() error {
	cfg := config.Get()
	log := logging.Component(logging.New(cfg.LogLevel, os.Stderr), "console")

	bus, err := transport.DialMQTT(transport.MQTTOptions{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientIDConsole,
		QoS:      cfg.MQTTQoS,
		Timeout:  cfg.MQTTTimeout,
	}, log)
	if err != nil {
		return err
	}

	if err := subscribeConsole(bus, cfg.TopicTF, cfg.MarkerNamespace, os.Stdout, log); err != nil {
		bus.Close()
		return err
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	bus.Close()
	return nil
}
