// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when read from the environment.
const EnvPrefix = "STATEVIZ"

// DefaultPath is the config file the binaries look for.
const DefaultPath = "stateviz_config.txt"

// Config holds all application configuration values.
type Config struct {
	LogLevel string

	// MQTT
	MQTTBroker          string
	MQTTClientIDNode    string
	MQTTClientIDViewer  string
	MQTTClientIDConsole string
	MQTTQoS             byte
	MQTTTimeout         time.Duration

	// Node
	NodeName        string
	TopicTF         string
	MarkerNamespace string
	FrameChild      string
	FrameParent     string
	MarkerScale     float64

	// Timing
	TimerInterval     time.Duration
	KeepAliveInterval time.Duration

	// Web Server
	WebServerPort int
	WebStaticDir  string
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

func defaultKeys() []string {
	v := viper.New()
	setDefaults(v)
	return v.AllKeys()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("MQTT_BROKER", "tcp://localhost:1883")
	v.SetDefault("MQTT_CLIENT_ID_NODE", "stateviz-node")
	v.SetDefault("MQTT_CLIENT_ID_VIEWER", "stateviz-viewer")
	v.SetDefault("MQTT_CLIENT_ID_CONSOLE", "stateviz-console")
	v.SetDefault("MQTT_QOS", 0)
	v.SetDefault("MQTT_TIMEOUT_MS", 5000)

	v.SetDefault("NODE_NAME", "basic_controls")
	v.SetDefault("TOPIC_TF", "tf")
	v.SetDefault("MARKER_NAMESPACE", "basic_controls")
	v.SetDefault("FRAME_CHILD", "map")
	v.SetDefault("FRAME_PARENT", "moving_frame")
	v.SetDefault("MARKER_SCALE", 1.0)

	v.SetDefault("TIMER_INTERVAL_MS", 10)
	v.SetDefault("KEEP_ALIVE_INTERVAL_MS", 500)

	v.SetDefault("WEB_SERVER_PORT", 8080)
	v.SetDefault("WEB_STATIC_DIR", "web")
}

// Load reads the KEY=VALUE configuration file at configPath on top of the
// defaults. A missing file is not an error. Every key may be overridden by
// STATEVIZ_<KEY> in the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	known := make(map[string]bool)
	for _, key := range defaultKeys() {
		known[strings.ToLower(key)] = true
	}
	for _, key := range v.AllKeys() {
		if !known[key] {
			return nil, fmt.Errorf("unknown config key: %q", strings.ToUpper(key))
		}
	}

	p := parser{v: v}
	qos := p.int("MQTT_QOS")
	cfg := &Config{
		LogLevel: v.GetString("LOG_LEVEL"),

		MQTTBroker:          v.GetString("MQTT_BROKER"),
		MQTTClientIDNode:    v.GetString("MQTT_CLIENT_ID_NODE"),
		MQTTClientIDViewer:  v.GetString("MQTT_CLIENT_ID_VIEWER"),
		MQTTClientIDConsole: v.GetString("MQTT_CLIENT_ID_CONSOLE"),
		MQTTTimeout:         p.millis("MQTT_TIMEOUT_MS"),

		NodeName:        v.GetString("NODE_NAME"),
		TopicTF:         v.GetString("TOPIC_TF"),
		MarkerNamespace: v.GetString("MARKER_NAMESPACE"),
		FrameChild:      v.GetString("FRAME_CHILD"),
		FrameParent:     v.GetString("FRAME_PARENT"),
		MarkerScale:     p.float("MARKER_SCALE"),

		TimerInterval:     p.millis("TIMER_INTERVAL_MS"),
		KeepAliveInterval: p.millis("KEEP_ALIVE_INTERVAL_MS"),

		WebServerPort: p.int("WEB_SERVER_PORT"),
		WebStaticDir:  v.GetString("WEB_STATIC_DIR"),
	}
	if p.err != nil {
		return nil, p.err
	}
	if qos < 0 || qos > 2 {
		return nil, fmt.Errorf("MQTT_QOS must be 0-2, got %d", qos)
	}
	cfg.MQTTQoS = byte(qos)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicTF == "" {
		return fmt.Errorf("TOPIC_TF is required")
	}
	if c.MarkerNamespace == "" {
		return fmt.Errorf("MARKER_NAMESPACE is required")
	}
	if c.FrameChild == "" || c.FrameParent == "" {
		return fmt.Errorf("FRAME_CHILD and FRAME_PARENT are required")
	}
	if c.MarkerScale <= 0 {
		return fmt.Errorf("MARKER_SCALE must be positive, got %g", c.MarkerScale)
	}
	if c.MQTTTimeout < 0 {
		return fmt.Errorf("MQTT_TIMEOUT_MS must not be negative")
	}
	if c.TimerInterval <= 0 {
		return fmt.Errorf("TIMER_INTERVAL_MS must be positive")
	}
	if c.KeepAliveInterval <= 0 {
		return fmt.Errorf("KEEP_ALIVE_INTERVAL_MS must be positive")
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	return nil
}

// parser reads typed values and keeps the first parse error.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) int(key string) int {
	raw := p.v.GetString(key)
	n, err := cast.ToIntE(strings.TrimSpace(raw))
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n
}

func (p *parser) float(key string) float64 {
	raw := p.v.GetString(key)
	f, err := cast.ToFloat64E(strings.TrimSpace(raw))
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return f
}

func (p *parser) millis(key string) time.Duration {
	return time.Duration(p.int(key)) * time.Millisecond
}

// InitGlobal loads the global configuration once.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
