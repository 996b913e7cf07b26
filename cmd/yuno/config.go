package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/Comcast/gobj/sio"
)

// Config is the TOML configuration of the daemon.
//
//	name = "demo"
//	log_level = "debug"
//	tree = "tree.yaml"
//	gclasses = ["door.yaml"]
//	ops = ":8090"
//
//	[storage]
//	kind = "bolt"
//	path = "demo.db"
//
//	[couplings.console]
//	kind = "stdio"
//
//	[couplings.broker]
//	kind = "mqtt"
//	[couplings.broker.mqtt]
//	broker = "tcp://localhost"
//	topics = "in/#:1"
type Config struct {
	Name     string `toml:"name"`
	LogLevel string `toml:"log_level"`
	LogJSON  bool   `toml:"log_json"`

	// Tree is a YAML or JSON file given to Yuno.CreateTree.
	Tree string `toml:"tree"`

	// GClasses are YAML or JSON GClass specs registered before
	// the tree is built, in order.
	GClasses []string `toml:"gclasses"`

	// Ops is the listen address of the operations endpoint.  Empty
	// disables it.
	Ops string `toml:"ops"`

	// MaxOpsConns limits concurrent operations connections.
	MaxOpsConns int `toml:"max_ops_conns"`

	// MaxTimers is the capacity of the timers.
	MaxTimers int `toml:"max_timers"`

	Storage StorageConfig `toml:"storage"`

	Couplings map[string]*CouplingsConfig `toml:"couplings"`
}

type StorageConfig struct {
	// Kind is "bolt", "json", "mem" or "none".
	Kind   string `toml:"kind"`
	Path   string `toml:"path"`
	Bucket string `toml:"bucket"`
}

type CouplingsConfig struct {
	// Kind is "stdio", "mqtt" or "ws".
	Kind string `toml:"kind"`

	// URL is the WebSocket server for "ws".
	URL string `toml:"url"`

	// Envelope sends {"topic","payload"} frames for "ws".
	Envelope bool `toml:"envelope"`

	ShellExpand bool `toml:"shell_expand"`

	MQTT *sio.MQTTConfig `toml:"mqtt"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:        "yuno",
		LogLevel:    "info",
		MaxOpsConns: 16,
		MaxTimers:   1024,
		Storage: StorageConfig{
			Kind: "none",
		},
		Couplings: map[string]*CouplingsConfig{},
	}
}

// LoadConfig reads a TOML file over the defaults.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()
	if filename == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(filename, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); 0 < len(undecoded) {
		return nil, fmt.Errorf("unknown configuration keys in %s: %v", filename, undecoded)
	}
	return cfg, nil
}

// NewCouplings makes the couplings a configuration describes.
func (c *CouplingsConfig) NewCouplings() (sio.Couplings, error) {
	switch c.Kind {
	case "stdio":
		return sio.NewStdio(c.ShellExpand), nil
	case "mqtt":
		cfg := sio.DefaultMQTTConfig()
		if c.MQTT != nil {
			cfg = mqttDefaults(*c.MQTT, cfg)
		}
		return sio.NewMQTTCouplings(cfg)
	case "ws":
		if c.URL == "" {
			return nil, fmt.Errorf("ws couplings without url")
		}
		ws := sio.NewWebSocketCouplings(c.URL)
		ws.Envelope = c.Envelope
		return ws, nil
	default:
		return nil, fmt.Errorf("unknown couplings kind %q", c.Kind)
	}
}

// mqttDefaults fills the zero fields of cfg that have non-zero
// defaults.
func mqttDefaults(cfg, def sio.MQTTConfig) sio.MQTTConfig {
	if cfg.Broker == "" {
		cfg.Broker = def.Broker
	}
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = def.KeepAlive
	}
	if cfg.Quiesce == 0 {
		cfg.Quiesce = def.Quiesce
	}
	if cfg.DefaultOutboundTopic == "" {
		cfg.DefaultOutboundTopic = def.DefaultOutboundTopic
	}
	if cfg.InTimeout == 0 {
		cfg.InTimeout = def.InTimeout
	}
	return cfg
}
