package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the pcremote daemon.
//
// Keep defaults and validation centralized so the rest of the code can assume a
// well-formed config. The bind table lives in the same file; it is edited through
// the IPC bind requests and persisted back with SaveConfigFile.
type Config struct {
	// Remote receiver link
	Receiver ReceiverConfig `yaml:"receiver"`

	// Code to action table
	Binds []Bind `yaml:"binds"`

	// External audio tools
	Media MediaConfig `yaml:"media"`

	// Keyboard/mouse automation backend
	Automation AutomationConfig `yaml:"automation"`

	// HTTP server for the event feed and status
	Server HTTPConfig `yaml:"server"`

	// IPC configuration (control client)
	IPC IPCConfig `yaml:"ipc"`

	// MQTT event publishing
	MQTT MQTTConfig `yaml:"mqtt"`

	// Desktop notifications
	Notifications NotificationsConfig `yaml:"notifications"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// PIDFile guards against a second daemon; empty disables it.
	PIDFile string `yaml:"pid_file"`
}

type ReceiverConfig struct {
	Kind string `yaml:"kind"` // "serial" or "evdev"

	// Serial: the port is formatted into PortTemplate ("COM%d" / "/dev/ttyUSB%d")
	// unless Device names the port directly.
	Port          int    `yaml:"port"`
	PortTemplate  string `yaml:"port_template,omitempty"`
	Device        string `yaml:"device,omitempty"`
	BaudRate      int    `yaml:"baud_rate"`
	ReadTimeoutMS int    `yaml:"read_timeout_ms"`
}

type MediaConfig struct {
	NircmdPath          string `yaml:"nircmd_path"`
	SoundVolumeViewPath string `yaml:"soundvolumeview_path"`
	SvclPath            string `yaml:"svcl_path"`

	// DeviceFilter hides the sub-channels of the mixer named by FilterPattern.
	DeviceFilter  bool   `yaml:"device_filter"`
	FilterPattern string `yaml:"filter_pattern"`
}

type AutomationConfig struct {
	Backend string `yaml:"backend"` // "auto", "xdotool" or "nircmd"
}

type HTTPConfig struct {
	Listen string `yaml:"listen"` // empty disables the server
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	QoS         int    `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
}

type NotificationsConfig struct {
	Desktop bool `yaml:"desktop"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir,omitempty"`
	Keep  int    `yaml:"keep"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Receiver: ReceiverConfig{
			Kind:          ReceiverSerial,
			Port:          defaultComPort,
			BaudRate:      defaultBaudRate,
			ReadTimeoutMS: defaultReadTimeoutMS,
		},
		Media: MediaConfig{
			NircmdPath:          defaultNircmdPath,
			SoundVolumeViewPath: defaultSoundVolumeViewPath,
			SvclPath:            defaultSvclPath,
			DeviceFilter:        false,
			FilterPattern:       defaultDeviceFilterPattern,
		},
		Automation: AutomationConfig{
			Backend: AutomationAuto,
		},
		Server: HTTPConfig{
			Listen: "127.0.0.1:3001",
		},
		IPC: IPCConfig{
			SocketPath: filepath.Join(os.TempDir(), "pcremote.sock"),
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Broker:      "tcp://127.0.0.1:1883",
			ClientID:    "pcremote",
			TopicPrefix: "pcremote",
		},
		Logging: LoggingConfig{
			Level: "info",
			Keep:  defaultLogKeep,
		},
		PIDFile: filepath.Join(os.TempDir(), "pcremote.pid"),
	}
}

// LoadConfigFile reads and parses a YAML config file.
//
// Notes:
//   - Unknown fields are rejected (helps catch typos) via KnownFields(true).
//   - The result is not validated; call Validate after applying overrides.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Ensure there's no trailing garbage (only whitespace/comments are allowed after the document).
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// SaveConfigFile writes cfg to path through a temp file and a rename, so a reader
// never sees a half-written file.
func SaveConfigFile(path string, cfg Config) error {
	path = ExpandPath(path)
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config yaml: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".pcremote-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// ensureDefaultBind gives an empty bind table the placeholder bind.
func (c *Config) ensureDefaultBind() bool {
	if len(c.Binds) > 0 {
		return false
	}
	c.Binds = []Bind{DefaultBind()}
	return true
}

// FlagOverrides applies command-line overrides on top of a loaded config.
//
// Flags should pass pointers; each override is only applied if the pointer is non-nil.
type FlagOverrides struct {
	ReceiverKind   *string
	ComPort        *int
	BaudRate       *int
	ReceiverDevice *string

	AutomationBackend *string

	HTTPListen    *string
	IPCSocketPath *string

	LogLevel *string
	LogDir   *string
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is ignored.
// If the pointer is non-nil, the value is applied (even if it is a "zero value").
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.ReceiverKind != nil {
		cfg.Receiver.Kind = *o.ReceiverKind
	}
	if o.ComPort != nil {
		cfg.Receiver.Port = *o.ComPort
	}
	if o.BaudRate != nil {
		cfg.Receiver.BaudRate = *o.BaudRate
	}
	if o.ReceiverDevice != nil {
		cfg.Receiver.Device = *o.ReceiverDevice
	}
	if o.AutomationBackend != nil {
		cfg.Automation.Backend = *o.AutomationBackend
	}
	if o.HTTPListen != nil {
		cfg.Server.Listen = *o.HTTPListen
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogDir != nil {
		cfg.Logging.Dir = *o.LogDir
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Receiver
	switch c.Receiver.Kind {
	case ReceiverSerial:
		if c.Receiver.Port < 0 || c.Receiver.Port > 255 {
			return errors.New("receiver.port must be between 0 and 255")
		}
		if c.Receiver.BaudRate <= 0 {
			return errors.New("receiver.baud_rate must be > 0")
		}
	case ReceiverEvdev:
		if c.Receiver.Device == "" {
			return errors.New("receiver.device must not be empty for the evdev receiver")
		}
	default:
		return fmt.Errorf("receiver.kind must be %q or %q", ReceiverSerial, ReceiverEvdev)
	}
	if c.Receiver.ReadTimeoutMS <= 0 {
		return errors.New("receiver.read_timeout_ms must be > 0")
	}

	// Binds
	seen := make(map[string]struct{}, len(c.Binds))
	for i, b := range c.Binds {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("binds[%d]: %w", i, err)
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("binds[%d]: duplicate id %q", i, b.ID)
		}
		seen[b.ID] = struct{}{}
	}

	// Media
	if c.Media.SoundVolumeViewPath == "" {
		return errors.New("media.soundvolumeview_path must not be empty")
	}
	if c.Media.SvclPath == "" {
		return errors.New("media.svcl_path must not be empty")
	}
	if c.Media.NircmdPath == "" {
		return errors.New("media.nircmd_path must not be empty")
	}
	if c.Media.DeviceFilter && c.Media.FilterPattern == "" {
		return errors.New("media.device_filter is true but media.filter_pattern is empty")
	}

	// Automation
	switch c.Automation.Backend {
	case "", AutomationAuto, AutomationXdotool, AutomationNircmd:
	default:
		return fmt.Errorf("automation.backend must be one of %q, %q, %q", AutomationAuto, AutomationXdotool, AutomationNircmd)
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// MQTT
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return errors.New("mqtt.enabled is true but mqtt.broker is empty")
		}
		if c.MQTT.TopicPrefix == "" {
			return errors.New("mqtt.enabled is true but mqtt.topic_prefix is empty")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return errors.New("mqtt.qos must be 0, 1 or 2")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Keep < 0 {
		return errors.New("logging.keep must be >= 0")
	}

	return nil
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
