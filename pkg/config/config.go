// Package config loads and validates the TOML configuration: link
// parameters for the session engine plus table overrides for opcodes,
// the sound bank and extra sensor layouts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"morse/pkg/engine"
	"morse/pkg/protocol"
	"morse/pkg/transport"
)

const DefaultConfigPath = "morse.toml"

type Config struct {
	Link       LinkConfig    `toml:"link"`
	Monitor    MonitorConfig `toml:"monitor"`
	Commands   []CommandDef  `toml:"commands,omitempty"`
	Sounds     []SoundDef    `toml:"sounds,omitempty"`
	Sensors    []SensorDef   `toml:"sensors,omitempty"`
	configPath string        `toml:"-"`
}

type LinkConfig struct {
	Transport       string `toml:"transport"`
	Address         string `toml:"address"`
	Baud            int    `toml:"baud"`
	AckTimeout      string `toml:"ack_timeout"`
	ReadTimeout     string `toml:"read_timeout"`
	Retries         int    `toml:"retries"`
	BroadcastBuffer int    `toml:"broadcast_buffer"`
	ClientBuffer    int    `toml:"client_buffer"`
}

type MonitorConfig struct {
	WSAddr  string `toml:"ws_addr"`
	LogPath string `toml:"log_path,omitempty"`
}

// CommandDef overrides one opcode table entry, for firmware revisions
// whose captures disagree with the built-in defaults.
type CommandDef struct {
	Name   string `toml:"name"`
	Opcode uint16 `toml:"opcode"`
	Acked  bool   `toml:"acked"`
}

// SoundDef adds a clip identifier to the sound bank.
type SoundDef struct {
	Name string `toml:"name"`
	Clip string `toml:"clip"`
}

// SensorDef declares a sensor report layout beyond the compiled-in
// set. Decoded values surface as a map keyed by field name.
type SensorDef struct {
	Opcode   uint16     `toml:"opcode"`
	Kind     string     `toml:"kind"`
	ByteSize int        `toml:"byte_size"`
	Fields   []FieldDef `toml:"fields"`
}

type FieldDef struct {
	Name   string `toml:"name"`
	Type   string `toml:"type"`
	Offset int    `toml:"offset"`
	Size   int    `toml:"size,omitempty"`
}

func Default() Config {
	return Config{
		Link: LinkConfig{
			Transport:       "serial",
			Address:         "/dev/rfcomm0",
			Baud:            115200,
			AckTimeout:      "250ms",
			ReadTimeout:     "100ms",
			Retries:         2,
			BroadcastBuffer: 64,
			ClientBuffer:    16,
		},
		Monitor: MonitorConfig{
			WSAddr: "127.0.0.1:8765",
		},
	}
}

func Load(path string) (Config, error) {
	cfg, exists, err := LoadOrDefault(path)
	if err != nil {
		return Config{}, err
	}
	if !exists {
		return Config{}, os.ErrNotExist
	}
	return cfg, nil
}

// LoadOrDefault reads the file if present and falls back to defaults
// when it is not. The boolean reports whether the file existed.
func LoadOrDefault(path string) (Config, bool, error) {
	cfg := Default()
	cfg.configPath = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, false, nil
		}
		return Config{}, false, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, true, fmt.Errorf("parse config: %w", err)
	}
	cfg.configPath = path

	if err := cfg.Validate(); err != nil {
		return Config{}, true, err
	}
	return cfg, true, nil
}

func (cfg *Config) Save(path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (cfg *Config) ConfigPath() string {
	return cfg.configPath
}

func (cfg *Config) Validate() error {
	switch cfg.Link.Transport {
	case "serial", "tcp":
	default:
		return fmt.Errorf("link.transport must be serial or tcp, got %q", cfg.Link.Transport)
	}
	if cfg.Link.Address == "" {
		return fmt.Errorf("link.address is required")
	}
	if cfg.Link.Baud <= 0 {
		return fmt.Errorf("link.baud must be positive")
	}
	if cfg.Link.Retries < 0 {
		return fmt.Errorf("link.retries cannot be negative")
	}
	if _, err := cfg.ackTimeout(); err != nil {
		return err
	}
	if _, err := cfg.readTimeout(); err != nil {
		return err
	}

	for _, cmd := range cfg.Commands {
		if cmd.Name == "" {
			return fmt.Errorf("command override with empty name")
		}
		if cmd.Opcode > 0xFF {
			return fmt.Errorf("command %s: opcode out of range: 0x%x", cmd.Name, cmd.Opcode)
		}
	}
	for _, snd := range cfg.Sounds {
		if snd.Name == "" || snd.Clip == "" {
			return fmt.Errorf("sound entry needs both name and clip")
		}
	}
	seen := make(map[uint16]struct{}, len(cfg.Sensors))
	for _, sensor := range cfg.Sensors {
		if sensor.Opcode > 0xFF {
			return fmt.Errorf("sensor %s: opcode out of range: 0x%x", sensor.Kind, sensor.Opcode)
		}
		if _, ok := seen[sensor.Opcode]; ok {
			return fmt.Errorf("duplicate sensor opcode: 0x%02x", sensor.Opcode)
		}
		seen[sensor.Opcode] = struct{}{}
		if sensor.Kind == "" {
			return fmt.Errorf("sensor 0x%02x has empty kind", sensor.Opcode)
		}
		if len(sensor.Fields) == 0 {
			return fmt.Errorf("sensor %s declares no fields", sensor.Kind)
		}
	}
	return nil
}

// Apply installs the table overrides into the protocol registries.
// Field layouts are validated by the registry, so a bad layout fails
// here instead of at decode time.
func (cfg *Config) Apply() error {
	for _, cmd := range cfg.Commands {
		protocol.RegisterCommand(cmd.Name, protocol.CommandDef{
			Op:    protocol.Opcode(cmd.Opcode),
			Acked: cmd.Acked,
		})
	}
	for _, snd := range cfg.Sounds {
		if err := protocol.RegisterNoise(snd.Name, []byte(snd.Clip)); err != nil {
			return err
		}
	}
	for _, sensor := range cfg.Sensors {
		def := protocol.CustomSensorDef{
			Kind:     protocol.SensorKind(sensor.Kind),
			ByteSize: sensor.ByteSize,
			Fields:   make([]protocol.CustomFieldDef, 0, len(sensor.Fields)),
		}
		for _, field := range sensor.Fields {
			def.Fields = append(def.Fields, protocol.CustomFieldDef{
				Name:   field.Name,
				Type:   field.Type,
				Offset: field.Offset,
				Size:   field.Size,
			})
		}
		if err := protocol.RegisterCustomSensor(protocol.Opcode(sensor.Opcode), def); err != nil {
			return err
		}
	}
	return nil
}

// Dialer builds the transport dialer the link section asks for.
func (cfg *Config) Dialer() (transport.Dialer, error) {
	switch cfg.Link.Transport {
	case "serial":
		return &transport.SerialDialer{Baud: cfg.Link.Baud}, nil
	case "tcp":
		return &transport.TCPDialer{}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Link.Transport)
	}
}

// EngineOptions translates the link section into session engine
// options.
func (cfg *Config) EngineOptions() ([]engine.Option, error) {
	ack, err := cfg.ackTimeout()
	if err != nil {
		return nil, err
	}
	read, err := cfg.readTimeout()
	if err != nil {
		return nil, err
	}
	hub := engine.NewHub(
		engine.WithBroadcastBuffer(cfg.Link.BroadcastBuffer),
		engine.WithClientBuffer(cfg.Link.ClientBuffer),
	)
	return []engine.Option{
		engine.WithAckTimeout(ack),
		engine.WithReadTimeout(read),
		engine.WithRetries(cfg.Link.Retries),
		engine.WithHub(hub),
	}, nil
}

func (cfg *Config) ackTimeout() (time.Duration, error) {
	return parseDuration("link.ack_timeout", cfg.Link.AckTimeout)
}

func (cfg *Config) readTimeout() (time.Duration, error) {
	return parseDuration("link.read_timeout", cfg.Link.ReadTimeout)
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
