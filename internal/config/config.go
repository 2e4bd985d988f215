package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultServerURL      = "http://127.0.0.1:8765"
	DefaultICEServer      = "stun:stun.l.google.com:19302"
	defaultRequestTimeout = 10 * time.Second
	defaultConnectTimeout = 15 * time.Second
	defaultReconnectDelay = 3 * time.Second
	defaultSampleRate     = 48000
	defaultChannels       = 1
)

// Config stores runtime configuration for every surface and the CLI.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Audio   AudioConfig   `yaml:"audio"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	URL            string        `yaml:"url" env:"TAMBOURINE_SERVER_URL"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"TAMBOURINE_REQUEST_TIMEOUT"`
	ICEServers     []string      `yaml:"ice_servers" env:"TAMBOURINE_ICE_SERVERS" envSeparator:","`
}

type AudioConfig struct {
	RecorderCommand string `yaml:"recorder_command" env:"TAMBOURINE_FFMPEG_COMMAND"`
	InputFormat     string `yaml:"input_format" env:"TAMBOURINE_AUDIO_INPUT_FORMAT"`
	InputDevice     string `yaml:"input_device" env:"TAMBOURINE_AUDIO_INPUT_DEVICE"`
	SampleRate      int    `yaml:"sample_rate" env:"TAMBOURINE_SAMPLE_RATE"`
	Channels        int    `yaml:"channels" env:"TAMBOURINE_CHANNELS"`
}

type SessionConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"TAMBOURINE_CONNECT_TIMEOUT"`
	// ReconnectDelay of zero disables automatic reconnection.
	ReconnectDelay time.Duration `yaml:"reconnect_delay" env:"TAMBOURINE_RECONNECT_DELAY"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"TAMBOURINE_LOG_LEVEL"`
	Format string `yaml:"format" env:"TAMBOURINE_LOG_FORMAT"`
}

// Defaults returns the configuration used when no file or environment overrides exist.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			URL:            DefaultServerURL,
			RequestTimeout: defaultRequestTimeout,
			ICEServers:     []string{DefaultICEServer},
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      defaultSampleRate,
			Channels:        defaultChannels,
		},
		Session: SessionConfig{
			ConnectTimeout: defaultConnectTimeout,
			ReconnectDelay: defaultReconnectDelay,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Path returns $TAMBOURINE_CONFIG, or ~/.config/tambourine/config.yaml.
func Path() string {
	if path := strings.TrimSpace(os.Getenv("TAMBOURINE_CONFIG")); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tambourine", "config.yaml")
}

// Load resolves configuration from the default file location and the environment.
func Load() (Config, error) {
	return LoadFrom(Path())
}

// LoadFrom layers the YAML file at path (if it exists) and environment variables over Defaults.
func LoadFrom(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		contents, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config file %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(contents, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file %q: %w", path, err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize trims values and replaces empty or non-positive settings with defaults.
func (c *Config) normalize() {
	defaults := Defaults()

	c.Server.URL = strings.TrimRight(strings.TrimSpace(c.Server.URL), "/")
	if c.Server.URL == "" {
		c.Server.URL = defaults.Server.URL
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = defaults.Server.RequestTimeout
	}
	servers := c.Server.ICEServers[:0]
	for _, server := range c.Server.ICEServers {
		if trimmed := strings.TrimSpace(server); trimmed != "" {
			servers = append(servers, trimmed)
		}
	}
	c.Server.ICEServers = servers

	c.Audio.RecorderCommand = firstNonEmpty(c.Audio.RecorderCommand, defaults.Audio.RecorderCommand)
	c.Audio.InputFormat = firstNonEmpty(c.Audio.InputFormat, defaults.Audio.InputFormat)
	c.Audio.InputDevice = firstNonEmpty(c.Audio.InputDevice, defaults.Audio.InputDevice)
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = defaults.Audio.SampleRate
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = defaults.Audio.Channels
	}

	if c.Session.ConnectTimeout <= 0 {
		c.Session.ConnectTimeout = defaults.Session.ConnectTimeout
	}
	if c.Session.ReconnectDelay < 0 {
		c.Session.ReconnectDelay = 0
	}

	c.Log.Level = firstNonEmpty(strings.ToLower(c.Log.Level), defaults.Log.Level)
	c.Log.Format = firstNonEmpty(strings.ToLower(c.Log.Format), defaults.Log.Format)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
