package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"voice-navigator/internal/application/port/output"
)

const (
	TransportWebRTC    = "webrtc"
	TransportWebSocket = "websocket"
)

type Config struct {
	Realtime RealtimeConfig `yaml:"realtime"`
	Browser  BrowserConfig  `yaml:"browser"`
	Store    StoreConfig    `yaml:"store"`
	Control  ControlConfig  `yaml:"control"`
	Log      LogConfig      `yaml:"log"`
	Audio    AudioConfig    `yaml:"audio"`
}

type RealtimeConfig struct {
	Transport      string        `yaml:"transport"`
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	Voice          string        `yaml:"voice"`
	EphemeralKey   bool          `yaml:"ephemeral_key"`
	STUNServer     string        `yaml:"stun_server"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ChannelTimeout time.Duration `yaml:"channel_timeout"`
	CommandsPerSec float64       `yaml:"commands_per_second"`
	CommandBurst   int           `yaml:"command_burst"`
}

type BrowserConfig struct {
	Headless   bool          `yaml:"headless"`
	StartURL   string        `yaml:"start_url"`
	SlowMotion time.Duration `yaml:"slow_motion"`
	Timeout    time.Duration `yaml:"timeout"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type ControlConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Dir     string `yaml:"dir"`
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

type AudioConfig struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

func Default() Config {
	return Config{
		Realtime: RealtimeConfig{
			Transport:      TransportWebRTC,
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-realtime-preview-2024-12-17",
			Voice:          "verse",
			EphemeralKey:   true,
			STUNServer:     "stun:stun.l.google.com:19302",
			ConnectTimeout: 10 * time.Second,
			ChannelTimeout: 10 * time.Second,
			CommandsPerSec: 5,
			CommandBurst:   10,
		},
		Browser: BrowserConfig{
			StartURL: "about:blank",
			Timeout:  10 * time.Second,
		},
		Store:   StoreConfig{Path: "voice-navigator.db"},
		Control: ControlConfig{Addr: "127.0.0.1:7654"},
		Log:     LogConfig{Dir: "log", Level: "info"},
	}
}

// Load reads the YAML file at path on top of Default. A missing file is not
// an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config load: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config parse: %w", err)
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides file values with VN_* environment variables.
func (c *Config) ApplyEnv(env output.ConfigPort) {
	c.Realtime.Transport = env.GetWithDefault("VN_TRANSPORT", c.Realtime.Transport)
	c.Realtime.BaseURL = env.GetWithDefault("VN_BASE_URL", c.Realtime.BaseURL)
	c.Realtime.Model = env.GetWithDefault("VN_MODEL", c.Realtime.Model)
	c.Realtime.Voice = env.GetWithDefault("VN_VOICE", c.Realtime.Voice)
	c.Realtime.EphemeralKey = env.GetBool("VN_EPHEMERAL_KEY", c.Realtime.EphemeralKey)
	c.Realtime.ConnectTimeout = env.GetDuration("VN_CONNECT_TIMEOUT", c.Realtime.ConnectTimeout)
	c.Realtime.ChannelTimeout = env.GetDuration("VN_CHANNEL_TIMEOUT", c.Realtime.ChannelTimeout)
	c.Realtime.CommandsPerSec = env.GetFloat("VN_COMMANDS_PER_SECOND", c.Realtime.CommandsPerSec)
	c.Realtime.CommandBurst = env.GetInt("VN_COMMAND_BURST", c.Realtime.CommandBurst)
	c.Browser.Headless = env.GetBool("VN_HEADLESS", c.Browser.Headless)
	c.Browser.StartURL = env.GetWithDefault("VN_START_URL", c.Browser.StartURL)
	c.Store.Path = env.GetWithDefault("VN_STORE_PATH", c.Store.Path)
	c.Control.Addr = env.GetWithDefault("VN_CONTROL_ADDR", c.Control.Addr)
	c.Log.Dir = env.GetWithDefault("VN_LOG_DIR", c.Log.Dir)
	c.Log.Level = env.GetWithDefault("VN_LOG_LEVEL", c.Log.Level)
	c.Log.Console = env.GetBool("VN_LOG_CONSOLE", c.Log.Console)
	c.Audio.Input = env.GetWithDefault("VN_AUDIO_IN", c.Audio.Input)
	c.Audio.Output = env.GetWithDefault("VN_AUDIO_OUT", c.Audio.Output)
}

func (c Config) Validate() error {
	switch c.Realtime.Transport {
	case TransportWebRTC, TransportWebSocket:
	default:
		return fmt.Errorf("config: unknown realtime transport %q", c.Realtime.Transport)
	}
	if c.Realtime.Model == "" {
		return fmt.Errorf("config: realtime model is required")
	}
	if c.Realtime.ConnectTimeout <= 0 || c.Realtime.ChannelTimeout <= 0 {
		return fmt.Errorf("config: realtime timeouts must be positive")
	}
	if c.Realtime.CommandsPerSec <= 0 || c.Realtime.CommandBurst <= 0 {
		return fmt.Errorf("config: command rate limit must be positive")
	}
	return nil
}
