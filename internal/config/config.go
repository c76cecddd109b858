// Package config holds the application configuration of the emalive
// terminal client.
package config

import (
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/chat"
	"github.com/koscakluka/ema-live/core/live"
)

// AudioBackend selects the audio device implementation.
type AudioBackend string

const (
	BackendMiniaudio AudioBackend = "miniaudio"
	BackendPortaudio AudioBackend = "portaudio"
)

// IsValid reports whether b is a known backend.
func (b AudioBackend) IsValid() bool {
	switch b {
	case BackendMiniaudio, BackendPortaudio:
		return true
	}
	return false
}

type Config struct {
	// APIKey is never read from the file; see LoadAPIKey.
	APIKey string `yaml:"-"`

	Live      LiveConfig      `yaml:"live"`
	Chat      ChatConfig      `yaml:"chat"`
	Audio     AudioConfig     `yaml:"audio"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type LiveConfig struct {
	Model             string `yaml:"model"`
	SystemInstruction string `yaml:"system_instruction"`
	Voice             string `yaml:"voice"`
	// BaseURL overrides the Gemini Live websocket host.
	BaseURL string `yaml:"base_url"`
}

type ChatConfig struct {
	Model             string `yaml:"model"`
	SystemInstruction string `yaml:"system_instruction"`
	Greeting          string `yaml:"greeting"`
	// GoogleSearch defaults to true when omitted.
	GoogleSearch *bool `yaml:"google_search"`
}

type AudioConfig struct {
	Backend    AudioBackend `yaml:"backend"`
	FrameSize  int          `yaml:"frame_size"`
	InputGain  *float64     `yaml:"input_gain"`
	OutputGain *float64     `yaml:"output_gain"`
}

type TelemetryConfig struct {
	// MetricsAddr is where /metrics is served. Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns a configuration that works without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Live.Model == "" {
		c.Live.Model = live.DefaultModel
	}
	if c.Live.Voice == "" {
		c.Live.Voice = live.DefaultVoice
	}
	if c.Chat.Model == "" {
		c.Chat.Model = chat.DefaultModel
	}
	if c.Chat.GoogleSearch == nil {
		enabled := true
		c.Chat.GoogleSearch = &enabled
	}
	if c.Audio.Backend == "" {
		c.Audio.Backend = BackendMiniaudio
	}
	if c.Audio.FrameSize == 0 {
		c.Audio.FrameSize = audio.DefaultFrameSize
	}
	if c.Audio.InputGain == nil {
		gain := 1.0
		c.Audio.InputGain = &gain
	}
	if c.Audio.OutputGain == nil {
		gain := 1.0
		c.Audio.OutputGain = &gain
	}
}

// LiveSessionConfig converts the live section into a session config.
func (c *Config) LiveSessionConfig() live.Config {
	return live.Config{
		Model:             c.Live.Model,
		SystemInstruction: c.Live.SystemInstruction,
		VoiceName:         c.Live.Voice,
	}.WithDefaults()
}
