// Package live defines the contract between the client and a remote
// speech-dialog endpoint: a session that accepts realtime microphone frames
// and streams model audio back as events.
package live

import (
	"context"
	"errors"

	"github.com/koscakluka/ema-live/core/audio"
)

var (
	// ErrConnection is returned when a session cannot be established.
	ErrConnection = errors.New("live connection failed")
	// ErrTransportClosed is returned when writing to a session that is gone.
	ErrTransportClosed = errors.New("live transport closed")
)

const (
	DefaultModel = "gemini-2.5-flash-preview-native-audio-dialog"
	DefaultVoice = "Orus"

	ModalityAudio = "AUDIO"
)

type Config struct {
	Model             string
	SystemInstruction string
	// ResponseModalities defaults to audio only.
	ResponseModalities []string
	VoiceName          string
}

// WithDefaults fills in every unset field.
func (c Config) WithDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if len(c.ResponseModalities) == 0 {
		c.ResponseModalities = []string{ModalityAudio}
	}
	if c.VoiceName == "" {
		c.VoiceName = DefaultVoice
	}
	return c
}

type Dialer interface {
	// Connect opens a session and returns once the endpoint accepted its
	// configuration. Failures wrap ErrConnection.
	Connect(ctx context.Context, cfg Config) (Session, error)
}

type Session interface {
	ID() string
	// SendRealtimeInput forwards one encoded microphone frame. Returns an
	// error wrapping ErrTransportClosed once the session is closed.
	SendRealtimeInput(ctx context.Context, blob audio.Blob) error
	// Events delivers inbound events in arrival order. The channel is closed
	// after the EventClosed event.
	Events() <-chan Event
	Close() error
}
