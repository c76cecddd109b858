package main

import (
	"fmt"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/audio/miniaudio"
	"github.com/koscakluka/ema-live/core/audio/portaudio"
	"github.com/koscakluka/ema-live/core/capture"
	"github.com/koscakluka/ema-live/internal/config"
)

type audioDevice interface {
	CaptureDevice() capture.Device
	Mixer() *audio.Mixer
	Close() error
}

// openAudio starts playback of a fresh mixer on the configured backend. The
// microphone is only opened once recording starts.
func openAudio(cfg config.AudioConfig) (audioDevice, error) {
	mixer := audio.NewMixer(audio.PlaybackSampleRate, audio.NewGain(*cfg.OutputGain))

	switch cfg.Backend {
	case config.BackendPortaudio:
		client, err := portaudio.NewClient(mixer)
		if err != nil {
			return nil, fmt.Errorf("failed to open portaudio: %w", err)
		}
		return portaudioDevice{client: client, mixer: mixer}, nil
	default:
		client, err := miniaudio.NewClient(mixer)
		if err != nil {
			return nil, fmt.Errorf("failed to open miniaudio: %w", err)
		}
		return miniaudioDevice{client: client, mixer: mixer}, nil
	}
}

type miniaudioDevice struct {
	client *miniaudio.Client
	mixer  *audio.Mixer
}

func (d miniaudioDevice) CaptureDevice() capture.Device { return d.client.Capture }
func (d miniaudioDevice) Mixer() *audio.Mixer           { return d.mixer }
func (d miniaudioDevice) Close() error {
	defer d.mixer.Close()
	return d.client.Close()
}

type portaudioDevice struct {
	client *portaudio.Client
	mixer  *audio.Mixer
}

func (d portaudioDevice) CaptureDevice() capture.Device { return d.client.Capture }
func (d portaudioDevice) Mixer() *audio.Mixer           { return d.mixer }
func (d portaudioDevice) Close() error {
	defer d.mixer.Close()
	return d.client.Close()
}
