// Package miniaudio provides microphone capture and mixer playback on top of
// miniaudio (via malgo).
package miniaudio

import (
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/capture"
)

var _ capture.Device = (*CaptureDevice)(nil)

// Client owns the miniaudio context shared by the capture and playback
// devices.
type Client struct {
	// audioContext is only kept to be able to uninitialize it
	audioContext *malgo.AllocatedContext

	Capture  *CaptureDevice
	Playback *PlaybackDevice
}

// NewClient initializes the audio context and starts rendering mixer on the
// default output device. The capture device is only opened on demand.
func NewClient(mixer *audio.Mixer) (*Client, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize audio context: %w", capture.ErrNoDevice, err)
	}

	client := &Client{
		audioContext: audioCtx,
		Capture:      &CaptureDevice{audioContext: audioCtx, sampleRate: audio.CaptureSampleRate},
		Playback:     &PlaybackDevice{audioContext: audioCtx, mixer: mixer},
	}

	if err := client.Playback.init(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := client.Playback.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	return client, nil
}

func (c *Client) Close() error {
	_ = c.Capture.Close()
	_ = c.Playback.uninit()
	if err := c.audioContext.Uninit(); err != nil {
		return fmt.Errorf("failed to uninitialize audio context: %w", err)
	}
	c.audioContext.Free()
	return nil
}
