// Package portaudio is an alternative capture and playback backend built on
// PortAudio callback streams.
package portaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/capture"
)

var _ capture.Device = (*CaptureDevice)(nil)

type Client struct {
	Capture  *CaptureDevice
	Playback *PlaybackDevice
}

// NewClient initializes PortAudio and starts rendering mixer on the default
// output device.
func NewClient(mixer *audio.Mixer) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize portaudio: %w", capture.ErrNoDevice, err)
	}

	client := &Client{
		Capture:  &CaptureDevice{sampleRate: audio.CaptureSampleRate},
		Playback: &PlaybackDevice{mixer: mixer},
	}
	if err := client.Playback.Start(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (c *Client) Close() error {
	_ = c.Capture.Close()
	_ = c.Playback.Stop()
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate portaudio: %w", err)
	}
	return nil
}

type CaptureDevice struct {
	sampleRate int

	mu     sync.Mutex
	stream *portaudio.Stream
}

func (c *CaptureDevice) Open(_ context.Context, frameSize int, onFrame func([]float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return nil
	}

	framer := audio.NewFramer(frameSize, onFrame)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(c.sampleRate), frameSize, func(in []float32) {
		framer.Write(in)
	})
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	c.stream = stream
	return nil
}

func (c *CaptureDevice) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return nil
	}

	stopErr := c.stream.Stop()
	closeErr := c.stream.Close()
	c.stream = nil
	if stopErr != nil {
		return fmt.Errorf("failed to stop input stream: %w", stopErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close input stream: %w", closeErr)
	}
	return nil
}

type PlaybackDevice struct {
	mixer *audio.Mixer

	mu     sync.Mutex
	stream *portaudio.Stream
}

func (c *PlaybackDevice) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return nil
	}

	sampleRate := c.mixer.SampleRate()
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), sampleRate/50, c.mixer.Render)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start output stream: %w", err)
	}

	c.stream = stream
	return nil
}

func (c *PlaybackDevice) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return nil
	}

	defer func() { c.stream = nil }()
	if err := c.stream.Stop(); err != nil {
		c.stream.Close()
		return fmt.Errorf("failed to stop output stream: %w", err)
	}
	return c.stream.Close()
}
