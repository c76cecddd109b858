package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

// PlaybackDevice renders a Mixer to the default output device. The mixer
// clock only advances while the device is started.
type PlaybackDevice struct {
	audioContext *malgo.AllocatedContext
	mixer        *audio.Mixer

	mu      sync.Mutex
	device  *malgo.Device
	scratch []float32
}

func (c *PlaybackDevice) init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(c.mixer.SampleRate())
	format := malgo.FormatF32
	bytesPerFrame := malgo.SampleSizeInBytes(format)

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = sampleRate
	config.Playback.Format = format
	config.Playback.Channels = 1
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = sampleRate / 50 // ~20ms of audio
	config.Periods = 3

	device, err := malgo.InitDevice(c.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if n == 0 || len(pOutput) < n {
				return
			}
			c.scratch = c.mixer.RenderBytes(pOutput[:n], c.scratch)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	c.device = device
	return nil
}

func (c *PlaybackDevice) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if c.device.IsStarted() {
		return nil
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (c *PlaybackDevice) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}
	return nil
}

func (c *PlaybackDevice) uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}
	c.device.Uninit()
	c.device = nil
	return nil
}
