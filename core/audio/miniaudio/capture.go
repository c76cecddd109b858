package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

// CaptureDevice opens the default microphone as 32-bit float mono. The
// device is initialized on Open and fully released on Close so nothing holds
// the microphone while capture is stopped.
type CaptureDevice struct {
	audioContext *malgo.AllocatedContext
	sampleRate   int

	mu      sync.Mutex
	device  *malgo.Device
	scratch []float32
}

func (c *CaptureDevice) Open(_ context.Context, frameSize int, onFrame func([]float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		return nil
	}

	format := malgo.FormatF32
	bytesPerFrame := malgo.SampleSizeInBytes(format)

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(c.sampleRate)
	config.Capture.Format = format
	config.Capture.Channels = 1
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = uint32(frameSize)
	config.Periods = 3

	framer := audio.NewFramer(frameSize, onFrame)
	device, err := malgo.InitDevice(c.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if n == 0 || len(pInput) < n {
				return
			}
			c.scratch = audio.BytesToFloat32(c.scratch, pInput[:n])
			framer.Write(c.scratch)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	c.device = device
	return nil
}

func (c *CaptureDevice) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}

	var err error
	if c.device.IsStarted() {
		if stopErr := c.device.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop capture device: %w", stopErr)
		}
	}
	c.device.Uninit()
	c.device = nil
	return err
}
