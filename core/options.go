package orchestration

import (
	"context"
	"iter"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/capture"
	"github.com/koscakluka/ema-live/core/chat"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/live"
	"github.com/koscakluka/ema-live/core/live/gemini"
	"go.opentelemetry.io/otel/metric"
)

type ClientOption func(*Client)

// EventHandler receives every event the client emits. It is called inline
// from capture, session and chat goroutines and must not block.
type EventHandler func(events.Event)

// Chat is a streamed text conversation. *chat.Client implements it.
type Chat interface {
	Send(ctx context.Context, message string) iter.Seq2[chat.Chunk, error]
	History() []chat.Message
}

// WithAPIKey sets the key used for both the live session and the chat.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithLiveConfig(config live.Config) ClientOption {
	return func(c *Client) { c.liveConfig = config }
}

// WithLiveOptions configures the default Gemini Live dialer. It is ignored
// when a dialer is set with WithDialer.
func WithLiveOptions(opts ...gemini.Option) ClientOption {
	return func(c *Client) { c.liveOptions = append(c.liveOptions, opts...) }
}

// WithDialer replaces the Gemini Live dialer.
func WithDialer(dialer live.Dialer) ClientOption {
	return func(c *Client) { c.dialer = dialer }
}

// WithCaptureDevice sets the microphone. Without one StartRecording fails
// with capture.ErrNoDevice.
func WithCaptureDevice(device capture.Device) ClientOption {
	return func(c *Client) { c.captureDevice = device }
}

// WithMixer sets the output graph the model audio is scheduled on. The mixer
// still has to be rendered by an output device.
func WithMixer(mixer *audio.Mixer) ClientOption {
	return func(c *Client) { c.mixer = mixer }
}

// WithOutput schedules model audio on an arbitrary output instead of a
// mixer.
func WithOutput(output audio.Output) ClientOption {
	return func(c *Client) { c.output = output }
}

func WithInputGain(gain float64) ClientOption {
	return func(c *Client) { c.inputGain.SetGain(gain) }
}

func WithFrameSize(size int) ClientOption {
	return func(c *Client) {
		if size > 0 {
			c.frameSize = size
		}
	}
}

// WithChat sets the chat backend. Without it a Gemini chat is created on
// Start from the API key.
func WithChat(chat Chat) ClientOption {
	return func(c *Client) { c.chat = chat }
}

func WithChatOptions(opts ...chat.Option) ClientOption {
	return func(c *Client) { c.chatOptions = append(c.chatOptions, opts...) }
}

func WithEventHandler(handler EventHandler) ClientOption {
	return func(c *Client) {
		if handler != nil {
			c.eventHandler = handler
		}
	}
}

// WithMeter is passed down to the capture, playback and session components.
func WithMeter(m metric.Meter) ClientOption {
	return func(c *Client) { c.meter = m }
}
