package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/capture"
	"github.com/koscakluka/ema-live/core/chat"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/live"
	"github.com/koscakluka/ema-live/core/live/gemini"
	"github.com/koscakluka/ema-live/core/playback"
	"github.com/koscakluka/ema-live/core/session"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var (
	ErrMissingAPIKey   = errors.New("missing API key")
	ErrChatUnavailable = errors.New("chat is not available")
	ErrClosed          = errors.New("client is closed")
)

// Client ties the microphone, the live session, the playback timeline and
// the text chat together and keeps the user-facing status line.
type Client struct {
	apiKey        string
	liveConfig    live.Config
	liveOptions   []gemini.Option
	dialer        live.Dialer
	captureDevice capture.Device
	mixer         *audio.Mixer
	output        audio.Output
	inputGain     *audio.Gain
	frameSize     int
	chatOptions   []chat.Option
	eventHandler  EventHandler
	meter         metric.Meter

	scheduler *playback.Scheduler
	session   *session.Manager
	capture   *capture.Pipeline

	// customDialer is set when the dialer does not need an API key of ours.
	customDialer bool
	// ownsMixer is set when the mixer was created here and is closed with
	// the client.
	ownsMixer bool

	chatMu sync.Mutex
	chat   Chat

	status    statusLine
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		inputGain:    audio.NewGain(1),
		frameSize:    audio.DefaultFrameSize,
		eventHandler: func(events.Event) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.status.emit = c.emit

	if c.output == nil {
		if c.mixer == nil {
			c.mixer = audio.NewMixer(audio.PlaybackSampleRate, audio.NewGain(1))
			c.ownsMixer = true
		}
		c.output = c.mixer
	}

	if c.dialer != nil {
		c.customDialer = true
	} else {
		c.dialer = gemini.New(c.apiKey, c.liveOptions...)
	}

	if c.captureDevice == nil {
		c.captureDevice = missingDevice{}
	}

	playbackOpts := []playback.Option{
		playback.WithStateObserver(func(from, to playback.State) {
			logger.Debug("playback state changed", "from", from, "to", to)
		}),
	}
	sessionOpts := []session.Option{
		session.WithOnStatus(c.onSessionStatus),
		session.WithOnTurnComplete(func() { c.emit(events.NewPlaybackTurnComplete()) }),
	}
	captureOpts := []capture.Option{
		capture.WithFrameSize(c.frameSize),
		capture.WithInputGain(c.inputGain),
		capture.WithOnError(c.onCaptureError),
	}
	if c.meter != nil {
		playbackOpts = append(playbackOpts, playback.WithMeter(c.meter))
		sessionOpts = append(sessionOpts, session.WithMeter(c.meter))
		captureOpts = append(captureOpts, capture.WithMeter(c.meter))
	}

	c.scheduler = playback.NewScheduler(c.output, playbackOpts...)
	c.session = session.NewManager(c.dialer, c.liveConfig, c.scheduler, sessionOpts...)
	c.capture = capture.NewPipeline(c.captureDevice, c.session, captureOpts...)

	return c
}

// Start opens the chat and the live session. A missing API key is reported
// as an error status and returned as ErrMissingAPIKey; the client stays
// usable and Start may be called again.
func (c *Client) Start(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "start client")
	defer span.End()

	if c.closed.Load() {
		return ErrClosed
	}

	if c.apiKey == "" && !c.customDialer {
		c.status.setError("Missing API key")
		span.RecordError(ErrMissingAPIKey)
		span.SetStatus(codes.Error, ErrMissingAPIKey.Error())
		return ErrMissingAPIKey
	}

	c.initChat(ctx)

	if err := c.session.Connect(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (c *Client) initChat(ctx context.Context) {
	c.chatMu.Lock()
	defer c.chatMu.Unlock()

	if c.chat != nil || c.apiKey == "" {
		return
	}

	client, err := chat.New(ctx, c.apiKey, c.chatOptions...)
	if err != nil {
		logger.Warn("chat is unavailable", "error", err)
		return
	}
	c.chat = client
}

func (c *Client) currentChat() Chat {
	c.chatMu.Lock()
	defer c.chatMu.Unlock()
	return c.chat
}

// StartRecording opens the microphone and streams it into the session.
// Calling it while recording is a no-op.
func (c *Client) StartRecording(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "start recording")
	defer span.End()

	if c.closed.Load() {
		return ErrClosed
	}
	if c.capture.IsCapturing() {
		return nil
	}

	c.status.set("Requesting microphone access...")
	if err := c.capture.StartCapture(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.emit(events.NewCaptureFailed(err))
		c.status.setError(fmt.Sprintf("Error starting recording: %v", err))
		return err
	}

	c.emit(events.NewCaptureStarted())
	c.status.set("🔴 Recording... Capturing PCM chunks.")
	return nil
}

// StopRecording releases the microphone. It does nothing when not
// recording.
func (c *Client) StopRecording() {
	if !c.capture.IsCapturing() {
		return
	}

	_ = c.capture.StopCapture()
	c.emit(events.NewCaptureStopped())
	c.status.set("Recording stopped. Click Start to begin again.")
}

func (c *Client) IsRecording() bool { return c.capture.IsCapturing() }

// Reset replaces the live session and flushes queued playback. Recording is
// left untouched.
func (c *Client) Reset(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.apiKey == "" && !c.customDialer {
		c.status.setError("Missing API key")
		return ErrMissingAPIKey
	}
	if err := c.session.Reset(ctx); err != nil {
		recordedErr := fmt.Errorf("failed to reset session: %w", err)
		span := trace.SpanFromContext(ctx)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return err
	}
	return nil
}

// SendChat posts text to the chat and emits every streamed step followed by
// the final message. Streaming failures are returned after the failed
// message has been emitted.
func (c *Client) SendChat(ctx context.Context, text string) error {
	chatClient := c.currentChat()
	if chatClient == nil {
		return ErrChatUnavailable
	}

	var sendErr error
	for chunk, err := range chatClient.Send(ctx, text) {
		if err != nil {
			sendErr = err
			break
		}
		c.emit(events.NewChatMessageUpdated(chunk))
	}

	if errors.Is(sendErr, chat.ErrEmptyMessage) || errors.Is(sendErr, chat.ErrBusy) {
		return sendErr
	}

	if history := chatClient.History(); len(history) > 0 {
		c.emit(events.NewChatMessageFinal(history[len(history)-1]))
	}
	if sendErr != nil {
		recordedErr := fmt.Errorf("failed to stream chat reply: %w", sendErr)
		span := trace.SpanFromContext(ctx)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
	}
	return sendErr
}

// ChatHistory returns the chat so far, or nil when no chat is available.
func (c *Client) ChatHistory() []chat.Message {
	if chatClient := c.currentChat(); chatClient != nil {
		return chatClient.History()
	}
	return nil
}

func (c *Client) Status() Status {
	status, errMsg := c.status.get()
	return Status{
		Status:    status,
		Error:     errMsg,
		Recording: c.capture.IsCapturing(),
		Connected: c.session.Connected(),
		SessionID: c.session.SessionID(),
	}
}

// InputGain is the microphone gain node. Its level may be read by
// visualisers.
func (c *Client) InputGain() *audio.Gain { return c.inputGain }

// OutputGain is the gain node of the playback mixer, or nil when playback
// goes to a custom output.
func (c *Client) OutputGain() *audio.Gain {
	if c.mixer == nil {
		return nil
	}
	return c.mixer.Gain()
}

// Mixer returns the output graph to be rendered by a playback device.
func (c *Client) Mixer() *audio.Mixer { return c.mixer }

// Close releases the microphone, closes the session and stops playback.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		g, ctx := errgroup.WithContext(context.Background())
		goWorker(ctx, g, "capture", func(context.Context) error {
			return c.capture.StopCapture()
		})
		goWorker(ctx, g, "session", func(context.Context) error {
			return c.session.Close()
		})
		c.closeErr = g.Wait()

		c.scheduler.Close()
		if c.ownsMixer {
			c.mixer.Close()
		}
	})
	return c.closeErr
}

func (c *Client) onSessionStatus(s session.Status) {
	switch s.Kind {
	case session.StatusConnecting:
		c.emit(events.NewSessionConnecting())
		c.status.set("Connecting...")
	case session.StatusOpened:
		c.emit(events.NewSessionOpened(s.SessionID))
		c.status.set("Connection established. You can speak.")
	case session.StatusInterrupted:
		c.emit(events.NewPlaybackInterrupted())
	case session.StatusReset:
		c.emit(events.NewSessionReset(s.SessionID))
		c.status.set("Session reset.")
	case session.StatusClosed:
		c.emit(events.NewSessionClosed(s.SessionID, s.Reason))
		if s.Reason != "" {
			c.status.set("Connection closed: " + s.Reason)
		} else {
			c.status.set("Connection closed.")
		}
	case session.StatusError:
		c.emit(events.NewSessionFailed(s.SessionID, s.Err))
		if s.SessionID == "" {
			c.status.setError("Failed to connect: " + s.Message())
		} else {
			c.status.setError("Connection error: " + s.Message())
		}
	}
}

func (c *Client) onCaptureError(err error) {
	c.emit(events.NewCaptureFailed(err))
	c.status.setError(fmt.Sprintf("Recording stopped: %v", err))
}

func (c *Client) emit(event events.Event) {
	c.eventHandler(event)
}

// missingDevice stands in for a client built without a microphone.
type missingDevice struct{}

func (missingDevice) Open(context.Context, int, func([]float32)) error {
	return fmt.Errorf("%w: no capture device configured", capture.ErrNoDevice)
}

func (missingDevice) Close() error { return nil }
