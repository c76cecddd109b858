// Package session manages the single live session of a client: connecting,
// replacing it on reset, and dispatching its inbound stream to playback.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/live"
	"github.com/koscakluka/ema-live/core/playback"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// ErrNotConnected is returned by SendRealtimeInput while no session is open.
var ErrNotConnected = fmt.Errorf("%w: no open session", live.ErrTransportClosed)

// Playback receives decoded model audio and interruptions.
type Playback interface {
	OnChunkReceived(ctx context.Context, chunk audio.Chunk) (playback.Reservation, error)
	OnInterrupted(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
}

type Option func(*Manager)

// WithOnStatus receives every lifecycle transition. It is called from the
// manager's goroutines and must not block.
func WithOnStatus(onStatus func(Status)) Option {
	return func(m *Manager) {
		if onStatus != nil {
			m.onStatus = onStatus
		}
	}
}

// WithOnTurnComplete is called whenever the model finishes a turn.
func WithOnTurnComplete(onTurnComplete func()) Option {
	return func(m *Manager) {
		if onTurnComplete != nil {
			m.onTurnComplete = onTurnComplete
		}
	}
}

// WithPlaybackFormat overrides the sample rate and channel count inbound
// audio is decoded with.
func WithPlaybackFormat(sampleRate, channels int) Option {
	return func(m *Manager) {
		if sampleRate > 0 {
			m.sampleRate = sampleRate
		}
		if channels > 0 {
			m.channels = channels
		}
	}
}

func WithMeter(mt metric.Meter) Option {
	return func(m *Manager) { m.metrics = newInstruments(mt) }
}

type Manager struct {
	dialer   live.Dialer
	config   live.Config
	playback Playback

	sampleRate     int
	channels       int
	onStatus       func(Status)
	onTurnComplete func()
	metrics        instruments

	// opMu serializes Connect, Reset and Close.
	opMu    sync.Mutex
	current atomic.Pointer[handle]
}

// handle is one open session and its dispatch loop.
type handle struct {
	session live.Session
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	// closing marks a close requested by the manager itself.
	closing atomic.Bool
}

func NewManager(dialer live.Dialer, config live.Config, playback Playback, opts ...Option) *Manager {
	m := &Manager{
		dialer:         dialer,
		config:         config.WithDefaults(),
		playback:       playback,
		sampleRate:     audio.PlaybackSampleRate,
		channels:       1,
		onStatus:       func(Status) {},
		onTurnComplete: func() {},
	}
	m.metrics = newInstruments(meter)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Connected() bool { return m.current.Load() != nil }

// SessionID returns the id of the open session, or "" when disconnected.
func (m *Manager) SessionID() string {
	if h := m.current.Load(); h != nil {
		return h.session.ID()
	}
	return ""
}

// Connect opens a session unless one is already open. Failures are reported
// as an error status and returned wrapping live.ErrConnection.
func (m *Manager) Connect(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.current.Load() != nil {
		return nil
	}
	return m.connect(ctx)
}

func (m *Manager) connect(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "connect session")
	defer span.End()

	m.onStatus(Status{Kind: StatusConnecting})

	sess, err := m.dialer.Connect(ctx, m.config)
	m.metrics.connected(ctx, err)
	if err != nil {
		if !errors.Is(err, live.ErrConnection) {
			err = fmt.Errorf("%w: %w", live.ErrConnection, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("failed to connect live session", "error", err)
		m.onStatus(Status{Kind: StatusError, Err: err})
		return err
	}

	span.SetAttributes(attribute.String("session.id", sess.ID()))

	hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &handle{session: sess, ctx: hctx, cancel: cancel, done: make(chan struct{})}
	m.current.Store(h)
	go m.dispatch(h)

	return nil
}

// Reset replaces the open session with a fresh one. Close errors of the old
// session are logged and ignored; the playback timeline is flushed before
// the new session can deliver audio.
func (m *Manager) Reset(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "reset session")
	defer span.End()

	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.metrics.resets.Add(ctx, 1)

	if h := m.current.Swap(nil); h != nil {
		if err := m.closeHandle(h); err != nil {
			logger.Warn("ignoring error while closing session for reset", "session", h.session.ID(), "error", err)
		}
	}

	if err := m.playback.Reset(ctx); err != nil {
		logger.Warn("failed to reset playback timeline", "error", err)
	}

	if err := m.connect(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	m.onStatus(Status{Kind: StatusReset, SessionID: m.SessionID()})
	return nil
}

// Close closes the open session, if any.
func (m *Manager) Close() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	h := m.current.Swap(nil)
	if h == nil {
		return nil
	}

	err := m.closeHandle(h)
	m.onStatus(Status{Kind: StatusClosed, SessionID: h.session.ID()})
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// closeHandle closes the session and waits for its dispatch loop so that no
// chunk of the old session is scheduled afterwards.
func (m *Manager) closeHandle(h *handle) error {
	h.closing.Store(true)
	err := h.session.Close()
	h.cancel()
	<-h.done
	return err
}

// SendRealtimeInput forwards a microphone frame to the open session.
func (m *Manager) SendRealtimeInput(ctx context.Context, blob audio.Blob) error {
	h := m.current.Load()
	if h == nil {
		return ErrNotConnected
	}
	return h.session.SendRealtimeInput(ctx, blob)
}
