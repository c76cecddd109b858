package session

import (
	"errors"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/live"
	"github.com/koscakluka/ema-live/core/playback"
)

// dispatch forwards inbound events of h to playback and status, in arrival
// order, until the session's event stream ends.
func (m *Manager) dispatch(h *handle) {
	defer close(h.done)
	defer m.current.CompareAndSwap(h, nil)

	id := h.session.ID()
	for ev := range h.session.Events() {
		switch ev.Kind {
		case live.EventOpened:
			logger.Info("live session opened", "session", id)
			m.onStatus(Status{Kind: StatusOpened, SessionID: id})

		case live.EventMessage:
			m.handleMessage(h, ev)

		case live.EventError:
			logger.Warn("live session reported an error", "session", id, "error", ev.Err)
			m.onStatus(Status{Kind: StatusError, SessionID: id, Err: ev.Err})

		case live.EventClosed:
			if h.closing.Load() {
				continue
			}
			m.current.CompareAndSwap(h, nil)
			if ev.Err != nil {
				logger.Warn("live session closed unexpectedly", "session", id, "error", ev.Err)
				m.onStatus(Status{Kind: StatusError, SessionID: id, Err: ev.Err})
				continue
			}
			m.onStatus(Status{Kind: StatusClosed, SessionID: id, Reason: ev.Reason})
		}
	}
}

func (m *Manager) handleMessage(h *handle, ev live.Event) {
	for _, data := range ev.Audio {
		m.schedule(h, data)
	}

	if ev.Interrupted {
		stopped, err := m.playback.OnInterrupted(h.ctx)
		if err != nil && !errors.Is(err, playback.ErrClosed) {
			logger.Warn("failed to interrupt playback", "error", err)
		}
		logger.Debug("playback interrupted", "session", h.session.ID(), "stopped", stopped)
		m.onStatus(Status{Kind: StatusInterrupted, SessionID: h.session.ID()})
	}

	if ev.TurnComplete {
		m.onTurnComplete()
	}
}

// schedule decodes one inline audio payload and places it on the timeline.
// Malformed payloads are dropped without touching the timeline.
func (m *Manager) schedule(h *handle, data string) {
	raw, err := audio.DecodeBase64(data)
	if err == nil && len(raw) == 0 {
		return
	}

	var chunk audio.Chunk
	if err == nil {
		chunk, err = audio.DecodeAudioBuffer(raw, m.sampleRate, m.channels)
	}
	if err != nil {
		logger.Warn("dropping malformed audio chunk", "session", h.session.ID(), "error", err)
		m.metrics.droppedChunk(h.ctx, "decode")
		return
	}

	if _, err := m.playback.OnChunkReceived(h.ctx, chunk); err != nil {
		logger.Warn("failed to schedule audio chunk", "session", h.session.ID(), "error", err)
		m.metrics.droppedChunk(h.ctx, "schedule")
	}
}
