package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/live"
)

var _ live.Session = (*session)(nil)

const eventBuffer = 64

type session struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex

	events    chan live.Event
	done      chan struct{}
	recvDone  chan struct{}
	closeOnce sync.Once

	// closed is set once the transport can no longer carry input, either
	// because Close was called or because the remote side went away.
	closed      atomic.Bool
	closedLocal atomic.Bool
}

func newSession(conn *websocket.Conn) *session {
	s := &session{
		id:       uuid.NewString(),
		conn:     conn,
		events:   make(chan live.Event, eventBuffer),
		done:     make(chan struct{}),
		recvDone: make(chan struct{}),
	}
	s.events <- live.Event{Kind: live.EventOpened}
	return s
}

func (s *session) ID() string { return s.id }

func (s *session) Events() <-chan live.Event { return s.events }

func (s *session) SendRealtimeInput(ctx context.Context, blob audio.Blob) error {
	if s.closed.Load() {
		return fmt.Errorf("%w: session %s", live.ErrTransportClosed, s.id)
	}

	msg := realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []inlineData{{MIMEType: blob.MIMEType, Data: blob.Data}},
		},
	}

	s.writeMu.Lock()
	err := writeJSON(s.conn, msg, deadlineFrom(ctx, writeTimeout))
	s.writeMu.Unlock()

	if err != nil {
		if s.closed.Load() || errors.Is(err, websocket.ErrCloseSent) {
			return fmt.Errorf("%w: session %s: %w", live.ErrTransportClosed, s.id, err)
		}
		return fmt.Errorf("failed to send realtime input: %w", err)
	}
	return nil
}

func (s *session) receiveLoop() {
	defer close(s.recvDone)
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.closed.Store(true)
			s.emitClosed(err)
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("skipping malformed live message", "session", s.id, "error", err)
			continue
		}
		s.dispatch(&msg)
	}
}

func (s *session) dispatch(msg *serverMessage) {
	if msg.Error != nil {
		s.emit(live.Event{Kind: live.EventError, Err: fmt.Errorf("gemini: %s", msg.Error)})
	}

	sc := msg.ServerContent
	if sc == nil {
		return
	}

	ev := live.Event{
		Kind:         live.EventMessage,
		Audio:        sc.audioParts(),
		Interrupted:  sc.Interrupted,
		TurnComplete: sc.TurnComplete,
	}
	if len(ev.Audio) == 0 && !ev.Interrupted && !ev.TurnComplete {
		return
	}
	s.emit(ev)
}

func (s *session) emit(ev live.Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// emitClosed reports the end of the read side. A locally requested close is
// reported without an error; the event is dropped if nobody is draining.
func (s *session) emitClosed(readErr error) {
	ev := live.Event{Kind: live.EventClosed}

	var closeErr *websocket.CloseError
	switch {
	case s.closedLocal.Load():
	case errors.As(readErr, &closeErr):
		ev.Reason = closeErr.Text
		if closeErr.Code != websocket.CloseNormalClosure {
			ev.Err = fmt.Errorf("%w: remote closed with code %d", live.ErrTransportClosed, closeErr.Code)
		}
	default:
		ev.Err = fmt.Errorf("%w: %w", live.ErrTransportClosed, readErr)
	}

	select {
	case s.events <- ev:
	case <-s.done:
		select {
		case s.events <- ev:
		default:
		}
	}
}

func (s *session) keepaliveLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.recvDone:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				logger.Debug("live keepalive ping failed", "session", s.id, "error", err)
			}
		}
	}
}

// Close sends a normal closure frame and tears the connection down. Idempotent.
func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closedLocal.Store(true)
		s.closed.Store(true)
		close(s.done)

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
		if writeErr := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); writeErr != nil &&
			!errors.Is(writeErr, websocket.ErrCloseSent) {
			logger.Debug("failed to send close frame", "session", s.id, "error", writeErr)
		}
		err = s.conn.Close()
		<-s.recvDone
		logger.Info("live session closed", "session", s.id)
	})
	return err
}
