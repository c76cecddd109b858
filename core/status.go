package orchestration

import (
	"sync"

	"github.com/koscakluka/ema-live/core/events"
)

// Status is a point-in-time view of the client.
type Status struct {
	// Status and Error are mutually exclusive; at most one is non-empty.
	Status    string
	Error     string
	Recording bool
	Connected bool
	SessionID string
}

// statusLine holds the user-facing status or error message. Setting one
// clears the other.
type statusLine struct {
	mu     sync.Mutex
	status string
	err    string
	emit   func(events.Event)
}

func (s *statusLine) set(status string) {
	s.mu.Lock()
	s.status, s.err = status, ""
	s.mu.Unlock()

	if s.emit != nil {
		s.emit(events.NewStatusUpdated(status))
	}
}

func (s *statusLine) setError(message string) {
	s.mu.Lock()
	s.status, s.err = "", message
	s.mu.Unlock()

	logger.Warn("client error", "message", message)
	if s.emit != nil {
		s.emit(events.NewErrorUpdated(message))
	}
}

func (s *statusLine) get() (status, err string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.err
}
