package events

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

// Event is anything the client reports to its user interface.
type Event interface {
	ID() string
	Kind() Kind
	Timestamp() time.Time
}

// Base carries the fields shared by every event. Embed it and build it with
// NewBase.
type Base struct {
	id        string
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{id: uuid.NewString(), kind: kind, timestamp: time.Now()}
}

func (b Base) ID() string           { return b.id }
func (b Base) Kind() Kind           { return b.kind }
func (b Base) Timestamp() time.Time { return b.timestamp }
