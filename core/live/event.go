package live

import "fmt"

type EventKind int

const (
	EventOpened EventKind = iota
	EventMessage
	EventError
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one inbound notification from a session.
type Event struct {
	Kind EventKind

	// Audio holds every base64 inline audio part of a model turn message, in
	// part order.
	Audio        []string
	Interrupted  bool
	TurnComplete bool

	// Err is set for EventError, and for EventClosed when the close was not
	// requested locally.
	Err error
	// Reason is the close reason reported by the remote side, if any.
	Reason string
}

func (e Event) String() string {
	switch e.Kind {
	case EventMessage:
		return fmt.Sprintf("message(audio=%d interrupted=%t turnComplete=%t)", len(e.Audio), e.Interrupted, e.TurnComplete)
	case EventError:
		return fmt.Sprintf("error(%v)", e.Err)
	case EventClosed:
		if e.Reason != "" {
			return fmt.Sprintf("closed(%s)", e.Reason)
		}
	}
	return e.Kind.String()
}
