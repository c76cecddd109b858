package session

import "fmt"

type StatusKind int

const (
	StatusConnecting StatusKind = iota
	StatusOpened
	StatusInterrupted
	StatusReset
	StatusClosed
	StatusError
)

func (k StatusKind) String() string {
	switch k {
	case StatusConnecting:
		return "connecting"
	case StatusOpened:
		return "opened"
	case StatusInterrupted:
		return "interrupted"
	case StatusReset:
		return "reset"
	case StatusClosed:
		return "closed"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("StatusKind(%d)", int(k))
}

// Status is a session lifecycle transition.
type Status struct {
	Kind      StatusKind
	SessionID string
	// Reason is the remote close reason, if any.
	Reason string
	Err    error
}

// Message renders the status the way it is shown to the user.
func (s Status) Message() string {
	switch s.Kind {
	case StatusConnecting:
		return "Connecting..."
	case StatusOpened:
		return "Opened"
	case StatusInterrupted:
		return "Interrupted"
	case StatusReset:
		return "Session reset."
	case StatusClosed:
		if s.Reason != "" {
			return "Closed: " + s.Reason
		}
		return "Closed"
	case StatusError:
		if s.Err != nil {
			return s.Err.Error()
		}
		return "Unknown error"
	}
	return s.Kind.String()
}
