package events

// KindStatusUpdated identifies a change of the user-facing status line.
const KindStatusUpdated Kind = "status.updated"

// StatusUpdated carries either a status or an error message, never both.
type StatusUpdated struct {
	Base
	Status string
	Error  string
}

// NewStatusUpdated creates a status event.
func NewStatusUpdated(status string) StatusUpdated {
	return StatusUpdated{Base: NewBase(KindStatusUpdated), Status: status}
}

// NewErrorUpdated creates a status event carrying an error message.
func NewErrorUpdated(message string) StatusUpdated {
	return StatusUpdated{Base: NewBase(KindStatusUpdated), Error: message}
}
