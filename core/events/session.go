package events

const (
	// KindSessionConnecting identifies a session dial in progress.
	KindSessionConnecting Kind = "session.connecting"
	// KindSessionOpened identifies an accepted session.
	KindSessionOpened Kind = "session.opened"
	// KindSessionReset identifies a replaced session.
	KindSessionReset Kind = "session.reset"
	// KindSessionClosed identifies the end of a session.
	KindSessionClosed Kind = "session.closed"
	// KindSessionFailed identifies a connection or session error.
	KindSessionFailed Kind = "session.failed"
)

// SessionConnecting marks the start of a session dial.
type SessionConnecting struct{ Base }

// NewSessionConnecting creates a session connecting event.
func NewSessionConnecting() SessionConnecting {
	return SessionConnecting{Base: NewBase(KindSessionConnecting)}
}

// SessionOpened marks an accepted session.
type SessionOpened struct {
	Base
	SessionID string
}

// NewSessionOpened creates a session opened event.
func NewSessionOpened(sessionID string) SessionOpened {
	return SessionOpened{Base: NewBase(KindSessionOpened), SessionID: sessionID}
}

// SessionReset marks the replacement of the session.
type SessionReset struct {
	Base
	SessionID string
}

// NewSessionReset creates a session reset event.
func NewSessionReset(sessionID string) SessionReset {
	return SessionReset{Base: NewBase(KindSessionReset), SessionID: sessionID}
}

// SessionClosed marks the end of a session.
type SessionClosed struct {
	Base
	SessionID string
	Reason    string
}

// NewSessionClosed creates a session closed event.
func NewSessionClosed(sessionID, reason string) SessionClosed {
	return SessionClosed{Base: NewBase(KindSessionClosed), SessionID: sessionID, Reason: reason}
}

// SessionFailed carries a connection or session error.
type SessionFailed struct {
	Base
	SessionID string
	Err       error
}

// NewSessionFailed creates a session failed event.
func NewSessionFailed(sessionID string, err error) SessionFailed {
	return SessionFailed{Base: NewBase(KindSessionFailed), SessionID: sessionID, Err: err}
}
