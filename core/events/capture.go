package events

const (
	// KindCaptureStarted identifies an opened microphone.
	KindCaptureStarted Kind = "capture.started"
	// KindCaptureStopped identifies a released microphone.
	KindCaptureStopped Kind = "capture.stopped"
	// KindCaptureFailed identifies a capture failure.
	KindCaptureFailed Kind = "capture.failed"
)

// CaptureStarted marks the start of microphone streaming.
type CaptureStarted struct{ Base }

// NewCaptureStarted creates a capture started event.
func NewCaptureStarted() CaptureStarted {
	return CaptureStarted{Base: NewBase(KindCaptureStarted)}
}

// CaptureStopped marks the release of the microphone.
type CaptureStopped struct{ Base }

// NewCaptureStopped creates a capture stopped event.
func NewCaptureStopped() CaptureStopped {
	return CaptureStopped{Base: NewBase(KindCaptureStopped)}
}

// CaptureFailed carries the error that prevented or ended capture.
type CaptureFailed struct {
	Base
	Err error
}

// NewCaptureFailed creates a capture failed event.
func NewCaptureFailed(err error) CaptureFailed {
	return CaptureFailed{Base: NewBase(KindCaptureFailed), Err: err}
}
