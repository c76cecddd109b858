package events

const (
	// KindPlaybackInterrupted identifies a flushed playback timeline.
	KindPlaybackInterrupted Kind = "playback.interrupted"
	// KindPlaybackTurnComplete identifies the end of a model turn.
	KindPlaybackTurnComplete Kind = "playback.turn_complete"
)

// PlaybackInterrupted marks a barge-in that flushed scheduled audio.
type PlaybackInterrupted struct{ Base }

// NewPlaybackInterrupted creates a playback interrupted event.
func NewPlaybackInterrupted() PlaybackInterrupted {
	return PlaybackInterrupted{Base: NewBase(KindPlaybackInterrupted)}
}

// PlaybackTurnComplete marks the end of the model's spoken turn.
type PlaybackTurnComplete struct{ Base }

// NewPlaybackTurnComplete creates a playback turn complete event.
func NewPlaybackTurnComplete() PlaybackTurnComplete {
	return PlaybackTurnComplete{Base: NewBase(KindPlaybackTurnComplete)}
}
