package events

import (
	"errors"
	"testing"

	"github.com/koscakluka/ema-live/core/chat"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "session connecting", event: NewSessionConnecting(), expected: KindSessionConnecting},
		{name: "session opened", event: NewSessionOpened("a"), expected: KindSessionOpened},
		{name: "session reset", event: NewSessionReset("a"), expected: KindSessionReset},
		{name: "session closed", event: NewSessionClosed("a", "bye"), expected: KindSessionClosed},
		{name: "session failed", event: NewSessionFailed("a", errors.New("x")), expected: KindSessionFailed},
		{name: "capture started", event: NewCaptureStarted(), expected: KindCaptureStarted},
		{name: "capture stopped", event: NewCaptureStopped(), expected: KindCaptureStopped},
		{name: "capture failed", event: NewCaptureFailed(errors.New("x")), expected: KindCaptureFailed},
		{name: "playback interrupted", event: NewPlaybackInterrupted(), expected: KindPlaybackInterrupted},
		{name: "playback turn complete", event: NewPlaybackTurnComplete(), expected: KindPlaybackTurnComplete},
		{name: "chat message updated", event: NewChatMessageUpdated(chat.Chunk{Text: "hi"}), expected: KindChatMessageUpdated},
		{name: "chat message final", event: NewChatMessageFinal(chat.Message{Text: "hi"}), expected: KindChatMessageFinal},
		{name: "status updated", event: NewStatusUpdated("Opened"), expected: KindStatusUpdated},
		{name: "error updated", event: NewErrorUpdated("boom"), expected: KindStatusUpdated},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if testCase.event.Timestamp().IsZero() {
				t.Fatalf("expected timestamp to be set")
			}
			if testCase.event.ID() == "" {
				t.Fatalf("expected id to be set")
			}
		})
	}
}

func TestEventIDsAreUnique(t *testing.T) {
	first := NewCaptureStarted()
	second := NewCaptureStarted()

	if first.ID() == second.ID() {
		t.Fatalf("expected distinct ids, got %q twice", first.ID())
	}
}

func TestStatusAndErrorAreExclusive(t *testing.T) {
	status := NewStatusUpdated("Opened")
	failure := NewErrorUpdated("boom")

	if status.Error != "" {
		t.Fatalf("expected status event without error, got %q", status.Error)
	}
	if failure.Status != "" {
		t.Fatalf("expected error event without status, got %q", failure.Status)
	}
}
