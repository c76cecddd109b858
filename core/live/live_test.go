package live

import (
	"errors"
	"testing"
)

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{SystemInstruction: "Be brief."}.WithDefaults()

	if cfg.Model != DefaultModel {
		t.Fatalf("expected model %q, got %q", DefaultModel, cfg.Model)
	}
	if cfg.VoiceName != DefaultVoice {
		t.Fatalf("expected voice %q, got %q", DefaultVoice, cfg.VoiceName)
	}
	if len(cfg.ResponseModalities) != 1 || cfg.ResponseModalities[0] != ModalityAudio {
		t.Fatalf("expected audio modality, got %v", cfg.ResponseModalities)
	}
	if cfg.SystemInstruction != "Be brief." {
		t.Fatalf("expected system instruction to be kept, got %q", cfg.SystemInstruction)
	}
}

func TestConfigWithDefaultsKeepsOverrides(t *testing.T) {
	cfg := Config{Model: "m", VoiceName: "Kore", ResponseModalities: []string{"TEXT"}}.WithDefaults()

	if cfg.Model != "m" || cfg.VoiceName != "Kore" || cfg.ResponseModalities[0] != "TEXT" {
		t.Fatalf("expected overrides to be kept, got %+v", cfg)
	}
}

func TestEventString(t *testing.T) {
	testCases := []struct {
		event    Event
		expected string
	}{
		{event: Event{Kind: EventOpened}, expected: "opened"},
		{event: Event{Kind: EventMessage, Audio: []string{"a", "b"}, Interrupted: true}, expected: "message(audio=2 interrupted=true turnComplete=false)"},
		{event: Event{Kind: EventError, Err: errors.New("boom")}, expected: "error(boom)"},
		{event: Event{Kind: EventClosed, Reason: "bye"}, expected: "closed(bye)"},
		{event: Event{Kind: EventClosed}, expected: "closed"},
	}

	for _, testCase := range testCases {
		if got := testCase.event.String(); got != testCase.expected {
			t.Fatalf("expected %q, got %q", testCase.expected, got)
		}
	}
}
