package audio

import "testing"

func TestFramerEmitsFixedSizeFrames(t *testing.T) {
	var frames [][]float32
	f := NewFramer(4, func(frame []float32) {
		frames = append(frames, append([]float32(nil), frame...))
	})

	f.Write([]float32{1, 2, 3})
	if len(frames) != 0 {
		t.Fatalf("expected no frame before four samples, got %d", len(frames))
	}

	f.Write([]float32{4, 5, 6, 7, 8, 9, 10})
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0][0] != 1 || frames[0][3] != 4 || frames[1][0] != 5 || frames[1][3] != 8 {
		t.Fatalf("expected frames [1..4] and [5..8], got %v", frames)
	}

	f.Reset()
	f.Write([]float32{11, 12, 13, 14})
	if len(frames) != 3 || frames[2][0] != 11 {
		t.Fatalf("expected reset to discard the partial frame, got %v", frames)
	}
}
