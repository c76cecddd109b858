package audio

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func constantChunk(value float32, frames, sampleRate int) Chunk {
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = value
	}
	return Chunk{Samples: samples, SampleRate: sampleRate, Channels: 1}
}

func TestMixerClockAdvancesWithRenderedFrames(t *testing.T) {
	m := NewMixer(10, nil)

	if got := m.CurrentTime(); got != 0 {
		t.Fatalf("expected clock to start at 0, got %f", got)
	}

	m.Render(make([]float32, 5))
	m.Render(make([]float32, 10))

	if got := m.CurrentTime(); got != 1.5 {
		t.Fatalf("expected clock at 1.5s, got %f", got)
	}
}

func TestMixerPlaysScheduledSourcesBackToBack(t *testing.T) {
	m := NewMixer(10, nil)

	if _, err := m.Schedule(constantChunk(0.25, 3, 10), 0.2, nil); err != nil {
		t.Fatalf("expected schedule to succeed, got %v", err)
	}
	if _, err := m.Schedule(constantChunk(0.5, 2, 10), 0.5, nil); err != nil {
		t.Fatalf("expected schedule to succeed, got %v", err)
	}

	out := make([]float32, 8)
	m.Render(out)

	want := []float32{0, 0, 0.25, 0.25, 0.25, 0.5, 0.5, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected frame %d to be %f, got %f (output %v)", i, want[i], out[i], out)
		}
	}
	if got := m.Active(); got != 0 {
		t.Fatalf("expected both sources to be finished, got %d active", got)
	}
}

func TestMixerFiresEndedOnceOnNaturalCompletion(t *testing.T) {
	m := NewMixer(10, nil)

	var ended atomic.Int32
	done := make(chan struct{})
	if _, err := m.Schedule(constantChunk(1, 4, 10), 0, func() {
		ended.Add(1)
		close(done)
	}); err != nil {
		t.Fatalf("expected schedule to succeed, got %v", err)
	}

	m.Render(make([]float32, 2))
	if got := m.Active(); got != 1 {
		t.Fatalf("expected source to still be playing, got %d active", got)
	}
	m.Render(make([]float32, 2))
	m.Render(make([]float32, 2))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for ended callback")
	}
	if got := ended.Load(); got != 1 {
		t.Fatalf("expected ended to fire once, got %d", got)
	}
}

func TestMixerStopSilencesSourceWithoutEndedCallback(t *testing.T) {
	m := NewMixer(10, nil)

	var ended atomic.Int32
	src, err := m.Schedule(constantChunk(1, 10, 10), 0, func() { ended.Add(1) })
	if err != nil {
		t.Fatalf("expected schedule to succeed, got %v", err)
	}

	m.Render(make([]float32, 2))
	src.Stop()
	src.Stop()

	out := make([]float32, 10)
	m.Render(out)
	for i, s := range out {
		if s != 0 {
			t.Fatalf("expected silence after stop, got %f at frame %d", s, i)
		}
	}

	time.Sleep(20 * time.Millisecond)
	if got := ended.Load(); got != 0 {
		t.Fatalf("expected stop not to fire ended, got %d calls", got)
	}
}

func TestMixerSchedulesPastStartAtCurrentPosition(t *testing.T) {
	m := NewMixer(10, nil)
	m.Render(make([]float32, 10))

	src, err := m.Schedule(constantChunk(1, 1, 10), 0, nil)
	if err != nil {
		t.Fatalf("expected schedule to succeed, got %v", err)
	}
	if got := src.StartTime(); got != 1 {
		t.Fatalf("expected late source to report start 1s, got %f", got)
	}

	out := make([]float32, 2)
	m.Render(out)
	if out[0] != 1 || out[1] != 0 {
		t.Fatalf("expected late source to start immediately, got %v", out)
	}
}

func TestMixerCompletionsRunInOrderWithoutPerRenderAllocations(t *testing.T) {
	const sources = 101
	m := NewMixer(10, nil)
	t.Cleanup(m.Close)

	order := make(chan int, sources)
	for i := range sources {
		if _, err := m.Schedule(constantChunk(1, 1, 10), float64(i)/10, func() { order <- i }); err != nil {
			t.Fatalf("expected schedule to succeed, got %v", err)
		}
	}

	out := make([]float32, 1)
	allocs := testing.AllocsPerRun(sources-1, func() { m.Render(out) })
	if allocs >= 1 {
		t.Fatalf("expected render to reuse its completion buffer, got %.2f allocations per render", allocs)
	}

	for want := range sources {
		select {
		case got := <-order:
			if got != want {
				t.Fatalf("expected completion %d, got %d", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for completion %d", want)
		}
	}
	select {
	case got := <-order:
		t.Fatalf("expected every completion exactly once, got extra %d", got)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestMixerCloseStopsCompletions(t *testing.T) {
	m := NewMixer(10, nil)

	var ended atomic.Int32
	if _, err := m.Schedule(constantChunk(1, 1, 10), 0, func() { ended.Add(1) }); err != nil {
		t.Fatalf("expected schedule to succeed, got %v", err)
	}
	m.Close()
	m.Close()
	m.Render(make([]float32, 2))

	time.Sleep(20 * time.Millisecond)
	if got := ended.Load(); got != 0 {
		t.Fatalf("expected no completions after close, got %d", got)
	}
}

func TestMixerRejectsMismatchedSampleRate(t *testing.T) {
	m := NewMixer(PlaybackSampleRate, nil)

	if _, err := m.Schedule(constantChunk(1, 1, CaptureSampleRate), 0, nil); !errors.Is(err, ErrSampleRateMismatch) {
		t.Fatalf("expected ErrSampleRateMismatch, got %v", err)
	}
}

func TestMixerAppliesOutputGainAndRecordsLevel(t *testing.T) {
	gain := NewGain(0.5)
	m := NewMixer(10, gain)

	if _, err := m.Schedule(constantChunk(1, 4, 10), 0, nil); err != nil {
		t.Fatalf("expected schedule to succeed, got %v", err)
	}

	out := make([]float32, 4)
	m.Render(out)

	if out[0] != 0.5 {
		t.Fatalf("expected gain to halve output, got %f", out[0])
	}
	if got := gain.Level(); got != 0.5 {
		t.Fatalf("expected level 0.5, got %f", got)
	}
}

func TestMixerRenderBytesRoundTrips(t *testing.T) {
	m := NewMixer(10, nil)
	if _, err := m.Schedule(constantChunk(0.75, 2, 10), 0, nil); err != nil {
		t.Fatalf("expected schedule to succeed, got %v", err)
	}

	out := make([]byte, 3*4)
	m.RenderBytes(out, nil)

	samples := BytesToFloat32(nil, out)
	if len(samples) != 3 || samples[0] != 0.75 || samples[1] != 0.75 || samples[2] != 0 {
		t.Fatalf("expected [0.75 0.75 0], got %v", samples)
	}
}
