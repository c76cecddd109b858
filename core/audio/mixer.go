package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
)

var ErrSampleRateMismatch = errors.New("chunk sample rate does not match output")

// Source is a scheduled buffer source. Stop is idempotent and never fires
// the source's completion callback.
type Source interface {
	Stop()
	// StartTime is the clock time the source actually starts at. It may be
	// later than requested if the clock moved past it before scheduling.
	StartTime() float64
}

// Output is the playback half of the audio graph: a clock and a way to
// schedule buffers against it.
type Output interface {
	// CurrentTime is the output clock in seconds.
	CurrentTime() float64
	// Schedule starts chunk at clock time at. onEnded is called once, off the
	// render thread, when the chunk finishes playing on its own.
	Schedule(chunk Chunk, at float64, onEnded func()) (Source, error)
}

var _ Output = (*Mixer)(nil)

// Mixer sums scheduled buffer sources into a mono output stream. Render is
// driven by the output device's realtime thread; its frame counter is the
// audio clock.
type Mixer struct {
	sampleRate int
	gain       *Gain

	// position is the number of frames rendered so far.
	position atomic.Int64

	mu      sync.Mutex
	sources []*bufferSource
	// completed holds onEnded callbacks waiting for the completion worker.
	completed []func()

	wake      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func NewMixer(sampleRate int, gain *Gain) *Mixer {
	if gain == nil {
		gain = NewGain(1)
	}
	m := &Mixer{
		sampleRate: sampleRate,
		gain:       gain,
		wake:       make(chan struct{}, 1),
		closed:     make(chan struct{}),
	}
	go m.runCompletions()
	return m
}

// Close stops the completion worker. Callbacks of sources that finish after
// Close are never called.
func (m *Mixer) Close() {
	m.closeOnce.Do(func() { close(m.closed) })
}

// runCompletions calls onEnded callbacks in completion order, off the render
// thread.
func (m *Mixer) runCompletions() {
	var batch []func()
	for {
		select {
		case <-m.closed:
			return
		case <-m.wake:
		}
		select {
		case <-m.closed:
			return
		default:
		}

		m.mu.Lock()
		batch, m.completed = m.completed, batch[:0]
		m.mu.Unlock()

		for i, onEnded := range batch {
			onEnded()
			batch[i] = nil
		}
	}
}

func (m *Mixer) SampleRate() int { return m.sampleRate }

// Gain returns the output gain node shared with external consumers.
func (m *Mixer) Gain() *Gain { return m.gain }

func (m *Mixer) CurrentTime() float64 {
	return float64(m.position.Load()) / float64(m.sampleRate)
}

// Active returns the number of sources that are scheduled or playing.
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sources)
}

func (m *Mixer) Schedule(chunk Chunk, at float64, onEnded func()) (Source, error) {
	if chunk.SampleRate != m.sampleRate {
		return nil, fmt.Errorf("%w: got %d Hz, want %d Hz", ErrSampleRateMismatch, chunk.SampleRate, m.sampleRate)
	}
	if onEnded == nil {
		onEnded = func() {}
	}

	src := &bufferSource{
		mixer:   m,
		samples: downmix(chunk),
		start:   int64(math.Round(at * float64(m.sampleRate))),
		onEnded: onEnded,
	}

	m.mu.Lock()
	if now := m.position.Load(); src.start < now {
		src.start = now
	}
	m.sources = append(m.sources, src)
	m.mu.Unlock()

	return src, nil
}

// Render fills out with the next len(out) frames and advances the clock.
func (m *Mixer) Render(out []float32) {
	clear(out)

	m.mu.Lock()
	windowStart := m.position.Load()
	windowEnd := windowStart + int64(len(out))

	pending := len(m.completed)
	m.sources = slices.DeleteFunc(m.sources, func(src *bufferSource) bool {
		src.mixInto(out, windowStart, windowEnd)
		if src.end() <= windowEnd {
			src.finished = true
			m.completed = append(m.completed, src.onEnded)
			return true
		}
		return false
	})
	ended := len(m.completed) > pending
	m.position.Store(windowEnd)
	m.mu.Unlock()

	m.gain.Process(out)

	if ended {
		select {
		case m.wake <- struct{}{}:
		default:
		}
	}
}

// RenderBytes renders little-endian float32 frames straight into a device
// buffer.
func (m *Mixer) RenderBytes(out []byte, scratch []float32) []float32 {
	frames := len(out) / 4
	if cap(scratch) < frames {
		scratch = make([]float32, frames)
	}
	scratch = scratch[:frames]
	m.Render(scratch)
	Float32ToBytes(out, scratch)
	return scratch
}

func (m *Mixer) stop(src *bufferSource) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if src.finished {
		return
	}
	src.finished = true
	m.sources = slices.DeleteFunc(m.sources, func(s *bufferSource) bool { return s == src })
}

type bufferSource struct {
	mixer   *Mixer
	samples []float32
	start   int64
	onEnded func()

	// finished is guarded by mixer.mu.
	finished bool
}

func (s *bufferSource) Stop() { s.mixer.stop(s) }

func (s *bufferSource) StartTime() float64 {
	return float64(s.start) / float64(s.mixer.sampleRate)
}

func (s *bufferSource) end() int64 { return s.start + int64(len(s.samples)) }

func (s *bufferSource) mixInto(out []float32, windowStart, windowEnd int64) {
	from := max(s.start, windowStart)
	to := min(s.end(), windowEnd)
	for pos := from; pos < to; pos++ {
		out[pos-windowStart] += s.samples[pos-s.start]
	}
}

func downmix(chunk Chunk) []float32 {
	if chunk.Channels <= 1 {
		return chunk.Samples
	}

	frames := chunk.Frames()
	out := make([]float32, frames)
	for i := range out {
		var sum float32
		for ch := range chunk.Channels {
			sum += chunk.Samples[i*chunk.Channels+ch]
		}
		out[i] = sum / float32(chunk.Channels)
	}
	return out
}

// Float32ToBytes writes samples as little-endian float32 into dst.
func Float32ToBytes(dst []byte, samples []float32) {
	for i, s := range samples {
		if (i+1)*4 > len(dst) {
			return
		}
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(s))
	}
}

// BytesToFloat32 reads little-endian float32 samples from src into dst and
// returns the filled prefix of dst.
func BytesToFloat32(dst []float32, src []byte) []float32 {
	n := len(src) / 4
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return dst
}
