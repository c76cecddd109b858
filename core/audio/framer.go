package audio

// Framer regroups arbitrarily sized device buffers into fixed-size frames.
// It is not safe for concurrent use; it lives on a single device thread.
type Framer struct {
	frame   []float32
	filled  int
	onFrame func([]float32)
}

func NewFramer(frameSize int, onFrame func(frame []float32)) *Framer {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	return &Framer{frame: make([]float32, frameSize), onFrame: onFrame}
}

// Write appends samples and emits every frame completed by them. The slice
// passed to onFrame is reused for the next frame.
func (f *Framer) Write(samples []float32) {
	for len(samples) > 0 {
		n := copy(f.frame[f.filled:], samples)
		f.filled += n
		samples = samples[n:]

		if f.filled == len(f.frame) {
			f.onFrame(f.frame)
			f.filled = 0
		}
	}
}

// Reset discards a partially filled frame.
func (f *Framer) Reset() { f.filled = 0 }
