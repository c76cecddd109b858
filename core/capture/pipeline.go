// Package capture streams microphone frames to a live session.
//
// The device delivers fixed-size frames on its own realtime thread. Frames
// are copied, passed through the input gain and appended to an unbounded
// backlog. A single sender goroutine encodes and sends them in generation
// order, so the device callback never waits on the network and a stalled
// transport delays frames without losing any.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/live"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Device is a microphone that can be opened for fixed-size frame delivery.
type Device interface {
	// Open starts delivering frames of frameSize samples to onFrame until
	// Close is called. onFrame must not retain the slice.
	Open(ctx context.Context, frameSize int, onFrame func(frame []float32)) error
	Close() error
}

type Sender interface {
	SendRealtimeInput(ctx context.Context, blob audio.Blob) error
}

type Option func(*Pipeline)

func WithFrameSize(size int) Option {
	return func(p *Pipeline) {
		if size > 0 {
			p.frameSize = size
		}
	}
}

func WithSampleRate(rate int) Option {
	return func(p *Pipeline) {
		if rate > 0 {
			p.sampleRate = rate
		}
	}
}

// WithInputGain routes captured frames through gain before encoding.
func WithInputGain(gain *audio.Gain) Option {
	return func(p *Pipeline) { p.gain = gain }
}

// WithOnError is called, off the device thread, when a send failure stops
// capture.
func WithOnError(onError func(error)) Option {
	return func(p *Pipeline) {
		if onError != nil {
			p.onError = onError
		}
	}
}

func WithMeter(m metric.Meter) Option {
	return func(p *Pipeline) { p.metrics = newInstruments(m) }
}

type Pipeline struct {
	device Device
	sender Sender

	frameSize  int
	sampleRate int
	gain       *audio.Gain
	onError    func(error)
	metrics    instruments

	mu      sync.Mutex
	current *run
}

// run is one StartCapture..StopCapture cycle.
type run struct {
	active atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	ready   *sync.Cond
	pending [][]float32
	closed  bool
}

func newRun(cancel context.CancelFunc) *run {
	r := &run{cancel: cancel, done: make(chan struct{})}
	r.ready = sync.NewCond(&r.mu)
	r.active.Store(true)
	return r
}

// push appends a frame to the backlog. It only contends with next for the
// time it takes to swap a slice header.
func (r *run) push(frame []float32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.pending = append(r.pending, frame)
	r.ready.Signal()
	return true
}

// next blocks until a frame is available or the run is closed. Frames left
// in the backlog at close are returned as the second value so they can be
// accounted for.
func (r *run) next() (frame []float32, discarded int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.pending) == 0 && !r.closed {
		r.ready.Wait()
	}
	if r.closed {
		discarded = len(r.pending)
		r.pending = nil
		return nil, discarded, false
	}
	frame = r.pending[0]
	r.pending[0] = nil
	r.pending = r.pending[1:]
	return frame, 0, true
}

func (r *run) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.ready.Broadcast()
}

func NewPipeline(device Device, sender Sender, opts ...Option) *Pipeline {
	p := &Pipeline{
		device:     device,
		sender:     sender,
		frameSize:  audio.DefaultFrameSize,
		sampleRate: audio.CaptureSampleRate,
		onError:    func(error) {},
	}
	p.metrics = newInstruments(meter)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) IsCapturing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// StartCapture opens the device and starts streaming. Calling it while
// already capturing is a no-op. Device failures wrap ErrPermissionDenied or
// ErrNoDevice and leave nothing open.
func (p *Pipeline) StartCapture(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "start capture")
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := newRun(cancel)

	if err := p.device.Open(runCtx, p.frameSize, func(frame []float32) { p.onFrame(runCtx, r, frame) }); err != nil {
		cancel()
		if closeErr := p.device.Close(); closeErr != nil {
			logger.Debug("failed to release device after open failure", "error", closeErr)
		}
		err = classifyDeviceError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to start capture: %w", err)
	}

	p.current = r
	go p.sendLoop(runCtx, r)

	logger.Info("capture started", "frame_size", p.frameSize, "sample_rate", p.sampleRate)
	return nil
}

// StopCapture releases the device. It is safe to call at any time, any number
// of times; release problems are logged, never returned.
func (p *Pipeline) StopCapture() error {
	p.mu.Lock()
	r := p.current
	p.mu.Unlock()

	if r != nil {
		p.stop(r)
	}
	return nil
}

// stop tears down r if it is still the current run.
func (p *Pipeline) stop(r *run) {
	p.mu.Lock()
	if p.current != r {
		p.mu.Unlock()
		return
	}
	p.current = nil
	r.active.Store(false)

	if err := p.device.Close(); err != nil {
		logger.Warn("failed to release capture device", "error", err)
	}
	p.mu.Unlock()

	r.cancel()
	r.close()
	<-r.done
	logger.Info("capture stopped")
}

// onFrame runs on the device thread and must never block.
func (p *Pipeline) onFrame(ctx context.Context, r *run, frame []float32) {
	if !r.active.Load() {
		p.metrics.dropped(ctx, dropInactive)
		return
	}

	samples := make([]float32, len(frame))
	copy(samples, frame)
	p.gain.Process(samples)

	if !r.push(samples) {
		p.metrics.dropped(ctx, dropInactive)
	}
}

func (p *Pipeline) sendLoop(ctx context.Context, r *run) {
	err := p.drain(ctx, r)
	close(r.done)

	if err == nil {
		return
	}

	logger.Error("capture stopped after send failure", "error", err)
	p.stop(r)
	p.onError(err)
}

func (p *Pipeline) drain(ctx context.Context, r *run) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("capture sender panicked: %v", recovered)
		}
	}()

	for {
		frame, discarded, ok := r.next()
		if !ok {
			for range discarded {
				p.metrics.dropped(ctx, dropInactive)
			}
			return nil
		}

		blob := audio.EncodeFrame(frame, p.sampleRate)
		if err := p.sender.SendRealtimeInput(ctx, blob); err != nil {
			switch {
			case errors.Is(err, live.ErrTransportClosed):
				// Sends fail silently until the session reconnects.
				p.metrics.dropped(ctx, dropNotConnected)
			case ctx.Err() != nil:
				return nil
			default:
				return fmt.Errorf("failed to send audio frame: %w", err)
			}
			continue
		}
		p.metrics.sent(ctx)
	}
}
