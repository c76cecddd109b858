// Package playback keeps the playback timeline for streamed model audio.
//
// A [Scheduler] owns the next free slot on the output clock and the set of
// buffer sources that are scheduled or playing. All of its state is mutated
// on a single control loop; public methods post commands into that loop and
// wait for them to be applied, and source completions arrive on the same loop
// as messages. This keeps chunk reservations strictly ordered and makes an
// interruption take effect before the call that signalled it returns.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-live/core/audio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var ErrClosed = errors.New("playback scheduler closed")

type State int

const (
	// StateIdle means nothing is scheduled.
	StateIdle State = iota
	// StateStreaming means at least one chunk is scheduled or playing.
	StateStreaming
	// StateInterrupted is entered while an interruption flushes the timeline.
	StateInterrupted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateInterrupted:
		return "interrupted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Reservation is the slot on the output clock a chunk was placed in.
type Reservation struct {
	ID        uint64
	StartTime float64
	EndTime   float64
}

// Timeline is a point-in-time view of the scheduler state.
type Timeline struct {
	State         State
	NextStartTime float64
	Scheduled     int
}

type Option func(*Scheduler)

// WithStateObserver registers a callback for state transitions. It runs on
// the control loop and must not call back into the scheduler.
func WithStateObserver(observer func(from, to State)) Option {
	return func(s *Scheduler) {
		if observer != nil {
			s.onStateChange = observer
		}
	}
}

// WithMeter overrides the meter used for playback metrics.
func WithMeter(m metric.Meter) Option {
	return func(s *Scheduler) { s.metrics = newInstruments(m) }
}

type Scheduler struct {
	output audio.Output

	commands chan func()
	ended    chan uint64
	done     chan struct{}
	stopped  chan struct{}

	closeOnce sync.Once

	onStateChange func(from, to State)
	metrics       instruments

	// Owned by the control loop.
	nextStartTime float64
	nextID        uint64
	sources       map[uint64]audio.Source
	state         State
}

// NewScheduler creates a scheduler placing chunks on output and starts its
// control loop.
func NewScheduler(output audio.Output, opts ...Option) *Scheduler {
	s := &Scheduler{
		output:        output,
		commands:      make(chan func()),
		ended:         make(chan uint64),
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
		onStateChange: func(State, State) {},
		sources:       map[uint64]audio.Source{},
		nextStartTime: output.CurrentTime(),
	}
	s.metrics = newInstruments(meter)
	for _, opt := range opts {
		opt(s)
	}

	go s.run()
	return s
}

func (s *Scheduler) run() {
	defer close(s.stopped)

	for {
		select {
		case cmd := <-s.commands:
			cmd()
		case id := <-s.ended:
			s.removeEnded(id)
		case <-s.done:
			s.stopAll()
			return
		}
	}
}

// do runs cmd on the control loop and waits until it has been applied.
func (s *Scheduler) do(ctx context.Context, cmd func()) error {
	applied := make(chan struct{})
	select {
	case s.commands <- func() { cmd(); close(applied) }:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-applied:
		return nil
	case <-s.stopped:
		return ErrClosed
	}
}

// OnChunkReceived places chunk right after everything already reserved, or
// at the current clock time if the timeline has run dry.
func (s *Scheduler) OnChunkReceived(ctx context.Context, chunk audio.Chunk) (Reservation, error) {
	var (
		reservation Reservation
		scheduleErr error
	)
	if err := s.do(ctx, func() { reservation, scheduleErr = s.schedule(ctx, chunk) }); err != nil {
		return Reservation{}, err
	}
	return reservation, scheduleErr
}

func (s *Scheduler) schedule(ctx context.Context, chunk audio.Chunk) (Reservation, error) {
	start := max(s.nextStartTime, s.output.CurrentTime())

	s.nextID++
	id := s.nextID
	src, err := s.output.Schedule(chunk, start, func() { s.notifyEnded(id) })
	if err != nil {
		return Reservation{}, fmt.Errorf("failed to schedule chunk: %w", err)
	}

	// The output may have started the source later than asked.
	start = max(start, src.StartTime())
	duration := chunk.Duration()
	s.nextStartTime = start + duration
	s.sources[id] = src
	s.setState(StateStreaming)
	s.metrics.recordScheduled(ctx, duration)

	return Reservation{ID: id, StartTime: start, EndTime: s.nextStartTime}, nil
}

// notifyEnded delivers a natural completion into the control loop and returns
// once the loop has taken it. It is called by the output, never on the
// control loop itself.
func (s *Scheduler) notifyEnded(id uint64) {
	select {
	case s.ended <- id:
	case <-s.done:
	}
}

func (s *Scheduler) removeEnded(id uint64) {
	if _, ok := s.sources[id]; !ok {
		// Already flushed by an interruption that raced the completion.
		logger.Debug("ignoring completion of removed source", "source", id)
		return
	}

	delete(s.sources, id)
	s.metrics.recordRemoved(context.Background(), 1)
	if len(s.sources) == 0 {
		s.setState(StateIdle)
	}
}

// OnInterrupted stops every scheduled or playing source and rewinds the
// timeline so the next chunk starts immediately. It returns the number of
// sources that were stopped.
func (s *Scheduler) OnInterrupted(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "interrupt playback")
	defer span.End()

	var stopped int
	if err := s.do(ctx, func() {
		stopped = s.interrupt(ctx)
		s.nextStartTime = 0
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int("playback.sources.stopped", stopped))
	return stopped, nil
}

// Reset flushes the timeline like an interruption and rebases it on the
// current output clock. Used when the remote session is replaced.
func (s *Scheduler) Reset(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "reset playback")
	defer span.End()

	var stopped int
	if err := s.do(ctx, func() {
		stopped = s.interrupt(ctx)
		s.nextStartTime = s.output.CurrentTime()
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(attribute.Int("playback.sources.stopped", stopped))
	return nil
}

func (s *Scheduler) interrupt(ctx context.Context) int {
	s.setState(StateInterrupted)
	stopped := s.stopAll()
	s.metrics.interruptions.Add(ctx, 1)
	s.setState(StateIdle)
	return stopped
}

func (s *Scheduler) stopAll() int {
	stopped := len(s.sources)
	for id, src := range s.sources {
		src.Stop()
		delete(s.sources, id)
	}
	s.metrics.recordRemoved(context.Background(), stopped)
	return stopped
}

func (s *Scheduler) setState(state State) {
	if s.state == state {
		return
	}
	from := s.state
	s.state = state
	s.onStateChange(from, state)
}

// Snapshot returns the current timeline. A closed scheduler reports an
// empty idle timeline.
func (s *Scheduler) Snapshot() Timeline {
	var timeline Timeline
	if err := s.do(context.Background(), func() {
		timeline = Timeline{State: s.state, NextStartTime: s.nextStartTime, Scheduled: len(s.sources)}
	}); err != nil {
		return Timeline{State: StateIdle}
	}
	return timeline
}

// Close stops every source and terminates the control loop. Idempotent.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	<-s.stopped
}
