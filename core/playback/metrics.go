package playback

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	scheduled     metric.Int64Counter
	interruptions metric.Int64Counter
	active        metric.Int64UpDownCounter
	chunkDuration metric.Float64Histogram
}

func newInstruments(m metric.Meter) instruments {
	// Instrument creation only fails on invalid names; the no-op fallbacks
	// returned alongside the error are still usable.
	scheduled, err := m.Int64Counter("playback.chunks.scheduled",
		metric.WithDescription("Audio chunks placed on the playback timeline."))
	logInstrumentErr(err)
	interruptions, err := m.Int64Counter("playback.interruptions",
		metric.WithDescription("Interruptions that flushed the playback timeline."))
	logInstrumentErr(err)
	active, err := m.Int64UpDownCounter("playback.sources.active",
		metric.WithDescription("Buffer sources currently scheduled or playing."))
	logInstrumentErr(err)
	chunkDuration, err := m.Float64Histogram("playback.chunk.duration",
		metric.WithDescription("Duration of scheduled audio chunks."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.02, 0.04, 0.08, 0.16, 0.32, 0.64, 1.28))
	logInstrumentErr(err)

	return instruments{
		scheduled:     scheduled,
		interruptions: interruptions,
		active:        active,
		chunkDuration: chunkDuration,
	}
}

func logInstrumentErr(err error) {
	if err != nil {
		logger.Warn("failed to create playback instrument", "error", err)
	}
}

func (i instruments) recordScheduled(ctx context.Context, duration float64) {
	i.scheduled.Add(ctx, 1)
	i.active.Add(ctx, 1)
	i.chunkDuration.Record(ctx, duration)
}

func (i instruments) recordRemoved(ctx context.Context, n int) {
	if n > 0 {
		i.active.Add(ctx, -int64(n))
	}
}
