package session

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	connects      metric.Int64Counter
	resets        metric.Int64Counter
	chunksDropped metric.Int64Counter
}

func newInstruments(m metric.Meter) instruments {
	connects, err := m.Int64Counter("session.connects",
		metric.WithDescription("Live session connection attempts."))
	logInstrumentErr(err)
	resets, err := m.Int64Counter("session.resets",
		metric.WithDescription("Live session resets."))
	logInstrumentErr(err)
	dropped, err := m.Int64Counter("playback.chunks.dropped",
		metric.WithDescription("Inbound audio chunks that could not be decoded or scheduled."))
	logInstrumentErr(err)

	return instruments{connects: connects, resets: resets, chunksDropped: dropped}
}

func logInstrumentErr(err error) {
	if err != nil {
		logger.Warn("failed to create session instrument", "error", err)
	}
}

func (i instruments) connected(ctx context.Context, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	i.connects.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (i instruments) droppedChunk(ctx context.Context, reason string) {
	i.chunksDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
