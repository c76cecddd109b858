package capture

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type dropReason string

const (
	dropInactive     dropReason = "inactive"
	dropNotConnected dropReason = "not_connected"
)

type instruments struct {
	framesSent    metric.Int64Counter
	framesDropped metric.Int64Counter
}

func newInstruments(m metric.Meter) instruments {
	sent, err := m.Int64Counter("capture.frames.sent",
		metric.WithDescription("Microphone frames delivered to the live session."))
	if err != nil {
		logger.Warn("failed to create capture instrument", "error", err)
	}
	dropped, err := m.Int64Counter("capture.frames.dropped",
		metric.WithDescription("Microphone frames discarded before reaching the live session."))
	if err != nil {
		logger.Warn("failed to create capture instrument", "error", err)
	}
	return instruments{framesSent: sent, framesDropped: dropped}
}

func (i instruments) sent(ctx context.Context) {
	i.framesSent.Add(ctx, 1)
}

func (i instruments) dropped(ctx context.Context, reason dropReason) {
	i.framesDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(reason))))
}
