package controller

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
)

type turnMetrics struct {
	duration metric.Float64Histogram
	turns    metric.Int64Counter
}

func newTurnMetrics(meter metric.Meter, logger *slog.Logger) turnMetrics {
	fallback := noop.NewMeterProvider().Meter("consultchat")

	duration, err := meter.Float64Histogram(
		"chat.turn.duration",
		metric.WithDescription("Time from submission to the end of a successful reply"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		logger.Warn("failed to create histogram", "name", "chat.turn.duration", "error", err)
		duration, _ = fallback.Float64Histogram("chat.turn.duration")
	}

	turns, err := meter.Int64Counter(
		"chat.turns",
		metric.WithDescription("Turns by outcome"),
	)
	if err != nil {
		logger.Warn("failed to create counter", "name", "chat.turns", "error", err)
		turns, _ = fallback.Int64Counter("chat.turns")
	}

	return turnMetrics{duration: duration, turns: turns}
}

func (m turnMetrics) record(ctx context.Context, outcome string, elapsedMs int64) {
	m.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if outcome == outcomeCompleted {
		m.duration.Record(ctx, float64(elapsedMs))
	}
}
