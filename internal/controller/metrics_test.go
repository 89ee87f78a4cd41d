package controller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"ConsultChat/internal/session"
)

func TestTurnMetricsAndSpans(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	h := newHarness(t, nil, WithMeter(mp.Meter("test")), WithTracer(tp.Tracer("test")))
	h.c.Load()

	_, err := h.c.Submit(context.Background(), "first")
	require.NoError(t, err)
	h.clock.Advance(1500 * time.Millisecond)
	h.tr.last().complete()
	h.waitStatus(t, session.StatusReady)

	_, err = h.c.Submit(context.Background(), "second")
	require.NoError(t, err)
	require.NoError(t, h.c.Cancel())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	var durations []float64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				require.Equal(t, "chat.turns", m.Name)
				for _, dp := range data.DataPoints {
					outcome, _ := dp.Attributes.Value("outcome")
					counts[outcome.AsString()] = dp.Value
				}
			case metricdata.Histogram[float64]:
				require.Equal(t, "chat.turn.duration", m.Name)
				for _, dp := range data.DataPoints {
					durations = append(durations, dp.Sum)
				}
			}
		}
	}
	require.Equal(t, map[string]int64{outcomeCompleted: 1, outcomeCancelled: 1}, counts)
	require.Equal(t, []float64{1500}, durations)

	ended := spans.Ended()
	require.Len(t, ended, 2)
	for _, s := range ended {
		require.Equal(t, "chat.turn", s.Name())
	}
}
