package metricbundle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is %T", m.Name, m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestEchoMetricsRecord(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	metrics, err := NewEchoMetrics(provider.Meter("test"))
	require.NoError(t, err)

	metrics.RecordMessageReceived(ctx, "trade")
	metrics.RecordMessageReceived(ctx, "register")
	metrics.RecordDispatchDropped(ctx, "filtered")
	metrics.RecordDeliverySent(ctx)
	metrics.RecordDeliverySent(ctx)
	metrics.RecordDeliverySent(ctx)
	metrics.SessionOpened(ctx)
	metrics.SessionOpened(ctx)
	metrics.SessionClosed(ctx)
	metrics.RecordDispatchLatency(ctx, 2.5)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["echo.message.received"]))
	assert.Equal(t, int64(1), sumOf(t, got["echo.dispatch.dropped"]))
	assert.Equal(t, int64(3), sumOf(t, got["echo.delivery.sent"]))
	assert.Equal(t, int64(1), sumOf(t, got["echo.session.active"]))

	hist, ok := got["echo.latency.dispatch"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}
