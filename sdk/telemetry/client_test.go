package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestLogsIncludeContextAttributes(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	client, err := New(ctx, "echo-test", "test",
		WithLogWriter(&buf),
		WithMetricsDisabled(),
		WithTracesDisabled(),
	)
	require.NoError(t, err)

	ctx = AppendCommonAttrs(ctx, attribute.String("component", "router"))
	ctx = AppendEventAttrs(ctx, attribute.Int("recipients", 2))
	client.Error(ctx, "Delivery failed", errors.New("boom"), attribute.String("symbol", "EURUSD"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Delivery failed", entry["msg"])
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "router", entry["component"])
	assert.Equal(t, float64(2), entry["recipients"])
	assert.Equal(t, "EURUSD", entry["symbol"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "echo-test", entry["service"])
}

func TestLogLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	client, err := New(context.Background(), "echo-test", "test",
		WithLogWriter(&buf), WithLogLevel("warn"),
		WithMetricsDisabled(), WithTracesDisabled(),
	)
	require.NoError(t, err)

	client.Debug(context.Background(), "hidden")
	client.Info(context.Background(), "hidden too")
	assert.Empty(t, buf.String())

	client.Warn(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestDisabledClientIsSafe(t *testing.T) {
	ctx := context.Background()
	client, err := New(ctx, "echo-test", "test", WithLogsDisabled(), WithMetricsDisabled(), WithTracesDisabled())
	require.NoError(t, err)

	client.Info(ctx, "nothing")
	client.RecordError(ctx, errors.New("ignored"))
	ctx, span := client.StartSpan(ctx, "noop")
	span.End()
	assert.NotNil(t, client.Meter())
	assert.NoError(t, client.Shutdown(ctx))
}

func TestMeterExportsToMetricReader(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	client, err := New(ctx, "echo-test", "test",
		WithLogsDisabled(), WithTracesDisabled(), WithMetricReader(reader))
	require.NoError(t, err)
	defer func() { _ = client.Shutdown(ctx) }()

	counter, err := client.Meter().Int64Counter("echo.test.counter")
	require.NoError(t, err)
	counter.Add(ctx, 2)
	counter.Add(ctx, 3)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	sum := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(5), sum.DataPoints[0].Value)
}
