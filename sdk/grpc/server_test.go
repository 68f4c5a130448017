package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/xKoRx/echo/sdk/telemetry"
)

func TestServerHealthCheck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tel, err := telemetry.New(ctx, "grpc-test", "test",
		telemetry.WithLogsDisabled(), telemetry.WithMetricsDisabled(), telemetry.WithTracesDisabled())
	require.NoError(t, err)

	cfg := DefaultServerConfig(0)
	cfg.Address = "127.0.0.1"
	cfg.ShutdownGracePeriod = 2 * time.Second
	seen := make(chan string, 8)
	cfg.UnaryInterceptors = []grpc.UnaryServerInterceptor{
		TracingUnaryServerInterceptor(),
		LoggingUnaryServerInterceptor(tel),
		func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
			seen <- getTraceIDFromContext(ctx)
			return handler(ctx, req)
		},
	}
	server, err := NewServer(cfg)
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- server.Serve(ctx) }()

	clientCfg := DefaultClientConfig(server.Address())
	clientCfg.UnaryInterceptors = []grpc.UnaryClientInterceptor{
		TracingUnaryClientInterceptor(),
		LoggingUnaryClientInterceptor(tel),
	}
	client, err := NewClient(clientCfg)
	require.NoError(t, err)
	defer client.Close()

	callCtx, callCancel := context.WithTimeout(ctx, 5*time.Second)
	defer callCancel()

	server.SetServingStatus("echo.Copier", true)
	ok, err := client.CheckHealth(SetTraceID(callCtx, "trace-123"), "echo.Copier")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "trace-123", <-seen, "trace_id travels as metadata")

	server.SetServingStatus("echo.Copier", false)
	ok, err = client.CheckHealth(callCtx, "echo.Copier")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, <-seen)

	_, err = client.CheckHealth(callCtx, "unknown.Service")
	assert.Error(t, err)

	cancel()
	select {
	case <-served:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestTraceIDHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, getTraceIDFromContext(ctx))

	ctx, id := GetOrGenerateTraceID(ctx)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, getTraceIDFromContext(ctx))

	ctx2, id2 := GetOrGenerateTraceID(ctx)
	assert.Equal(t, id, id2)
	assert.Equal(t, ctx, ctx2)
}
