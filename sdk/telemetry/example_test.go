package telemetry_test

import (
	"context"
	"fmt"

	"github.com/xKoRx/echo/sdk/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ExampleNew demuestra cómo crear y usar el cliente de telemetría
func ExampleNew() {
	ctx := context.Background()

	client, err := telemetry.New(ctx, "echo-example", "development",
		telemetry.WithVersion("0.0.1"),
		telemetry.WithLogLevel("ERROR"),
		telemetry.WithMetricsDisabled(),
		telemetry.WithTracesDisabled(),
	)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = client.Shutdown(ctx)
	}()

	ctx = telemetry.AppendCommonAttrs(ctx,
		attribute.String("component", "router"),
	)

	client.Info(ctx, "Dispatching trade",
		attribute.String("symbol", "XAUUSD"),
	)

	ctx, span := client.StartSpan(ctx, "dispatch_trade")
	defer span.End()

	client.SetSpanAttributes(ctx, attribute.Int("deliveries", 1))

	fmt.Println("Telemetry example completed")
	// Output: Telemetry example completed
}
