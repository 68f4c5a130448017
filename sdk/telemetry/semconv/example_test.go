package semconv_test

import (
	"fmt"

	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"go.opentelemetry.io/otel/attribute"
)

// ExampleEcho muestra los atributos de un despacho
func ExampleEcho() {
	attrs := []attribute.KeyValue{
		semconv.Echo.Symbol.String("XAUUSD"),
		semconv.Echo.MessageKind.String(semconv.MessageKindTrade),
		semconv.Echo.Recipients.Int(3),
	}
	for _, attr := range attrs {
		fmt.Printf("%s: %s\n", attr.Key, attr.Value.Emit())
	}
	// Output:
	// echo.symbol: XAUUSD
	// echo.message_kind: trade
	// echo.recipients: 3
}
