// Package semconv define convenciones semánticas para atributos OpenTelemetry
// utilizados en logs, métricas y trazas del copiador.
//
// Uso básico:
//
//	attrs := []attribute.KeyValue{
//	    semconv.Echo.Component.String(semconv.ComponentRouter),
//	    semconv.Echo.TerminalID.String(id.String()),
//	    semconv.Echo.Status.String(semconv.StatusOK),
//	}
package semconv
