// Package telemetry proporciona observabilidad para el copiador mediante los tres pilares:
//
// 1. Logs: registro estructurado JSON (log/slog)
// 2. Métricas: OpenTelemetry exportables vía OTLP
// 3. Trazas: trazado distribuido con OpenTelemetry
//
// Uso básico:
//
//	client, err := telemetry.New(ctx, "echo-core", "production")
//	if err != nil {
//	    return err
//	}
//	defer client.Shutdown(ctx)
//
//	ctx = telemetry.AppendCommonAttrs(ctx, semconv.Echo.Component.String("router"))
//	client.Info(ctx, "Trade dispatched")
//
// Los atributos agregados al contexto con AppendCommonAttrs y AppendEventAttrs
// se incluyen en cada log emitido con ese contexto.
package telemetry
