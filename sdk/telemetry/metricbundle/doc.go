// Package metricbundle agrupa los instrumentos OpenTelemetry del copiador.
//
// Todas las métricas siguen el formato echo.<entidad>.<evento>. El bundle se
// construye sobre el meter del cliente de telemetría; con métricas
// deshabilitadas el meter es noop y registrar no tiene efecto.
//
//	metrics, err := metricbundle.NewEchoMetrics(client.Meter())
//	if err != nil {
//	    return err
//	}
//	metrics.RecordDeliverySent(ctx, semconv.Echo.DestinationID.String(id.String()))
package metricbundle
