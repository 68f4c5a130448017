package metricbundle

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EchoMetrics bundle de métricas del copiador.
//
// # Métricas de Conteo
//
//   - echo.message.received: frames entrantes decodificados (kind=register/trade)
//   - echo.message.malformed: frames descartados por no decodificar
//   - echo.terminal.registered: altas y actualizaciones de terminales
//   - echo.dispatch.dropped: destinos descartados (reason=filtered/missing_rule/error)
//   - echo.delivery.sent: entregas encoladas en una sesión
//   - echo.delivery.failed: entregas que no alcanzaron al destinatario
//   - echo.route.provisioned: rutas provisionadas (result=ok/error)
//   - echo.journal.written: registros publicados en el journal (status=ok/failed)
//
// # Métricas de Estado
//
//   - echo.session.active: sesiones WebSocket abiertas
//
// # Métricas de Latencia
//
//   - echo.latency.dispatch: Execute completo de un TradeMessage (ms)
//
// # Uso
//
//	metrics, _ := metricbundle.NewEchoMetrics(telemetryClient.Meter())
//	metrics.RecordMessageReceived(ctx, semconv.MessageKindTrade)
//	metrics.RecordDispatchLatency(ctx, 1.8)
type EchoMetrics struct {
	// Counters
	MessageReceived    metric.Int64Counter
	MessageMalformed   metric.Int64Counter
	TerminalRegistered metric.Int64Counter
	DispatchDropped    metric.Int64Counter
	DeliverySent       metric.Int64Counter
	DeliveryFailed     metric.Int64Counter
	RouteProvisioned   metric.Int64Counter
	JournalWritten     metric.Int64Counter

	// UpDown
	SessionActive metric.Int64UpDownCounter

	// Histograms
	LatencyDispatch metric.Float64Histogram
}

// NewEchoMetrics crea un nuevo bundle de métricas Echo.
func NewEchoMetrics(meter metric.Meter) (*EchoMetrics, error) {
	messageReceived, err := meter.Int64Counter(
		"echo.message.received",
		metric.WithDescription("Frames entrantes decodificados"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	messageMalformed, err := meter.Int64Counter(
		"echo.message.malformed",
		metric.WithDescription("Frames descartados por no decodificar"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	terminalRegistered, err := meter.Int64Counter(
		"echo.terminal.registered",
		metric.WithDescription("Altas y actualizaciones de terminales"),
		metric.WithUnit("{terminal}"),
	)
	if err != nil {
		return nil, err
	}

	dispatchDropped, err := meter.Int64Counter(
		"echo.dispatch.dropped",
		metric.WithDescription("Destinos descartados durante el despacho"),
		metric.WithUnit("{destination}"),
	)
	if err != nil {
		return nil, err
	}

	deliverySent, err := meter.Int64Counter(
		"echo.delivery.sent",
		metric.WithDescription("Entregas encoladas en una sesión"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, err
	}

	deliveryFailed, err := meter.Int64Counter(
		"echo.delivery.failed",
		metric.WithDescription("Entregas que no alcanzaron al destinatario"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, err
	}

	routeProvisioned, err := meter.Int64Counter(
		"echo.route.provisioned",
		metric.WithDescription("Rutas provisionadas (ok/error)"),
		metric.WithUnit("{route}"),
	)
	if err != nil {
		return nil, err
	}

	journalWritten, err := meter.Int64Counter(
		"echo.journal.written",
		metric.WithDescription("Registros publicados en el journal"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	sessionActive, err := meter.Int64UpDownCounter(
		"echo.session.active",
		metric.WithDescription("Sesiones WebSocket abiertas"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	latencyDispatch, err := meter.Float64Histogram(
		"echo.latency.dispatch",
		metric.WithDescription("Duración del despacho de un TradeMessage"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &EchoMetrics{
		MessageReceived:    messageReceived,
		MessageMalformed:   messageMalformed,
		TerminalRegistered: terminalRegistered,
		DispatchDropped:    dispatchDropped,
		DeliverySent:       deliverySent,
		DeliveryFailed:     deliveryFailed,
		RouteProvisioned:   routeProvisioned,
		JournalWritten:     journalWritten,
		SessionActive:      sessionActive,
		LatencyDispatch:    latencyDispatch,
	}, nil
}

// RecordMessageReceived registra un frame entrante decodificado.
func (m *EchoMetrics) RecordMessageReceived(ctx context.Context, kind string, attrs ...attribute.KeyValue) {
	baseAttrs := []attribute.KeyValue{attribute.String("echo.message_kind", kind)}
	baseAttrs = append(baseAttrs, attrs...)
	m.MessageReceived.Add(ctx, 1, metric.WithAttributes(baseAttrs...))
}

// RecordMessageMalformed registra un frame descartado.
func (m *EchoMetrics) RecordMessageMalformed(ctx context.Context, attrs ...attribute.KeyValue) {
	m.MessageMalformed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTerminalRegistered registra un alta o actualización.
//
// result: "created" | "updated"
func (m *EchoMetrics) RecordTerminalRegistered(ctx context.Context, result string, attrs ...attribute.KeyValue) {
	baseAttrs := []attribute.KeyValue{attribute.String("result", result)}
	baseAttrs = append(baseAttrs, attrs...)
	m.TerminalRegistered.Add(ctx, 1, metric.WithAttributes(baseAttrs...))
}

// RecordDispatchDropped registra un destino descartado.
//
// reason: "filtered" | "missing_rule" | "error"
func (m *EchoMetrics) RecordDispatchDropped(ctx context.Context, reason string, attrs ...attribute.KeyValue) {
	baseAttrs := []attribute.KeyValue{attribute.String("echo.reason", reason)}
	baseAttrs = append(baseAttrs, attrs...)
	m.DispatchDropped.Add(ctx, 1, metric.WithAttributes(baseAttrs...))
}

// RecordDeliverySent registra una entrega encolada.
func (m *EchoMetrics) RecordDeliverySent(ctx context.Context, attrs ...attribute.KeyValue) {
	m.DeliverySent.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDeliveryFailed registra una entrega fallida.
//
// reason: "not_connected" | "queue_full" | "encode"
func (m *EchoMetrics) RecordDeliveryFailed(ctx context.Context, reason string, attrs ...attribute.KeyValue) {
	baseAttrs := []attribute.KeyValue{attribute.String("echo.reason", reason)}
	baseAttrs = append(baseAttrs, attrs...)
	m.DeliveryFailed.Add(ctx, 1, metric.WithAttributes(baseAttrs...))
}

// RecordRouteProvisioned registra el resultado de provisionar una ruta.
func (m *EchoMetrics) RecordRouteProvisioned(ctx context.Context, result string, attrs ...attribute.KeyValue) {
	baseAttrs := []attribute.KeyValue{attribute.String("result", result)}
	baseAttrs = append(baseAttrs, attrs...)
	m.RouteProvisioned.Add(ctx, 1, metric.WithAttributes(baseAttrs...))
}

// RecordJournalWritten registra una publicación en el journal.
func (m *EchoMetrics) RecordJournalWritten(ctx context.Context, status string, attrs ...attribute.KeyValue) {
	baseAttrs := []attribute.KeyValue{attribute.String("echo.status", status)}
	baseAttrs = append(baseAttrs, attrs...)
	m.JournalWritten.Add(ctx, 1, metric.WithAttributes(baseAttrs...))
}

// SessionOpened incrementa las sesiones activas.
func (m *EchoMetrics) SessionOpened(ctx context.Context) {
	m.SessionActive.Add(ctx, 1)
}

// SessionClosed decrementa las sesiones activas.
func (m *EchoMetrics) SessionClosed(ctx context.Context) {
	m.SessionActive.Add(ctx, -1)
}

// RecordDispatchLatency registra la duración del despacho (ms).
func (m *EchoMetrics) RecordDispatchLatency(ctx context.Context, latencyMs float64, attrs ...attribute.KeyValue) {
	m.LatencyDispatch.Record(ctx, latencyMs, metric.WithAttributes(attrs...))
}
