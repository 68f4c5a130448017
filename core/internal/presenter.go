package internal

import (
	"context"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"go.opentelemetry.io/otel/attribute"
)

// Delivery agrupa a los destinatarios que reciben exactamente el mismo mensaje.
type Delivery struct {
	Recipients []domain.TerminalID
	Message    domain.OutgoingMessage
}

// Presenter es la frontera de salida del despacho.
type Presenter interface {
	// Present entrega los pares (destinatarios, mensaje) originados por source.
	Present(ctx context.Context, source domain.TerminalID, deliveries []Delivery) error
}

// RegistryPresenter entrega cada mensaje a través del ConnectionRegistry.
//
// Los fallos de envío se registran en el registry y no cortan el resto de
// destinatarios.
type RegistryPresenter struct {
	registry  ConnectionRegistry
	telemetry *telemetry.Client
}

// NewRegistryPresenter crea el presenter por defecto.
func NewRegistryPresenter(registry ConnectionRegistry, tel *telemetry.Client) *RegistryPresenter {
	return &RegistryPresenter{registry: registry, telemetry: tel}
}

// Present implementa Presenter.
func (p *RegistryPresenter) Present(ctx context.Context, source domain.TerminalID, deliveries []Delivery) error {
	for _, d := range deliveries {
		sent := 0
		for _, rcpt := range d.Recipients {
			if p.registry.SendMessage(ctx, rcpt, d.Message) {
				sent++
			}
		}
		p.telemetry.Debug(ctx, "Delivery presented",
			semconv.Echo.TerminalID.String(source.String()),
			semconv.Echo.Recipients.Int(len(d.Recipients)),
			attribute.Int("sent", sent),
		)
	}
	return nil
}
