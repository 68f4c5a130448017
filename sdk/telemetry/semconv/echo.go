package semconv

import "go.opentelemetry.io/otel/attribute"

// Echo contiene atributos semánticos específicos del copiador.
//
// # Identificadores
//
//   - echo.terminal_id: UUID de la terminal que emite o recibe
//   - echo.destination_id: UUID de la terminal destino en un despacho
//   - echo.route_id: ID de la ruta origen → destino
//   - echo.account_id: cuenta del broker informada por la terminal
//   - echo.session_id: ID de la conexión WebSocket
//
// # Trading
//
//   - echo.symbol: símbolo del instrumento (XAUUSD, etc.)
//   - echo.order_type: tipo de orden (ORDER_TYPE_BUY, ...)
//   - echo.volume: volumen en lotes
//
// # Flujo
//
//   - echo.message_kind: register | trade | ask_registration
//   - echo.status: estado del paso (ok/dropped/failed)
//   - echo.reason: motivo de descarte o rechazo
//   - echo.error_code: código CopierError si aplica
//   - echo.component: componente (router/session/provisioner/journal)
//
// # Uso
//
//	client.Info(ctx, "Trade dispatched",
//	    semconv.Echo.TerminalID.String(id.String()),
//	    semconv.Echo.Symbol.String("XAUUSD"),
//	)
var Echo = echoAttributes{
	TerminalID:    attribute.Key("echo.terminal_id"),
	DestinationID: attribute.Key("echo.destination_id"),
	RouteID:       attribute.Key("echo.route_id"),
	AccountID:     attribute.Key("echo.account_id"),
	SessionID:     attribute.Key("echo.session_id"),

	Symbol:    attribute.Key("echo.symbol"),
	OrderType: attribute.Key("echo.order_type"),
	Volume:    attribute.Key("echo.volume"),

	MessageKind: attribute.Key("echo.message_kind"),
	Status:      attribute.Key("echo.status"),
	Reason:      attribute.Key("echo.reason"),
	ErrorCode:   attribute.Key("echo.error_code"),
	Component:   attribute.Key("echo.component"),
	Recipients:  attribute.Key("echo.recipients"),
	Tier:        attribute.Key("echo.tier"),
}

type echoAttributes struct {
	TerminalID    attribute.Key
	DestinationID attribute.Key
	RouteID       attribute.Key
	AccountID     attribute.Key
	SessionID     attribute.Key

	Symbol    attribute.Key
	OrderType attribute.Key
	Volume    attribute.Key

	MessageKind attribute.Key
	Status      attribute.Key
	Reason      attribute.Key
	ErrorCode   attribute.Key
	Component   attribute.Key
	Recipients  attribute.Key
	Tier        attribute.Key
}

// Valores de echo.message_kind.
const (
	MessageKindRegister        = "register"
	MessageKindTrade           = "trade"
	MessageKindAskRegistration = "ask_registration"
)

// Valores de echo.status.
const (
	StatusOK      = "ok"
	StatusDropped = "dropped"
	StatusFailed  = "failed"
)

// Valores de echo.component.
const (
	ComponentCore        = "core"
	ComponentSession     = "session"
	ComponentRouter      = "router"
	ComponentProvisioner = "provisioner"
	ComponentJournal     = "journal"
	ComponentCLI         = "cli"
)
