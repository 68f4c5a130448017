package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// IncomingMessage es un mensaje recibido desde una terminal.
type IncomingMessage interface {
	// Sender retorna la terminal que emitió el mensaje.
	Sender() TerminalID
	isIncoming()
}

// OutgoingMessage es un mensaje enviado hacia una terminal.
type OutgoingMessage interface {
	isOutgoing()
}

// RegisterMessage solicita el alta (o actualización) de una terminal.
type RegisterMessage struct {
	TerminalID TerminalID `json:"terminal_id"`
	Label      string     `json:"label,omitempty"`
	IsCyphered bool       `json:"is_cyphered"`
	AccountID  string     `json:"account_id,omitempty"`
}

// TradeMessage transporta una orden emitida por una terminal.
type TradeMessage struct {
	TerminalID TerminalID `json:"terminal_id"`
	Body       Order      `json:"body"`
	AccountID  string     `json:"account_id,omitempty"`
	IsCyphered bool       `json:"is_cyphered"`
}

// Clone retorna una copia independiente del mensaje.
func (m TradeMessage) Clone() TradeMessage {
	m.Body = m.Body.Clone()
	return m
}

// AskRegistrationMessage pide a una terminal desconocida que se registre.
type AskRegistrationMessage struct {
	TerminalID TerminalID `json:"terminal_id"`
	Body       string     `json:"body"`
}

// NewAskRegistration construye la solicitud de registro para id.
func NewAskRegistration(id TerminalID) AskRegistrationMessage {
	return AskRegistrationMessage{TerminalID: id, Body: "register"}
}

// OutTradeMessage es la orden ya transformada que recibe un destino.
//
// TerminalID es la terminal origen. La igualdad es sobre el contenido completo.
type OutTradeMessage struct {
	TerminalID TerminalID `json:"terminal_id"`
	Body       Order      `json:"body"`
}

// ContentKey retorna una clave canónica del contenido (para deduplicar fan-out).
func (m OutTradeMessage) ContentKey() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode out trade message: %w", err)
	}
	return string(b), nil
}

func (RegisterMessage) isIncoming() {}
func (TradeMessage) isIncoming()    {}

func (m RegisterMessage) Sender() TerminalID { return m.TerminalID }
func (m TradeMessage) Sender() TerminalID    { return m.TerminalID }

func (AskRegistrationMessage) isOutgoing() {}
func (OutTradeMessage) isOutgoing()        {}

// wireEnvelope es el sobre {"message": {...}} del protocolo.
type wireEnvelope struct {
	Message json.RawMessage `json:"message"`
}

// wireRegister acepta "label" y el nombre histórico "name".
type wireRegister struct {
	TerminalID string `json:"terminal_id"`
	Label      string `json:"label"`
	Name       string `json:"name"`
	IsCyphered bool   `json:"is_cyphered"`
	AccountID  string `json:"account_id"`
}

type wireTrade struct {
	TerminalID string `json:"terminal_id"`
	Body       *Order `json:"body"`
	AccountID  string `json:"account_id"`
	IsCyphered bool   `json:"is_cyphered"`
}

// DecodeIncoming decodifica un frame entrante.
//
// Es un TradeMessage si trae "body"; en otro caso es un RegisterMessage.
func DecodeIncoming(data []byte) (IncomingMessage, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, NewValidationError("message", string(data), "malformed envelope: "+err.Error())
	}
	if len(env.Message) == 0 || bytes.Equal(env.Message, []byte("null")) {
		return nil, NewValidationError("message", string(data), "missing message")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(env.Message, &fields); err != nil {
		return nil, NewValidationError("message", string(env.Message), "message must be an object")
	}

	if _, isTrade := fields["body"]; isTrade {
		var w wireTrade
		if err := json.Unmarshal(env.Message, &w); err != nil {
			return nil, NewValidationError("body", string(fields["body"]), err.Error())
		}
		id, err := parseWireID(w.TerminalID)
		if err != nil {
			return nil, err
		}
		if w.Body == nil {
			return nil, NewValidationError("body", nil, "trade body is required")
		}
		return TradeMessage{TerminalID: id, Body: *w.Body, AccountID: w.AccountID, IsCyphered: w.IsCyphered}, nil
	}

	var w wireRegister
	if err := json.Unmarshal(env.Message, &w); err != nil {
		return nil, NewValidationError("message", string(env.Message), err.Error())
	}
	id, err := parseWireID(w.TerminalID)
	if err != nil {
		return nil, err
	}
	label := w.Label
	if label == "" {
		label = w.Name
	}
	return RegisterMessage{TerminalID: id, Label: label, IsCyphered: w.IsCyphered, AccountID: w.AccountID}, nil
}

func parseWireID(s string) (TerminalID, error) {
	if s == "" {
		return uuid.Nil, NewValidationError("terminal_id", s, "terminal_id is required")
	}
	return ParseTerminalID(s)
}

// EncodeIncoming serializa un mensaje entrante con su sobre (lado terminal).
func EncodeIncoming(msg IncomingMessage) ([]byte, error) {
	return encodeEnvelope(msg)
}

// EncodeOutgoing serializa un mensaje saliente con su sobre.
func EncodeOutgoing(msg OutgoingMessage) ([]byte, error) {
	return encodeEnvelope(msg)
}

func encodeEnvelope(msg any) ([]byte, error) {
	inner, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return json.Marshal(wireEnvelope{Message: inner})
}

// DecodeOutgoing decodifica un frame saliente (lado terminal y tests).
func DecodeOutgoing(data []byte) (OutgoingMessage, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	var probe struct {
		Body json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(env.Message, &probe); err != nil {
		return nil, fmt.Errorf("message must be an object: %w", err)
	}
	if len(probe.Body) > 0 && probe.Body[0] == '"' {
		var ask AskRegistrationMessage
		if err := json.Unmarshal(env.Message, &ask); err != nil {
			return nil, err
		}
		return ask, nil
	}
	var out OutTradeMessage
	if err := json.Unmarshal(env.Message, &out); err != nil {
		return nil, err
	}
	return out, nil
}
