package internal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/metricbundle"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"go.opentelemetry.io/otel/attribute"
)

// TerminalSession es el extremo de transporte de una o más terminales.
//
// Implementado por *Session (WebSocket o IPC).
type TerminalSession interface {
	ID() string
	Send(ctx context.Context, msg domain.OutgoingMessage) error
	Close() error
}

// ConnectionRegistry es el contrato de alcanzabilidad que usa el despacho.
type ConnectionRegistry interface {
	// Disconnect cierra la sesión dueña del id.
	Disconnect(ctx context.Context, id domain.TerminalID)
	// IsConnected indica si el id tiene una sesión viva.
	IsConnected(id domain.TerminalID) bool
	// SendMessage entrega msg a la sesión del id. Retorna false si no llegó.
	SendMessage(ctx context.Context, id domain.TerminalID, msg domain.OutgoingMessage) bool
}

// TerminalRegistry mantiene el mapeo de terminales a sesiones (estado OPERACIONAL).
//
// Thread-safe. Operaciones:
//   - Register: asocia una terminal a una sesión (last-write-wins).
//   - UnregisterSession: libera las terminales que la sesión todavía posee.
//   - Disconnect / IsConnected / SendMessage: contrato ConnectionRegistry.
//   - GetStats: diagnóstico.
type TerminalRegistry struct {
	// terminal_id → OwnershipRecord
	terminalToOwner map[domain.TerminalID]*OwnershipRecord
	// session_id → terminal_ids (índice inverso para cleanup)
	sessionToTerminals map[string][]domain.TerminalID

	mu        sync.RWMutex
	telemetry *telemetry.Client
	metrics   *metricbundle.EchoMetrics
}

// OwnershipRecord registra qué sesión transporta a una terminal.
type OwnershipRecord struct {
	Session      TerminalSession
	TerminalID   domain.TerminalID
	RegisteredAt time.Time
}

var _ ConnectionRegistry = (*TerminalRegistry)(nil)

// NewTerminalRegistry crea un nuevo registry.
func NewTerminalRegistry(tel *telemetry.Client, metrics *metricbundle.EchoMetrics) *TerminalRegistry {
	return &TerminalRegistry{
		terminalToOwner:    make(map[domain.TerminalID]*OwnershipRecord),
		sessionToTerminals: make(map[string][]domain.TerminalID),
		telemetry:          tel,
		metrics:            metrics,
	}
}

// Register asocia la terminal a la sesión.
//
// Si la terminal ya estaba en OTRA sesión, sobreescribe (last-write-wins) y
// loguea WARNING. La sesión desplazada no se notifica.
func (r *TerminalRegistry) Register(ctx context.Context, id domain.TerminalID, session TerminalSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.terminalToOwner[id]; exists {
		if existing.Session.ID() == session.ID() {
			return
		}
		r.telemetry.Warn(ctx, "Terminal ownership conflict, last write wins",
			semconv.Echo.TerminalID.String(id.String()),
			attribute.String("previous_session", existing.Session.ID()),
			semconv.Echo.SessionID.String(session.ID()),
		)
		r.removeTerminalFromSession(existing.Session.ID(), id)
	}

	r.terminalToOwner[id] = &OwnershipRecord{
		Session:      session,
		TerminalID:   id,
		RegisteredAt: time.Now(),
	}
	r.sessionToTerminals[session.ID()] = append(r.sessionToTerminals[session.ID()], id)

	r.telemetry.Info(ctx, "Terminal bound to session",
		semconv.Echo.TerminalID.String(id.String()),
		semconv.Echo.SessionID.String(session.ID()),
	)
}

// UnregisterSession elimina las terminales que la sesión todavía posee.
//
// Se llama al cerrar la sesión. Las terminales tomadas por otra sesión no se tocan.
func (r *TerminalRegistry) UnregisterSession(ctx context.Context, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, exists := r.sessionToTerminals[sessionID]
	if !exists {
		return
	}

	for _, id := range ids {
		if rec, ok := r.terminalToOwner[id]; ok && rec.Session.ID() == sessionID {
			delete(r.terminalToOwner, id)
		}
	}
	delete(r.sessionToTerminals, sessionID)

	r.telemetry.Info(ctx, "Session unregistered, terminals released",
		semconv.Echo.SessionID.String(sessionID),
		attribute.Int("terminals_count", len(ids)),
	)
}

// Disconnect cierra la sesión dueña del id.
//
// La purga ocurre cuando la sesión termina (UnregisterSession).
func (r *TerminalRegistry) Disconnect(ctx context.Context, id domain.TerminalID) {
	session, ok := r.GetSession(id)
	if !ok {
		return
	}
	if err := session.Close(); err != nil {
		r.telemetry.Warn(ctx, "Failed to close session",
			semconv.Echo.TerminalID.String(id.String()),
			semconv.Echo.SessionID.String(session.ID()),
			attribute.String("error", err.Error()),
		)
	}
}

// IsConnected implementa ConnectionRegistry.
func (r *TerminalRegistry) IsConnected(id domain.TerminalID) bool {
	_, ok := r.GetSession(id)
	return ok
}

// SendMessage implementa ConnectionRegistry.
//
// Un id desconocido o una sesión cerrada es un no-op que retorna false.
func (r *TerminalRegistry) SendMessage(ctx context.Context, id domain.TerminalID, msg domain.OutgoingMessage) bool {
	session, ok := r.GetSession(id)
	if !ok {
		r.metrics.RecordDeliveryFailed(ctx, "not_connected")
		return false
	}

	if err := session.Send(ctx, msg); err != nil {
		reason := "encode"
		switch {
		case errors.Is(err, ErrSessionClosed):
			reason = "not_connected"
		case errors.Is(err, ErrSendQueueFull):
			reason = "queue_full"
		}
		r.telemetry.Warn(ctx, "Message not delivered",
			semconv.Echo.DestinationID.String(id.String()),
			semconv.Echo.SessionID.String(session.ID()),
			semconv.Echo.Reason.String(reason),
			attribute.String("error", err.Error()),
		)
		r.metrics.RecordDeliveryFailed(ctx, reason)
		return false
	}

	r.metrics.RecordDeliverySent(ctx)
	return true
}

// GetSession retorna la sesión dueña del id.
func (r *TerminalRegistry) GetSession(id domain.TerminalID) (TerminalSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.terminalToOwner[id]
	if !ok {
		return nil, false
	}
	return rec.Session, true
}

// GetTerminalsBySession retorna las terminales de una sesión (diagnóstico).
func (r *TerminalRegistry) GetTerminalsBySession(sessionID string) []domain.TerminalID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.sessionToTerminals[sessionID]
	result := make([]domain.TerminalID, len(ids))
	copy(result, ids)
	return result
}

// GetStats retorna estadísticas del registry (diagnóstico/métricas).
func (r *TerminalRegistry) GetStats() (totalTerminals int, totalSessions int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.terminalToOwner), len(r.sessionToTerminals)
}

// removeTerminalFromSession elimina una terminal del índice inverso.
//
// DEBE llamarse con lock ya adquirido.
func (r *TerminalRegistry) removeTerminalFromSession(sessionID string, id domain.TerminalID) {
	ids := r.sessionToTerminals[sessionID]
	for i, cur := range ids {
		if cur == id {
			ids[i] = ids[len(ids)-1]
			r.sessionToTerminals[sessionID] = ids[:len(ids)-1]
			break
		}
	}

	if len(r.sessionToTerminals[sessionID]) == 0 {
		delete(r.sessionToTerminals, sessionID)
	}
}
