package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TerminalID identifica globalmente una terminal.
type TerminalID = uuid.UUID

// TailLength es la longitud del sufijo usado para búsquedas abreviadas.
const TailLength = 12

// DefaultLifetime es la vida implícita de una terminal BRONZE sin expire_at.
const DefaultLifetime = 60 * 24 * time.Hour

// Tier clasifica a una terminal según su plan.
type Tier int

const (
	TierBronze Tier = 0
	TierSilver Tier = 1
	TierGold   Tier = 2
)

// String implementa fmt.Stringer.
func (t Tier) String() string {
	switch t {
	case TierBronze:
		return "BRONZE"
	case TierSilver:
		return "SILVER"
	case TierGold:
		return "GOLD"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// ParseTier acepta el nombre o el valor numérico del tier.
func ParseTier(s string) (Tier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BRONZE", "0":
		return TierBronze, nil
	case "SILVER", "1":
		return TierSilver, nil
	case "GOLD", "2":
		return TierGold, nil
	}
	return 0, NewValidationError("tier", s, "unknown tier")
}

// Terminal es un endpoint de trading direccionable.
//
// Nunca se borra: se desactiva con Enabled=false o por expiración (solo BRONZE).
type Terminal struct {
	ID           TerminalID
	Label        string
	RegisteredAt time.Time
	ExpireAt     *time.Time
	Tier         Tier
	Enabled      bool
}

// NewTerminal crea una terminal habilitada registrada ahora.
func NewTerminal(id TerminalID, label string, tier Tier) *Terminal {
	return &Terminal{
		ID:           id,
		Label:        label,
		RegisteredAt: time.Now().UTC(),
		Tier:         tier,
		Enabled:      true,
	}
}

// EffectiveExpiry retorna la expiración efectiva y si existe.
//
// Solo BRONZE expira implícitamente a los DefaultLifetime desde el registro.
func (t *Terminal) EffectiveExpiry() (time.Time, bool) {
	if t.ExpireAt != nil {
		return *t.ExpireAt, true
	}
	if t.Tier == TierBronze {
		return t.RegisteredAt.Add(DefaultLifetime), true
	}
	return time.Time{}, false
}

// IsActive indica si la terminal puede participar en rutas y despachos.
func (t *Terminal) IsActive() bool {
	return t.IsActiveAt(time.Now())
}

// IsActiveAt evalúa IsActive contra un instante dado.
func (t *Terminal) IsActiveAt(now time.Time) bool {
	if !t.Enabled {
		return false
	}
	if t.Tier != TierBronze {
		return true
	}
	expiry, ok := t.EffectiveExpiry()
	return !ok || !now.After(expiry)
}

// Tail retorna los últimos TailLength caracteres del id canónico.
func (t *Terminal) Tail() string {
	return TerminalTail(t.ID)
}

// String implementa fmt.Stringer.
func (t *Terminal) String() string {
	return fmt.Sprintf("Terminal(%s): %s active: %t", t.ID, t.Label, t.IsActive())
}

// TerminalTail retorna el sufijo de un id.
func TerminalTail(id TerminalID) string {
	s := id.String()
	return s[len(s)-TailLength:]
}

// ParseTerminalID acepta únicamente las formas canónicas de 36 o 32 caracteres.
func ParseTerminalID(s string) (TerminalID, error) {
	s = strings.TrimSpace(s)
	if len(s) != 36 && len(s) != 32 {
		return uuid.Nil, NewValidationError("terminal_id", s, "terminal id must be 32 or 36 characters")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, NewValidationError("terminal_id", s, err.Error())
	}
	return id, nil
}

// IsTail indica si s tiene forma de sufijo (12 dígitos hexadecimales).
func IsTail(s string) bool {
	if len(s) != TailLength {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
