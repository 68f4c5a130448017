package domain

import "time"

// Order es el payload de una operación copiada.
//
// Registro plano: los campos opcionales son punteros y nunca se mutan en sitio
// (los setters asignan un puntero nuevo), por lo que una copia superficial no
// comparte estado mutable. Usar Clone igualmente antes de transformar.
type Order struct {
	Action           TradeAction       `json:"action"`
	Symbol           string            `json:"symbol"`
	Magic            int64             `json:"magic"`
	Volume           float64           `json:"volume"`
	VolumePercent    float64           `json:"volume_percent"`
	Price            float64           `json:"price"`
	StopLimit        *float64          `json:"stoplimit,omitempty"`
	SL               *float64          `json:"sl,omitempty"`
	SLPoints         *int64            `json:"sl_points,omitempty"`
	SLPercent        *float64          `json:"sl_percent,omitempty"`
	TP               *float64          `json:"tp,omitempty"`
	TPPoints         *int64            `json:"tp_points,omitempty"`
	TPPercent        *float64          `json:"tp_percent,omitempty"`
	Deviation        *int64            `json:"deviation,omitempty"`
	OrderType        OrderType         `json:"order_type"`
	OrderTypeFilling *OrderTypeFilling `json:"order_type_filling,omitempty"`
	TypeTime         *TypeTime         `json:"type_time,omitempty"`
	Expiration       *time.Time        `json:"expiration,omitempty"`
	Comment          string            `json:"comment"`
	Position         *int64            `json:"position,omitempty"`
	PositionBy       *int64            `json:"position_by,omitempty"`
	Reason           *OrderReason      `json:"reason,omitempty"`
}

// Clone retorna una copia profunda de la orden.
func (o Order) Clone() Order {
	c := o
	c.StopLimit = clonePtr(o.StopLimit)
	c.SL = clonePtr(o.SL)
	c.SLPoints = clonePtr(o.SLPoints)
	c.SLPercent = clonePtr(o.SLPercent)
	c.TP = clonePtr(o.TP)
	c.TPPoints = clonePtr(o.TPPoints)
	c.TPPercent = clonePtr(o.TPPercent)
	c.Deviation = clonePtr(o.Deviation)
	c.OrderTypeFilling = clonePtr(o.OrderTypeFilling)
	c.TypeTime = clonePtr(o.TypeTime)
	c.Expiration = clonePtr(o.Expiration)
	c.Position = clonePtr(o.Position)
	c.PositionBy = clonePtr(o.PositionBy)
	c.Reason = clonePtr(o.Reason)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr retorna un puntero a v (helper para campos opcionales).
func Ptr[T any](v T) *T {
	return &v
}

// IsBuySide indica si el tipo de orden pertenece a la familia BUY.
func (t OrderType) IsBuySide() bool {
	switch t {
	case OrderTypeBuy, OrderTypeBuyLimit, OrderTypeBuyStop, OrderTypeBuyStopLimit:
		return true
	}
	return false
}
