package domain

import "fmt"

// Enumeraciones del payload de órdenes. La numeración sigue a MQL5 porque las
// terminales serializan los valores crudos.

// TradeAction es el tipo de operación solicitada (ENUM_TRADE_REQUEST_ACTIONS).
type TradeAction int

const (
	TradeActionDeal    TradeAction = 0
	TradeActionPending TradeAction = 1
	TradeActionSLTP    TradeAction = 2
	TradeActionModify  TradeAction = 3
	TradeActionRemove  TradeAction = 4
	TradeActionCloseBy TradeAction = 5
)

// OrderType es el tipo de orden (ENUM_ORDER_TYPE).
type OrderType int

const (
	OrderTypeBuy           OrderType = 0
	OrderTypeSell          OrderType = 1
	OrderTypeBuyLimit      OrderType = 2
	OrderTypeSellLimit     OrderType = 3
	OrderTypeBuyStop       OrderType = 4
	OrderTypeSellStop      OrderType = 5
	OrderTypeBuyStopLimit  OrderType = 6
	OrderTypeSellStopLimit OrderType = 7
	OrderTypeCloseBy       OrderType = 8
)

// OrderTypeFilling es la política de ejecución (ENUM_ORDER_TYPE_FILLING).
type OrderTypeFilling int

const (
	OrderFillingFOK    OrderTypeFilling = 0
	OrderFillingIOC    OrderTypeFilling = 1
	OrderFillingReturn OrderTypeFilling = 2
)

// TypeTime es la vigencia de la orden (ENUM_ORDER_TYPE_TIME).
type TypeTime int

const (
	OrderTimeGTC          TypeTime = 0
	OrderTimeDay          TypeTime = 1
	OrderTimeSpecified    TypeTime = 2
	OrderTimeSpecifiedDay TypeTime = 3
)

// OrderReason es el origen de la orden (ENUM_ORDER_REASON).
type OrderReason int

const (
	OrderReasonClient OrderReason = 0
	OrderReasonMobile OrderReason = 1
	OrderReasonWeb    OrderReason = 2
	OrderReasonExpert OrderReason = 3
	OrderReasonSL     OrderReason = 4
	OrderReasonTP     OrderReason = 5
	OrderReasonSO     OrderReason = 6
)

// Nombres de las enumeraciones tal como aparecen en el esquema.
const (
	EnumTradeAction      = "TradeAction"
	EnumOrderType        = "OrderType"
	EnumOrderTypeFilling = "OrderTypeFilling"
	EnumTypeTime         = "TypeTime"
	EnumOrderReason      = "OrderReason"
)

var enumLabels = map[string]map[int]string{
	EnumTradeAction: {
		0: "TRADE_ACTION_DEAL",
		1: "TRADE_ACTION_PENDING",
		2: "TRADE_ACTION_SLTP",
		3: "TRADE_ACTION_MODIFY",
		4: "TRADE_ACTION_REMOVE",
		5: "TRADE_ACTION_CLOSE_BY",
	},
	EnumOrderType: {
		0: "ORDER_TYPE_BUY",
		1: "ORDER_TYPE_SELL",
		2: "ORDER_TYPE_BUY_LIMIT",
		3: "ORDER_TYPE_SELL_LIMIT",
		4: "ORDER_TYPE_BUY_STOP",
		5: "ORDER_TYPE_SELL_STOP",
		6: "ORDER_TYPE_BUY_STOP_LIMIT",
		7: "ORDER_TYPE_SELL_STOP_LIMIT",
		8: "ORDER_TYPE_CLOSE_BY",
	},
	EnumOrderTypeFilling: {
		0: "ORDER_FILLING_FOK",
		1: "ORDER_FILLING_IOC",
		2: "ORDER_FILLING_RETURN",
	},
	EnumTypeTime: {
		0: "ORDER_TIME_GTC",
		1: "ORDER_TIME_DAY",
		2: "ORDER_TIME_SPECIFIED",
		3: "ORDER_TIME_SPECIFIED_DAY",
	},
	EnumOrderReason: {
		0: "ORDER_REASON_CLIENT",
		1: "ORDER_REASON_MOBILE",
		2: "ORDER_REASON_WEB",
		3: "ORDER_REASON_EXPERT",
		4: "ORDER_REASON_SL",
		5: "ORDER_REASON_TP",
		6: "ORDER_REASON_SO",
	},
}

func enumLabel(enum string, v int) string {
	if label, ok := enumLabels[enum][v]; ok {
		return label
	}
	return fmt.Sprintf("%s(%d)", enum, v)
}

// IsEnumValue indica si v está declarado en la enumeración.
func IsEnumValue(enum string, v int) bool {
	_, ok := enumLabels[enum][v]
	return ok
}

func (a TradeAction) String() string      { return enumLabel(EnumTradeAction, int(a)) }
func (t OrderType) String() string        { return enumLabel(EnumOrderType, int(t)) }
func (f OrderTypeFilling) String() string { return enumLabel(EnumOrderTypeFilling, int(f)) }
func (t TypeTime) String() string         { return enumLabel(EnumTypeTime, int(t)) }
func (r OrderReason) String() string      { return enumLabel(EnumOrderReason, int(r)) }
