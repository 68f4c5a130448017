package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeIncomingTrade(t *testing.T) {
	id := uuid.New()
	frame := []byte(`{"message": {"terminal_id": "` + id.String() + `", "account_id": "1001",
		"body": {"action": 0, "symbol": "EURUSD", "magic": 7, "volume": 0.1, "volume_percent": 0,
		"price": 1.1, "sl": 1.09, "sl_points": 100, "order_type": 0, "comment": ""}}}`)

	msg, err := DecodeIncoming(frame)
	require.NoError(t, err)

	trade, ok := msg.(TradeMessage)
	require.True(t, ok, "expected TradeMessage, got %T", msg)
	assert.Equal(t, id, trade.Sender())
	assert.Equal(t, "1001", trade.AccountID)
	assert.Equal(t, "EURUSD", trade.Body.Symbol)
	require.NotNil(t, trade.Body.SLPoints)
	assert.Equal(t, int64(100), *trade.Body.SLPoints)
	assert.Nil(t, trade.Body.TP)
}

func TestDecodeIncomingRegister(t *testing.T) {
	id := uuid.New()

	msg, err := DecodeIncoming([]byte(`{"message": {"terminal_id": "` + id.String() + `", "label": "demo", "is_cyphered": true}}`))
	require.NoError(t, err)
	reg, ok := msg.(RegisterMessage)
	require.True(t, ok)
	assert.Equal(t, "demo", reg.Label)
	assert.True(t, reg.IsCyphered)

	msg, err = DecodeIncoming([]byte(`{"message": {"terminal_id": "` + id.String() + `", "name": "legacy", "account_id": "9"}}`))
	require.NoError(t, err)
	reg, ok = msg.(RegisterMessage)
	require.True(t, ok)
	assert.Equal(t, "legacy", reg.Label)
	assert.False(t, reg.IsCyphered)
}

func TestDecodeIncomingErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{name: "not json", frame: `hello`},
		{name: "missing message", frame: `{"foo": 1}`},
		{name: "message not an object", frame: `{"message": [1, 2]}`},
		{name: "missing terminal id", frame: `{"message": {"label": "x"}}`},
		{name: "bad terminal id", frame: `{"message": {"terminal_id": "abc", "label": "x"}}`},
		{name: "null body", frame: `{"message": {"terminal_id": "` + uuid.NewString() + `", "body": null}}`},
		{name: "bad body", frame: `{"message": {"terminal_id": "` + uuid.NewString() + `", "body": {"volume": "x"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeIncoming([]byte(tt.frame))
			require.Error(t, err)
			assert.True(t, IsCode(err, ErrValidation), "got %v", err)
		})
	}
}

func TestEncodeOutgoing(t *testing.T) {
	id := uuid.New()

	data, err := EncodeOutgoing(NewAskRegistration(id))
	require.NoError(t, err)
	var env struct {
		Message map[string]any `json:"message"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, id.String(), env.Message["terminal_id"])
	assert.Equal(t, "register", env.Message["body"])

	decoded, err := DecodeOutgoing(data)
	require.NoError(t, err)
	assert.Equal(t, NewAskRegistration(id), decoded)

	out := OutTradeMessage{TerminalID: id, Body: Order{Symbol: "XAUUSD", Volume: 0.2, OrderType: OrderTypeSell}}
	data, err = EncodeOutgoing(out)
	require.NoError(t, err)
	decoded, err = DecodeOutgoing(data)
	require.NoError(t, err)
	assert.Equal(t, out, decoded)
}

func TestOutTradeContentKey(t *testing.T) {
	id := uuid.New()
	a := OutTradeMessage{TerminalID: id, Body: Order{Symbol: "EURUSD", Volume: 1, SL: Ptr(1.1)}}
	b := OutTradeMessage{TerminalID: id, Body: a.Body.Clone()}
	c := OutTradeMessage{TerminalID: id, Body: Order{Symbol: "EURUSD", Volume: 2, SL: Ptr(1.1)}}

	ka, err := a.ContentKey()
	require.NoError(t, err)
	kb, _ := b.ContentKey()
	kc, _ := c.ContentKey()

	assert.Equal(t, ka, kb)
	assert.NotEqual(t, ka, kc)
}

func TestSchemaIntrospection(t *testing.T) {
	types := FieldTypes()
	assert.Equal(t, "str", types["symbol"])
	assert.Equal(t, "float", types["volume"])
	assert.Equal(t, "int", types["magic"])
	assert.Equal(t, "int", types["sl_points"])
	assert.Equal(t, EnumOrderType, types["order_type"])
	assert.Equal(t, "datetime", types["expiration"])
	assert.Len(t, types, len(FieldNames()))

	enums := Enums()
	require.Contains(t, enums, EnumOrderType)
	assert.Equal(t, "ORDER_TYPE_SELL", enums[EnumOrderType][1])
	assert.Len(t, enums[EnumOrderType], 9)
	assert.Contains(t, enums, EnumTradeAction)
	assert.Contains(t, enums, EnumOrderReason)

	enums[EnumOrderType][1] = "mutated"
	assert.Equal(t, "ORDER_TYPE_SELL", Enums()[EnumOrderType][1])

	assert.Equal(t, []int{0, 1, 2}, EnumValues(EnumOrderTypeFilling))
}

func TestOperatorsFor(t *testing.T) {
	ops, err := FilterOperatorsFor("symbol")
	require.NoError(t, err)
	assert.Equal(t, []Operator{FilterEQ, FilterNE, FilterIN}, ops)

	ops, err = FilterOperatorsFor("order_type")
	require.NoError(t, err)
	assert.Equal(t, []Operator{FilterEQ, FilterNE}, ops)

	ops, err = TransformOperatorsFor("volume")
	require.NoError(t, err)
	assert.Equal(t, []Operator{TransformSet, TransformMultiply, TransformAdd}, ops)

	ops, err = TransformOperatorsFor("comment")
	require.NoError(t, err)
	assert.Equal(t, []Operator{TransformSet, TransformAppend}, ops)

	_, err = FilterOperatorsFor("nope")
	assert.Error(t, err)
}

func TestOrderSetField(t *testing.T) {
	var o Order
	require.NoError(t, o.SetField("order_type_filling", NumberValue(2)))
	require.NotNil(t, o.OrderTypeFilling)
	assert.Equal(t, OrderFillingReturn, *o.OrderTypeFilling)

	assert.Error(t, o.SetField("order_type", NumberValue(99)))
	assert.Error(t, o.SetField("expiration", StringValue("x")))
	assert.Error(t, o.SetField("symbol", NumberValue(1)))

	v, set, err := o.Field("tp")
	require.NoError(t, err)
	assert.False(t, set)
	assert.True(t, v.IsNone())
}
