package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// FieldType es el tipo declarado de un campo de Order.
//
// Los campos enumerados usan el nombre de su enumeración como tipo.
type FieldType string

const (
	FieldInt      FieldType = "int"
	FieldFloat    FieldType = "float"
	FieldString   FieldType = "str"
	FieldDateTime FieldType = "datetime"
)

// fieldSpec describe un campo del esquema y cómo leerlo y escribirlo.
type fieldSpec struct {
	name string
	typ  FieldType
	enum bool
	get  func(o *Order) (Value, bool)
	set  func(o *Order, v Value)
}

// orderSchema es la única fuente de verdad sobre los campos filtrables y
// transformables de Order. Mantener alineado con el struct.
var orderSchema = []fieldSpec{
	enumField("action", EnumTradeAction,
		func(o *Order) (int, bool) { return int(o.Action), true },
		func(o *Order, v int) { o.Action = TradeAction(v) }),
	{name: "symbol", typ: FieldString,
		get: func(o *Order) (Value, bool) { return StringValue(o.Symbol), true },
		set: func(o *Order, v Value) { o.Symbol = v.Str }},
	{name: "magic", typ: FieldInt,
		get: func(o *Order) (Value, bool) { return NumberValue(float64(o.Magic)), true },
		set: func(o *Order, v Value) { o.Magic = toInt(v) }},
	floatField("volume", func(o *Order) *float64 { return &o.Volume }),
	floatField("volume_percent", func(o *Order) *float64 { return &o.VolumePercent }),
	floatField("price", func(o *Order) *float64 { return &o.Price }),
	optFloatField("stoplimit", func(o *Order) **float64 { return &o.StopLimit }),
	optFloatField("sl", func(o *Order) **float64 { return &o.SL }),
	optIntField("sl_points", func(o *Order) **int64 { return &o.SLPoints }),
	optFloatField("sl_percent", func(o *Order) **float64 { return &o.SLPercent }),
	optFloatField("tp", func(o *Order) **float64 { return &o.TP }),
	optIntField("tp_points", func(o *Order) **int64 { return &o.TPPoints }),
	optFloatField("tp_percent", func(o *Order) **float64 { return &o.TPPercent }),
	optIntField("deviation", func(o *Order) **int64 { return &o.Deviation }),
	enumField("order_type", EnumOrderType,
		func(o *Order) (int, bool) { return int(o.OrderType), true },
		func(o *Order, v int) { o.OrderType = OrderType(v) }),
	enumField("order_type_filling", EnumOrderTypeFilling,
		func(o *Order) (int, bool) {
			if o.OrderTypeFilling == nil {
				return 0, false
			}
			return int(*o.OrderTypeFilling), true
		},
		func(o *Order, v int) { f := OrderTypeFilling(v); o.OrderTypeFilling = &f }),
	enumField("type_time", EnumTypeTime,
		func(o *Order) (int, bool) {
			if o.TypeTime == nil {
				return 0, false
			}
			return int(*o.TypeTime), true
		},
		func(o *Order, v int) { t := TypeTime(v); o.TypeTime = &t }),
	{name: "expiration", typ: FieldDateTime,
		get: func(o *Order) (Value, bool) {
			if o.Expiration == nil {
				return Value{}, false
			}
			return StringValue(o.Expiration.Format(time.RFC3339)), true
		}},
	{name: "comment", typ: FieldString,
		get: func(o *Order) (Value, bool) { return StringValue(o.Comment), true },
		set: func(o *Order, v Value) { o.Comment = v.Str }},
	optIntField("position", func(o *Order) **int64 { return &o.Position }),
	optIntField("position_by", func(o *Order) **int64 { return &o.PositionBy }),
	enumField("reason", EnumOrderReason,
		func(o *Order) (int, bool) {
			if o.Reason == nil {
				return 0, false
			}
			return int(*o.Reason), true
		},
		func(o *Order, v int) { r := OrderReason(v); o.Reason = &r }),
}

var orderSchemaIndex = func() map[string]*fieldSpec {
	idx := make(map[string]*fieldSpec, len(orderSchema))
	for i := range orderSchema {
		idx[orderSchema[i].name] = &orderSchema[i]
	}
	return idx
}()

func floatField(name string, ref func(o *Order) *float64) fieldSpec {
	return fieldSpec{name: name, typ: FieldFloat,
		get: func(o *Order) (Value, bool) { return NumberValue(*ref(o)), true },
		set: func(o *Order, v Value) { *ref(o) = v.Num }}
}

func optFloatField(name string, ref func(o *Order) **float64) fieldSpec {
	return fieldSpec{name: name, typ: FieldFloat,
		get: func(o *Order) (Value, bool) {
			p := *ref(o)
			if p == nil {
				return Value{}, false
			}
			return NumberValue(*p), true
		},
		set: func(o *Order, v Value) { f := v.Num; *ref(o) = &f }}
}

func optIntField(name string, ref func(o *Order) **int64) fieldSpec {
	return fieldSpec{name: name, typ: FieldInt,
		get: func(o *Order) (Value, bool) {
			p := *ref(o)
			if p == nil {
				return Value{}, false
			}
			return NumberValue(float64(*p)), true
		},
		set: func(o *Order, v Value) { i := toInt(v); *ref(o) = &i }}
}

func enumField(name, enum string, get func(o *Order) (int, bool), set func(o *Order, v int)) fieldSpec {
	return fieldSpec{name: name, typ: FieldType(enum), enum: true,
		get: func(o *Order) (Value, bool) {
			v, ok := get(o)
			if !ok {
				return Value{}, false
			}
			return NumberValue(float64(v)), true
		},
		set: func(o *Order, v Value) { set(o, int(v.Num)) }}
}

// toInt redondea al entero más cercano (MULTIPLY sobre un campo entero).
func toInt(v Value) int64 {
	return int64(math.Round(v.Num))
}

// FieldTypes retorna el mapa campo → tipo declarado del esquema de Order.
func FieldTypes() map[string]string {
	out := make(map[string]string, len(orderSchema))
	for _, f := range orderSchema {
		out[f.name] = string(f.typ)
	}
	return out
}

// FieldNames retorna los campos del esquema en orden de declaración.
func FieldNames() []string {
	out := make([]string, 0, len(orderSchema))
	for _, f := range orderSchema {
		out = append(out, f.name)
	}
	return out
}

// Enums retorna el mapa enumeración → {valor: etiqueta} de los campos de Order.
func Enums() map[string]map[int]string {
	out := make(map[string]map[int]string)
	for _, f := range orderSchema {
		if !f.enum {
			continue
		}
		labels := enumLabels[string(f.typ)]
		cp := make(map[int]string, len(labels))
		for k, v := range labels {
			cp[k] = v
		}
		out[string(f.typ)] = cp
	}
	return out
}

// EnumValues retorna los valores declarados de una enumeración, ordenados.
func EnumValues(enum string) []int {
	labels := enumLabels[enum]
	out := make([]int, 0, len(labels))
	for k := range labels {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func lookupField(name string) (*fieldSpec, error) {
	f, ok := orderSchemaIndex[name]
	if !ok {
		return nil, NewValidationError("field", name, "unknown order field")
	}
	return f, nil
}

// Field lee un campo de la orden por nombre. set=false si el campo opcional no tiene valor.
func (o *Order) Field(name string) (v Value, set bool, err error) {
	f, err := lookupField(name)
	if err != nil {
		return Value{}, false, err
	}
	v, set = f.get(o)
	return v, set, nil
}

// SetField escribe un campo de la orden validando el tipo del literal.
func (o *Order) SetField(name string, v Value) error {
	f, err := lookupField(name)
	if err != nil {
		return err
	}
	if f.set == nil {
		return NewValidationError(name, v, "field is read-only")
	}
	if err := checkLiteral(f, v); err != nil {
		return err
	}
	f.set(o, v)
	return nil
}

// checkLiteral valida que el literal sea asignable al tipo del campo.
func checkLiteral(f *fieldSpec, v Value) error {
	switch {
	case f.enum:
		if !v.IsIntegral() || !IsEnumValue(string(f.typ), int(v.Num)) {
			return NewValidationError(f.name, v.String(), fmt.Sprintf("value is not declared in %s", f.typ))
		}
	case f.typ == FieldString:
		if v.Kind != ValueString {
			return NewValidationError(f.name, v.String(), "string field requires a string value")
		}
	case f.typ == FieldInt || f.typ == FieldFloat:
		if v.Kind != ValueNumber {
			return NewValidationError(f.name, v.String(), "numeric field requires a numeric value")
		}
	default:
		return NewValidationError(f.name, v.String(), fmt.Sprintf("field type %s does not accept literals", f.typ))
	}
	return nil
}
