package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind discrimina el contenido de un Value.
type ValueKind uint8

const (
	ValueNone ValueKind = iota
	ValueNumber
	ValueString
)

// Value es el literal de una expresión: número, texto o vacío.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
}

// NumberValue construye un literal numérico.
func NumberValue(f float64) Value { return Value{Kind: ValueNumber, Num: f} }

// StringValue construye un literal de texto.
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

// IsNone indica si el literal está vacío.
func (v Value) IsNone() bool { return v.Kind == ValueNone }

// IsIntegral indica si el literal es un número sin parte decimal.
func (v Value) IsIntegral() bool {
	return v.Kind == ValueNumber && v.Num == math.Trunc(v.Num) && !math.IsInf(v.Num, 0)
}

// String implementa fmt.Stringer.
func (v Value) String() string {
	switch v.Kind {
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueString:
		return v.Str
	default:
		return ""
	}
}

// MarshalJSON serializa como número, string o null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueNumber:
		return json.Marshal(v.Num)
	case ValueString:
		return json.Marshal(v.Str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON acepta número, string o null.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = Value{}
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("value must be a number, a string or null: %w", err)
		}
		*v = NumberValue(f)
	}
	return nil
}

// Prefijos del formato de persistencia de literales.
const (
	encodedString = "str:"
	encodedFloat  = "float:"
	encodedInt    = "int:"
)

// EncodeValue serializa un literal como texto con prefijo de tipo.
//
// Un literal vacío se codifica como "".
func EncodeValue(v Value) string {
	switch v.Kind {
	case ValueString:
		return encodedString + v.Str
	case ValueNumber:
		if v.IsIntegral() && math.Abs(v.Num) < 1<<53 {
			return encodedInt + strconv.FormatInt(int64(v.Num), 10)
		}
		return encodedFloat + strconv.FormatFloat(v.Num, 'g', -1, 64)
	default:
		return ""
	}
}

// DecodeValue es la inversa de EncodeValue.
func DecodeValue(s string) (Value, error) {
	switch {
	case s == "":
		return Value{}, nil
	case strings.HasPrefix(s, encodedString):
		return StringValue(strings.TrimPrefix(s, encodedString)), nil
	case strings.HasPrefix(s, encodedFloat):
		f, err := strconv.ParseFloat(strings.TrimPrefix(s, encodedFloat), 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid float value %q: %w", s, err)
		}
		return NumberValue(f), nil
	case strings.HasPrefix(s, encodedInt):
		i, err := strconv.ParseInt(strings.TrimPrefix(s, encodedInt), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid int value %q: %w", s, err)
		}
		return NumberValue(float64(i)), nil
	}
	return Value{}, fmt.Errorf("unknown value encoding %q", s)
}
