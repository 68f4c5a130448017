package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Operator es un operador de filtro (0..6) o de transformación (100..105).
type Operator int

// OperatorUnset indica que la expresión no tiene operador.
const OperatorUnset Operator = -1

// Operadores de filtro.
const (
	FilterLT Operator = 0
	FilterLE Operator = 1
	FilterEQ Operator = 2
	FilterGE Operator = 3
	FilterGT Operator = 4
	FilterNE Operator = 5
	FilterIN Operator = 6
)

// Operadores de transformación. 104 (SETIF) está reservado y no se soporta.
const (
	TransformSet      Operator = 100
	TransformAppend   Operator = 101
	TransformMultiply Operator = 102
	TransformAdd      Operator = 103
	TransformReverse  Operator = 105
)

var operatorNames = map[Operator]string{
	FilterLT:          "LT",
	FilterLE:          "LE",
	FilterEQ:          "EQ",
	FilterGE:          "GE",
	FilterGT:          "GT",
	FilterNE:          "NE",
	FilterIN:          "IN",
	TransformSet:      "SET",
	TransformAppend:   "APPEND",
	TransformMultiply: "MULTIPLY",
	TransformAdd:      "ADD",
	TransformReverse:  "REVERSE",
}

// String implementa fmt.Stringer.
func (op Operator) String() string {
	if op == OperatorUnset {
		return "UNSET"
	}
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// IsFilter indica si op es un operador de filtro.
func (op Operator) IsFilter() bool {
	return op >= FilterLT && op <= FilterIN
}

// IsTransform indica si op es un operador de transformación soportado.
func (op Operator) IsTransform() bool {
	switch op {
	case TransformSet, TransformAppend, TransformMultiply, TransformAdd, TransformReverse:
		return true
	}
	return false
}

// ParseOperator acepta el nombre ("GE", "multiply") o el valor numérico.
func ParseOperator(s string) (Operator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return OperatorUnset, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		op := Operator(n)
		if _, ok := operatorNames[op]; !ok {
			return OperatorUnset, NewValidationError("operator", s, "unknown operator")
		}
		return op, nil
	}
	for op, name := range operatorNames {
		if strings.EqualFold(name, s) {
			return op, nil
		}
	}
	return OperatorUnset, NewValidationError("operator", s, "unknown operator")
}

// MarshalJSON serializa el valor numérico (null si no hay operador).
func (op Operator) MarshalJSON() ([]byte, error) {
	if op == OperatorUnset {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(int(op))), nil
}

// UnmarshalJSON acepta número, nombre o null.
func (op *Operator) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*op = OperatorUnset
		return nil
	}
	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}
	parsed, err := ParseOperator(raw)
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

// ReverseField es el campo centinela que denota la transformación REVERSE.
const ReverseField = "reverse"

// Expression es la tripleta (campo, valor, operador) de una regla atómica.
type Expression struct {
	Field    string
	Value    Value
	Operator Operator
}

// NewExpression valida y normaliza una expresión.
//
// Campo y operador no pueden faltar a la vez. El campo "reverse" (o el
// operador REVERSE) fuerza campo y valor vacíos.
func NewExpression(field string, value Value, op Operator) (Expression, error) {
	field = strings.TrimSpace(field)
	if field == "" && op == OperatorUnset {
		return Expression{}, NewValidationError("expression", nil, "field and operator cannot both be unset")
	}
	if strings.EqualFold(field, ReverseField) || op == TransformReverse {
		return Expression{Operator: TransformReverse}, nil
	}
	return Expression{Field: field, Value: value, Operator: op}, nil
}

// IsReverse indica si la expresión es la transformación estructural REVERSE.
func (e Expression) IsReverse() bool {
	return e.Operator == TransformReverse
}

// String implementa fmt.Stringer.
func (e Expression) String() string {
	if e.IsReverse() {
		return "REVERSE"
	}
	return fmt.Sprintf("%s %s %s", e.Field, e.Operator, e.Value)
}

type expressionJSON struct {
	Field    string   `json:"field,omitempty"`
	Value    Value    `json:"value"`
	Operator Operator `json:"operator"`
}

// MarshalJSON implementa json.Marshaler.
func (e Expression) MarshalJSON() ([]byte, error) {
	return json.Marshal(expressionJSON{Field: e.Field, Value: e.Value, Operator: e.Operator})
}

// UnmarshalJSON valida a través de NewExpression.
func (e *Expression) UnmarshalJSON(data []byte) error {
	raw := expressionJSON{Operator: OperatorUnset}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	expr, err := NewExpression(raw.Field, raw.Value, raw.Operator)
	if err != nil {
		return err
	}
	*e = expr
	return nil
}
