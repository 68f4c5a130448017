package domain

import (
	"fmt"
	"slices"
)

// Operadores de filtro admitidos por tipo de campo. Los campos enumerados
// admiten solo igualdad.
var filterOperatorsByType = map[FieldType][]Operator{
	FieldInt:    {FilterLT, FilterLE, FilterEQ, FilterGE, FilterGT, FilterNE},
	FieldFloat:  {FilterLT, FilterLE, FilterEQ, FilterGE, FilterGT, FilterNE},
	FieldString: {FilterEQ, FilterNE, FilterIN},
}

var enumFilterOperators = []Operator{FilterEQ, FilterNE}

// Tipos de campo admitidos por operador de transformación.
var transformTypesByOperator = map[Operator][]FieldType{
	TransformSet:      {FieldInt, FieldFloat, FieldString},
	TransformMultiply: {FieldInt, FieldFloat},
	TransformAdd:      {FieldInt, FieldFloat},
	TransformAppend:   {FieldString},
	TransformReverse:  {},
}

// FilterOperatorsFor retorna los operadores de filtro legales para un campo.
func FilterOperatorsFor(field string) ([]Operator, error) {
	f, err := lookupField(field)
	if err != nil {
		return nil, err
	}
	if f.enum {
		return append([]Operator(nil), enumFilterOperators...), nil
	}
	return append([]Operator(nil), filterOperatorsByType[f.typ]...), nil
}

// TransformOperatorsFor retorna los operadores de transformación legales para un campo.
func TransformOperatorsFor(field string) ([]Operator, error) {
	f, err := lookupField(field)
	if err != nil {
		return nil, err
	}
	var out []Operator
	for _, op := range []Operator{TransformSet, TransformAppend, TransformMultiply, TransformAdd} {
		if !f.enum && slices.Contains(transformTypesByOperator[op], f.typ) {
			out = append(out, op)
		}
	}
	return out, nil
}

// CheckFilter valida una expresión de filtro contra el esquema de Order.
func CheckFilter(e Expression) error {
	if !e.Operator.IsFilter() {
		return NewValidationError("operator", e.Operator.String(), "not a filter operator")
	}
	ops, err := FilterOperatorsFor(e.Field)
	if err != nil {
		return err
	}
	if !slices.Contains(ops, e.Operator) {
		f, _ := lookupField(e.Field)
		return NewValidationError(e.Field, e.Operator.String(),
			fmt.Sprintf("operator not allowed for field type %s", f.typ))
	}
	f, _ := lookupField(e.Field)
	return checkLiteral(f, e.Value)
}

// IsLegalFilter indica si la expresión es un filtro válido.
func IsLegalFilter(e Expression) bool {
	return CheckFilter(e) == nil
}

// CheckTransform valida una expresión de transformación contra el esquema de Order.
func CheckTransform(e Expression) error {
	if !e.Operator.IsTransform() {
		return NewValidationError("operator", e.Operator.String(), "not a transform operator")
	}
	if e.IsReverse() {
		return nil
	}
	f, err := lookupField(e.Field)
	if err != nil {
		return err
	}
	if f.enum || !slices.Contains(transformTypesByOperator[e.Operator], f.typ) {
		return NewValidationError(e.Field, e.Operator.String(),
			fmt.Sprintf("operator not allowed for field type %s", f.typ))
	}
	if f.set == nil {
		return NewValidationError(e.Field, e.Operator.String(), "field is read-only")
	}
	return checkLiteral(f, e.Value)
}

// IsLegalTransform indica si la expresión es una transformación válida.
func IsLegalTransform(e Expression) bool {
	return CheckTransform(e) == nil
}
