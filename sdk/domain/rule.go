package domain

import "strings"

// Rule procesa un mensaje de trade.
//
// Retorna (msg, true, nil) si el mensaje sigue su curso y (_, false, nil) si la
// regla lo suprime. Ninguna implementación muta el mensaje de entrada.
type Rule interface {
	Apply(msg TradeMessage) (TradeMessage, bool, error)
}

// RuleKind discrimina las reglas atómicas.
type RuleKind string

const (
	RuleKindFilter    RuleKind = "filter"
	RuleKindTransform RuleKind = "transform"
)

// AtomicRule es una regla de filtro o de transformación.
//
// Conjunto cerrado: solo FilterRule y TransformRule la implementan.
type AtomicRule interface {
	Rule
	Kind() RuleKind
	Expression() Expression
	isAtomic()
}

// FilterRule deja pasar el mensaje cuando el predicado se cumple.
type FilterRule struct {
	expr Expression
}

// NewFilterRule valida la expresión contra el esquema de Order.
func NewFilterRule(expr Expression) (*FilterRule, error) {
	if err := CheckFilter(expr); err != nil {
		return nil, err
	}
	return &FilterRule{expr: expr}, nil
}

func (*FilterRule) isAtomic()                {}
func (*FilterRule) Kind() RuleKind           { return RuleKindFilter }
func (r *FilterRule) Expression() Expression { return r.expr }

// Apply implementa Rule.
func (r *FilterRule) Apply(msg TradeMessage) (TradeMessage, bool, error) {
	ok, err := r.Matches(&msg.Body)
	if err != nil {
		return msg, false, err
	}
	return msg, ok, nil
}

// Matches evalúa el predicado sobre la orden.
//
// Un campo opcional sin valor solo satisface NE.
func (r *FilterRule) Matches(o *Order) (bool, error) {
	cur, set, err := o.Field(r.expr.Field)
	if err != nil {
		return false, err
	}
	if !set {
		return r.expr.Operator == FilterNE, nil
	}

	want := r.expr.Value
	if cur.Kind == ValueString {
		switch r.expr.Operator {
		case FilterEQ:
			return cur.Str == want.Str, nil
		case FilterNE:
			return cur.Str != want.Str, nil
		case FilterIN:
			return strings.Contains(cur.Str, want.Str), nil
		}
		return false, NewValidationError(r.expr.Field, r.expr.Operator.String(), "operator not allowed for string field")
	}

	a, b := cur.Num, want.Num
	switch r.expr.Operator {
	case FilterLT:
		return a < b, nil
	case FilterLE:
		return a <= b, nil
	case FilterEQ:
		return a == b, nil
	case FilterGE:
		return a >= b, nil
	case FilterGT:
		return a > b, nil
	case FilterNE:
		return a != b, nil
	}
	return false, NewValidationError(r.expr.Field, r.expr.Operator.String(), "operator not allowed for numeric field")
}

// TransformRule reescribe un campo de la orden (o invierte la operación).
type TransformRule struct {
	expr Expression
}

// NewTransformRule valida la expresión contra el esquema de Order.
func NewTransformRule(expr Expression) (*TransformRule, error) {
	if err := CheckTransform(expr); err != nil {
		return nil, err
	}
	return &TransformRule{expr: expr}, nil
}

func (*TransformRule) isAtomic()                {}
func (*TransformRule) Kind() RuleKind           { return RuleKindTransform }
func (r *TransformRule) Expression() Expression { return r.expr }

// Apply implementa Rule. Nunca suprime: falla o retorna una copia transformada.
func (r *TransformRule) Apply(msg TradeMessage) (TradeMessage, bool, error) {
	out := msg.Clone()
	if err := r.transform(&out.Body); err != nil {
		return msg, false, err
	}
	return out, true, nil
}

func (r *TransformRule) transform(o *Order) error {
	e := r.expr
	switch e.Operator {
	case TransformReverse:
		return ReverseOrder(o)
	case TransformSet:
		return o.SetField(e.Field, e.Value)
	}

	cur, set, err := o.Field(e.Field)
	if err != nil {
		return err
	}
	switch e.Operator {
	case TransformAppend:
		prefix := ""
		if set {
			prefix = cur.Str
		}
		return o.SetField(e.Field, StringValue(prefix+e.Value.Str))
	case TransformAdd:
		if !set {
			return o.SetField(e.Field, e.Value)
		}
		return o.SetField(e.Field, NumberValue(cur.Num+e.Value.Num))
	case TransformMultiply:
		if !set {
			return o.SetField(e.Field, e.Value)
		}
		return o.SetField(e.Field, NumberValue(cur.Num*e.Value.Num))
	}
	return NewValidationError("operator", e.Operator.String(), "not a transform operator")
}

// ComplexRule es la cadena ordenada de reglas de una terminal.
//
// Pliegue por la izquierda: la primera supresión corta la cadena. Sin reglas
// se comporta como identidad.
type ComplexRule struct {
	TerminalID TerminalID
	Rules      []AtomicRule
}

// NewComplexRule construye la cadena de una terminal.
func NewComplexRule(id TerminalID, rules ...AtomicRule) *ComplexRule {
	return &ComplexRule{TerminalID: id, Rules: rules}
}

// Apply implementa Rule.
func (c *ComplexRule) Apply(msg TradeMessage) (TradeMessage, bool, error) {
	cur := msg
	for _, rule := range c.Rules {
		next, ok, err := rule.Apply(cur)
		if err != nil {
			return msg, false, err
		}
		if !ok {
			return msg, false, nil
		}
		cur = next
	}
	return cur, true, nil
}

// Len retorna la cantidad de reglas atómicas.
func (c *ComplexRule) Len() int {
	return len(c.Rules)
}
