package domain

import (
	"encoding/json"
	"fmt"
)

// RuleSpec es la forma serializable de una regla atómica.
type RuleSpec struct {
	Kind     RuleKind `json:"type"`
	Field    string   `json:"field,omitempty"`
	Value    Value    `json:"value"`
	Operator Operator `json:"operator"`
}

// Build valida la especificación y construye la regla atómica.
//
// Si Kind está vacío se infiere del operador.
func (s RuleSpec) Build() (AtomicRule, error) {
	expr, err := NewExpression(s.Field, s.Value, s.Operator)
	if err != nil {
		return nil, err
	}
	kind := s.Kind
	if kind == "" {
		switch {
		case expr.Operator.IsFilter():
			kind = RuleKindFilter
		case expr.Operator.IsTransform():
			kind = RuleKindTransform
		}
	}
	switch kind {
	case RuleKindFilter:
		return NewFilterRule(expr)
	case RuleKindTransform:
		return NewTransformRule(expr)
	}
	return nil, NewValidationError("type", string(s.Kind), "rule type must be filter or transform")
}

// SpecOf retorna la especificación serializable de una regla.
func SpecOf(r AtomicRule) RuleSpec {
	e := r.Expression()
	return RuleSpec{Kind: r.Kind(), Field: e.Field, Value: e.Value, Operator: e.Operator}
}

// Specs retorna las especificaciones de la cadena en orden.
func (c *ComplexRule) Specs() []RuleSpec {
	out := make([]RuleSpec, 0, len(c.Rules))
	for _, r := range c.Rules {
		out = append(out, SpecOf(r))
	}
	return out
}

// MarshalJSON serializa la cadena como un arreglo de RuleSpec.
func (c *ComplexRule) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Specs())
}

// BuildRuleChain construye la cadena de una terminal a partir de especificaciones.
func BuildRuleChain(id TerminalID, specs []RuleSpec) (*ComplexRule, error) {
	rules := make([]AtomicRule, 0, len(specs))
	for i, spec := range specs {
		rule, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("rule #%d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return NewComplexRule(id, rules...), nil
}

// ParseRuleChain decodifica un arreglo JSON de RuleSpec.
//
// Un operador ausente se interpreta como OperatorUnset.
func ParseRuleChain(id TerminalID, data []byte) (*ComplexRule, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, NewValidationError("rules", string(data), "rule chain must be a JSON array: "+err.Error())
	}
	specs := make([]RuleSpec, 0, len(raws))
	for i, raw := range raws {
		spec := RuleSpec{Operator: OperatorUnset}
		if err := json.Unmarshal(raw, &spec); err != nil {
			return nil, fmt.Errorf("rule #%d: %w", i, err)
		}
		specs = append(specs, spec)
	}
	return BuildRuleChain(id, specs)
}
