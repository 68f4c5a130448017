// Package domain contiene las entidades, el motor de reglas y los errores del copiador.
//
// # Entidades
//
//   - Terminal: endpoint de trading; BRONZE expira a los 60 días salvo expire_at.
//   - Route: arista dirigida origen → destino con handshake de doble aceptación.
//   - Order: payload plano con esquema consultable en runtime (FieldTypes, Enums).
//
// # Motor de reglas
//
// Cada terminal tiene una cadena (ComplexRule) de reglas atómicas:
//
//	expr, _ := domain.NewExpression("volume", domain.NumberValue(2), domain.TransformMultiply)
//	double, _ := domain.NewTransformRule(expr)
//
//	expr, _ = domain.NewExpression("symbol", domain.StringValue("EUR"), domain.FilterIN)
//	onlyEUR, _ := domain.NewFilterRule(expr)
//
//	chain := domain.NewComplexRule(terminalID, onlyEUR, double)
//	out, ok, err := chain.Apply(msg)
//	// ok == false: el mensaje fue suprimido por algún filtro
//
// La legalidad de cada expresión depende del tipo declarado del campo
// (CheckFilter, CheckTransform) y se valida al construir la regla.
//
// # Errores
//
// Todos los errores de negocio son *CopierError con un ErrorCode:
//
//	if domain.IsCode(err, domain.ErrEntityNotFound) {
//	    // ...
//	}
package domain
