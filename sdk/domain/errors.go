package domain

import (
	"errors"
	"fmt"
)

// ErrorCode representa un código de error del dominio del copiador.
type ErrorCode string

// Códigos de error estándar
const (
	// Expresión o regla mal formada
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Errores del grafo de rutas
	ErrInvalidRoute  ErrorCode = "INVALID_ROUTE"
	ErrTooManyRoutes ErrorCode = "TOO_MANY_ROUTES"

	// Entidad inexistente (terminal, ruta o cadena de reglas)
	ErrEntityNotFound ErrorCode = "ENTITY_NOT_FOUND"

	// REVERSE sobre un tipo de orden no soportado o stops sin offset
	ErrUnsupportedTransform ErrorCode = "UNSUPPORTED_TRANSFORM"

	// Errores de sistema
	ErrInternal ErrorCode = "INTERNAL"
)

// CopierError representa un error del dominio con contexto.
type CopierError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implementa la interfaz error.
func (e *CopierError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implementa la interfaz errors.Unwrap.
func (e *CopierError) Unwrap() error {
	return e.Wrapped
}

// WithDetail agrega un detalle al error.
func (e *CopierError) WithDetail(key string, value interface{}) *CopierError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewError crea un nuevo CopierError.
//
// Example:
//
//	err := domain.NewError(domain.ErrInvalidRoute, "source and destination are the same terminal")
func NewError(code ErrorCode, message string) *CopierError {
	return &CopierError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError envuelve un error existente con contexto del dominio.
func WrapError(code ErrorCode, message string, wrapped error) *CopierError {
	return &CopierError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: wrapped,
	}
}

// CodeOf extrae el código del primer CopierError en la cadena.
//
// Los ValidationError se clasifican como ErrValidation. Cualquier otro error
// retorna ErrInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ce *CopierError
	if errors.As(err, &ce) {
		return ce.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ErrValidation
	}
	return ErrInternal
}

// IsCode indica si err (o algún error envuelto) tiene el código dado.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// ValidationError representa un error de validación.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implementa la interfaz error.
func (v *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s' with value '%v': %s", v.Field, v.Value, v.Message)
}

// NewValidationError crea un nuevo ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}
