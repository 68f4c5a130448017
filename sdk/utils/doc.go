// Package utils provee utilidades comunes del copiador.
//
//   - UUID: GenerateUUIDv7 para identificadores ordenables por tiempo
//   - Timestamp: conversión entre time.Time y milisegundos Unix
//   - JSON: validación, compactado y framing line-delimited
package utils
