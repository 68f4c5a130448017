package utils

import (
	"bytes"
	"encoding/json"
)

// ValidateJSON verifica si los datos son JSON válido.
func ValidateJSON(data []byte) error {
	var js any
	return json.Unmarshal(data, &js)
}

// PrettyPrint formatea JSON con indentación para la CLI y debugging.
// Retorna el original si no es JSON válido.
func PrettyPrint(data []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}

// Compact compacta JSON removiendo espacios innecesarios.
func Compact(data []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return data
	}
	return buf.Bytes()
}

// EnsureNewlineBytes asegura que los bytes terminen con \n (line-delimited).
func EnsureNewlineBytes(data []byte) []byte {
	if len(data) == 0 || data[len(data)-1] != '\n' {
		return append(data, '\n')
	}
	return data
}
