package utils

import "github.com/google/uuid"

// GenerateUUIDv7 genera un UUID v7 (ordenable por tiempo).
//
// Example:
//
//	id := utils.GenerateUUIDv7()
//	// => "018f3c5e-9b2a-7c1d-8e4f-1a2b3c4d5e6f"
func GenerateUUIDv7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
