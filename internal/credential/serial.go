package credential

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const serialLength = 16 // 16 bytes = 128 bits

// GenerateSerial generates a random URL-safe credential serial. Serials
// make two issuances for the same request distinguishable and are unique
// across the credentials table.
func GenerateSerial() (string, error) {
	bytes := make([]byte, serialLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate serial: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
