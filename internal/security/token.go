package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// NewOpaqueToken generates a random URL-safe token for refresh flows.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
