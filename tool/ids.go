package tool

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

const (
	shortIDBytes = 4
	maxIDLen     = 64
)

// NewSessionID returns a fresh session id for uploads that did not bring their own.
func NewSessionID() string {
	return uuid.NewString()
}

// NewShortID returns 8 hex characters for download links.
func NewShortID() string {
	b := make([]byte, shortIDBytes)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()[:2*shortIDBytes]
	}
	return hex.EncodeToString(b)
}

// ValidID reports whether id can name a directory under the output folder.
func ValidID(id string) bool {
	if id == "" || len(id) > maxIDLen {
		return false
	}
	for _, r := range id {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-') {
			return false
		}
	}
	return true
}
