package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the SHA-256 hex digest of message. It hashes the bytes
// as given; callers pass the message already trimmed of surrounding
// whitespace, the same form that is stored on the audit record.
func Fingerprint(message string) string {
	hash := sha256.Sum256([]byte(message))
	return hex.EncodeToString(hash[:])
}
