package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashSHA256 is the one-way hash applied to session numbers and refresh
// tokens before they touch storage. Raw values are never persisted.
func HashSHA256(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
