package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken hashes an opaque bearer token for storage and lookup. Tokens are
// minted by the external identity service; only their hashes live here.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
