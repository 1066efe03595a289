package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKey hashes a secret lookup key so the raw value is never used as a
// cache or Redis key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
