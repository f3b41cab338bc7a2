package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashOwnerKey returns a path-safe, non-reversible directory name for an owner.
func HashOwnerKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
