package stub

import (
	"crypto/sha256"
	"crypto/sha512"

	"github.com/mr-tron/base58"
)

// Signature returns a deterministic, well-formed transaction signature for seed.
func Signature(seed string) string {
	h := sha512.Sum512([]byte(seed))
	return base58.Encode(h[:])
}

// Address returns a deterministic, well-formed 32-byte address for seed.
// The result is not guaranteed to be an ed25519 point.
func Address(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return base58.Encode(h[:])
}
