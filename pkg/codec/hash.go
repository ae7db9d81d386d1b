package codec

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the lowercase hex-encoded SHA-256 digest of s's UTF-8 bytes
// (spec.md §4.1).
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// BlockHash computes the hash of a signed segment:
// SHA256(canonical(segment-without-signature) ∥ "|" ∥ signature_b64)
// (spec.md §4.1, load-bearing per §6).
func BlockHash(signable, signatureB64 string) string {
	return Hash(signable + "|" + signatureB64)
}
