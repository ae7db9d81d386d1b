package codec

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// AlgorithmP256SHA256 is the default signing algorithm tag. Segments carry
// this tag on their author record so a future post-quantum algorithm can
// be introduced without breaking the wire format (spec.md §3, §4.1).
const AlgorithmP256SHA256 = "ECDSA-P256-SHA256"

var ErrUnsupportedAlgorithm = errors.New("codec: unsupported signing algorithm")

// KeyPair is a long-lived P-256 ECDSA signing keypair (spec.md §3 Identity).
type KeyPair struct {
	Algorithm  string
	PrivateKey *ecdsa.PrivateKey
}

// GenerateKeyPair creates a new P-256 ECDSA keypair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("codec: generate key: %w", err)
	}
	return &KeyPair{Algorithm: AlgorithmP256SHA256, PrivateKey: priv}, nil
}

// PublicKeyHex returns the portable form of a public key: the SEC1
// compressed point, hex-encoded. This is the form carried on a segment's
// author record and fed to HID derivation.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return hex.EncodeToString(elliptic.MarshalCompressed(pub.Curve, pub.X, pub.Y))
}

// ParsePublicKeyHex parses the portable hex form back into a public key.
func ParsePublicKeyHex(s string) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("codec: decode public key hex: %w", err)
	}
	curve := elliptic.P256()
	x, y := elliptic.UnmarshalCompressed(curve, raw)
	if x == nil {
		return nil, errors.New("codec: invalid compressed public key")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// DeriveHID computes an identity's stable public identifier: the first 8
// hex characters of SHA-256 over the canonical author public-key encoding,
// uppercase, prefixed `HID-` (spec.md §3, GLOSSARY).
func DeriveHID(pubKeyHex string) (string, error) {
	canonical, err := Canonical(map[string]any{
		"algorithm": AlgorithmP256SHA256,
		"pubkey":    pubKeyHex,
	})
	if err != nil {
		return "", err
	}
	digest := Hash(canonical)
	return "HID-" + toUpper(digest[:8]), nil
}

func toUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// Sign signs the canonical signable string, returning a base64-encoded
// ASN.1 DER signature (spec.md §4.1).
func Sign(priv *ecdsa.PrivateKey, signable string) (string, error) {
	digest := sha256.Sum256([]byte(signable))
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		return "", fmt.Errorf("codec: sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks an ECDSA P-256/SHA-256 signature over the canonical
// signable string against the given public key (spec.md §4.1, §4.4 rule 8).
// Verify is a pure function of (public key, canonical signable, signature):
// any change to either flips the result to false.
func Verify(pub *ecdsa.PublicKey, signable, signatureB64 string) bool {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}
	digest := sha256.Sum256([]byte(signable))
	return ecdsa.VerifyASN1(pub, digest[:], sig)
}
