package identity

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"fmt"
	"math/big"
)

// privateKeyHex renders an ECDSA private key's scalar as hex. It fills the
// encrypted backup export payload, and through Manager.PrivateKeyHex and
// PrivateKeyHexOf it is also returned unencrypted by the HTTP Create and
// Import responses.
func privateKeyHex(priv *ecdsa.PrivateKey) string {
	return hex.EncodeToString(priv.D.Bytes())
}

// parsePrivateKeyHex reverses privateKeyHex, reconstructing the full
// keypair (including the public point) from the scalar on the P-256
// curve.
func parsePrivateKeyHex(s string) (*ecdsa.PrivateKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("identity: decode private key hex: %w", err)
	}
	curve := elliptic.P256()
	d := new(big.Int).SetBytes(raw)
	x, y := curve.ScalarBaseMult(raw)
	priv := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         d,
	}
	return priv, nil
}
