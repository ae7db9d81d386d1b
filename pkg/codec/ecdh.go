package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
)

// ECDHKeyPair is an ephemeral or long-lived P-256 ECDH key exchange
// pair, exposed for P2P session-key negotiation (spec.md §4.1). It is
// independent of the identity's long-lived signing KeyPair.
type ECDHKeyPair struct {
	Private *ecdh.PrivateKey
	Public  *ecdh.PublicKey
}

// GenerateECDHKeyPair creates a new P-256 ECDH keypair.
func GenerateECDHKeyPair() (*ECDHKeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("codec: generate ecdh key: %w", err)
	}
	return &ECDHKeyPair{Private: priv, Public: priv.PublicKey()}, nil
}

// SharedSecret derives the raw ECDH shared secret with a peer's public key.
// Callers should not use the raw secret directly as an AES key; derive one
// with a KDF (e.g. SHA-256 of the secret) first.
func (kp *ECDHKeyPair) SharedSecret(peerPublic *ecdh.PublicKey) ([]byte, error) {
	secret, err := kp.Private.ECDH(peerPublic)
	if err != nil {
		return nil, fmt.Errorf("codec: ecdh exchange: %w", err)
	}
	return secret, nil
}

// SealAESGCM encrypts plaintext with a 256-bit AES-GCM key, returning
// nonce ∥ ciphertext. Used for P2P session payloads once an ECDH shared
// secret has been reduced to a 32-byte key (spec.md §4.1).
func SealAESGCM(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("codec: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("codec: gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("codec: nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// OpenAESGCM reverses SealAESGCM.
func OpenAESGCM(key, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("codec: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("codec: gcm: %w", err)
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("codec: sealed payload too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
