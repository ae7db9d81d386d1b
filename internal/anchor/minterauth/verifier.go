// Package minterauth proves control of the Ethereum-side minter key used by
// the anchor worker before that worker is allowed to submit chain_head
// commitments on-chain. It is independent of the per-identity P-256 ledger
// signatures validated by internal/validator: the minter key is a regular
// secp256k1 EOA key, verified with EIP-712 the way a wallet-linking flow
// would.
package minterauth

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultTimestampTolerance is the default allowed time drift for signatures.
	DefaultTimestampTolerance = 5 * time.Minute
)

// OwnershipMessage is the EIP-712 typed data message an operator signs with
// the anchor worker's minter key to prove they control it.
type OwnershipMessage struct {
	MinterAddress string `json:"minterAddress"`
	Nonce         string `json:"nonce"`
	Timestamp     int64  `json:"timestamp"`
}

// Config holds EIP-712 domain configuration for the anchor contract.
type Config struct {
	ChainID            int64
	VerifyingContract  string
	TimestampTolerance time.Duration
}

// Verifier proves ownership of the anchor worker's minter address.
type Verifier interface {
	// VerifyOwnership verifies minter ownership using an EIP-712 signature.
	// Includes nonce reservation, timestamp validation, and signature
	// verification.
	VerifyOwnership(ctx context.Context, address string, message OwnershipMessage, signature []byte) error

	// VerifySignatureOnly verifies only the cryptographic signature without
	// nonce handling. Used for testing or when nonce is managed externally.
	VerifySignatureOnly(address string, message OwnershipMessage, signature []byte) (bool, error)
}

// Error definitions
var (
	ErrSignatureExpired   = errors.New("signature timestamp expired")
	ErrSignatureFuture    = errors.New("signature timestamp is in the future")
	ErrInvalidAddress     = errors.New("invalid ethereum address")
	ErrAddressMismatch    = errors.New("recovered address does not match minter address")
	ErrInvalidSignatureLen = errors.New("signature must be 65 bytes")
)
