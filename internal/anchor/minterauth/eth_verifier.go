package minterauth

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/balancechain/core/pkg/nonce"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

// EthVerifier implements Verifier using go-ethereum's EIP-712 primitives.
type EthVerifier struct {
	config     Config
	nonceStore nonce.Store
	typedData  apitypes.TypedData
	logger     *zap.Logger
}

var _ Verifier = (*EthVerifier)(nil)

// NewEthVerifier creates a new minter-ownership verifier.
func NewEthVerifier(config Config, nonceStore nonce.Store, logger *zap.Logger) *EthVerifier {
	if config.TimestampTolerance == 0 {
		config.TimestampTolerance = DefaultTimestampTolerance
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"MinterOwnership": {
				{Name: "minterAddress", Type: "address"},
				{Name: "nonce", Type: "string"},
				{Name: "timestamp", Type: "uint256"},
			},
		},
		PrimaryType: "MinterOwnership",
		Domain: apitypes.TypedDataDomain{
			Name:              "BalanceChain Anchor",
			Version:           "1",
			ChainId:           (*apitypes.HexOrDecimal256)(big.NewInt(config.ChainID)),
			VerifyingContract: config.VerifyingContract,
		},
	}

	return &EthVerifier{
		config:     config,
		nonceStore: nonceStore,
		typedData:  typedData,
		logger:     logger,
	}
}

// VerifyOwnership verifies minter ownership with full nonce + timestamp handling.
func (v *EthVerifier) VerifyOwnership(
	ctx context.Context,
	address string,
	message OwnershipMessage,
	signature []byte,
) error {
	if !common.IsHexAddress(address) {
		return ErrInvalidAddress
	}

	if err := v.validateTimestamp(message.Timestamp); err != nil {
		return err
	}

	if err := v.nonceStore.Reserve(ctx, message.Nonce, address); err != nil {
		v.logger.Warn("minter nonce reservation failed",
			zap.String("address", address),
			zap.String("nonce", message.Nonce),
			zap.Error(err),
		)
		return fmt.Errorf("nonce validation failed: %w", err)
	}

	valid, err := v.VerifySignatureOnly(address, message, signature)
	if err != nil || !valid {
		if releaseErr := v.nonceStore.Release(ctx, message.Nonce, address); releaseErr != nil {
			v.logger.Error("failed to release minter nonce after verification failure",
				zap.String("address", address),
				zap.Error(releaseErr),
			)
		}
		if err != nil {
			return err
		}
		return ErrAddressMismatch
	}

	if err := v.nonceStore.MarkUsed(ctx, message.Nonce, address); err != nil {
		v.logger.Error("failed to mark minter nonce as used",
			zap.String("address", address),
			zap.Error(err),
		)
	}

	v.logger.Info("anchor minter ownership verified", zap.String("address", address))
	return nil
}

// VerifySignatureOnly verifies only the cryptographic signature.
func (v *EthVerifier) VerifySignatureOnly(
	address string,
	message OwnershipMessage,
	signature []byte,
) (bool, error) {
	if len(signature) != 65 {
		return false, ErrInvalidSignatureLen
	}

	messageMap := map[string]interface{}{
		"minterAddress": message.MinterAddress,
		"nonce":         message.Nonce,
		"timestamp":     big.NewInt(message.Timestamp),
	}

	domainSeparator, err := v.typedData.HashStruct("EIP712Domain", v.typedData.Domain.Map())
	if err != nil {
		return false, fmt.Errorf("failed to hash domain: %w", err)
	}

	messageHash, err := v.typedData.HashStruct("MinterOwnership", messageMap)
	if err != nil {
		return false, fmt.Errorf("failed to hash message: %w", err)
	}

	// \x19\x01 + domainSeparator + messageHash, byte-level (not string concat)
	rawData := make([]byte, 0, 66)
	rawData = append(rawData, 0x19, 0x01)
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, messageHash...)

	digest := crypto.Keccak256(rawData)

	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false, fmt.Errorf("failed to recover public key: %w", err)
	}

	recoveredAddr := crypto.PubkeyToAddress(*pubKey)
	return strings.EqualFold(recoveredAddr.Hex(), address), nil
}

func (v *EthVerifier) validateTimestamp(timestamp int64) error {
	msgTime := time.Unix(timestamp, 0)
	now := time.Now()

	if msgTime.Before(now.Add(-v.config.TimestampTolerance)) {
		return ErrSignatureExpired
	}
	if msgTime.After(now.Add(v.config.TimestampTolerance)) {
		return ErrSignatureFuture
	}
	return nil
}
