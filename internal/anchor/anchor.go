// Package anchor periodically commits each identity's chain_head to an
// EVM contract call, giving BalanceChain an external, tamper-evident
// audit trail alongside its own SHA-256/ECDSA integrity scan
// (internal/integrity). Anchoring is advisory: the core's chain
// validity never depends on the EVM being reachable.
package anchor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/balancechain/core/internal/config"
)

// Submitter sends one identity's chain_head to the anchor contract and
// returns the submitted transaction hash. A narrow interface so the
// worker loop can be tested without a live RPC endpoint.
type Submitter interface {
	Submit(ctx context.Context, hid, chainHead string, seq int64) (txHash string, err error)
}

// Client submits anchor transactions over go-ethereum's ethclient,
// signing with the minter's secp256k1 key — distinct from the P-256
// per-identity ledger key (spec.md §4.1) and never used to validate a
// segment.
type Client struct {
	eth              *ethclient.Client
	minter           *ecdsa.PrivateKey
	minterAddress    common.Address
	contractAddress  common.Address
	chainID          *big.Int
	requiredConfirms uint64
	txTimeout        time.Duration
	logger           *zap.Logger
}

// Dial connects to the configured RPC endpoint and parses the minter
// key and contract address.
func Dial(ctx context.Context, cfg config.AnchorConfig, logger *zap.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("anchor: dial rpc: %w", err)
	}

	key, err := crypto.HexToECDSA(trimHexPrefix(cfg.MinterPrivateKey))
	if err != nil {
		return nil, fmt.Errorf("anchor: parse minter key: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("anchor: fetch chain id: %w", err)
	}

	return &Client{
		eth:              eth,
		minter:           key,
		minterAddress:    crypto.PubkeyToAddress(key.PublicKey),
		contractAddress:  common.HexToAddress(cfg.ContractAddress),
		chainID:          chainID,
		requiredConfirms: uint64(cfg.RequiredConfirms),
		txTimeout:        cfg.TxTimeout,
		logger:           logger,
	}, nil
}

var _ Submitter = (*Client)(nil)

// Submit sends a transaction to the anchor contract whose calldata is
// the identity's hid, chain_head and seq joined with "|" (see calldata).
// There is no ABI in scope (no contract source was retrieved),
// so this submits raw calldata rather than a typed contract call — the
// contract is expected to accept and log arbitrary calldata per anchor
// transaction, which is sufficient for an external audit trail.
func (c *Client) Submit(ctx context.Context, hid, chainHead string, seq int64) (string, error) {
	submitCtx, cancel := context.WithTimeout(ctx, c.txTimeout)
	defer cancel()

	nonce, err := c.eth.PendingNonceAt(submitCtx, c.minterAddress)
	if err != nil {
		return "", fmt.Errorf("anchor: fetch nonce: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(submitCtx)
	if err != nil {
		return "", fmt.Errorf("anchor: suggest gas price: %w", err)
	}

	data := calldata(hid, chainHead, seq)

	msg := ethereum.CallMsg{
		From: c.minterAddress,
		To:   &c.contractAddress,
		Data: data,
	}
	gasLimit, err := c.eth.EstimateGas(submitCtx, msg)
	if err != nil {
		return "", fmt.Errorf("anchor: estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.contractAddress,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signer := types.NewEIP155Signer(c.chainID)
	signedTx, err := types.SignTx(tx, signer, c.minter)
	if err != nil {
		return "", fmt.Errorf("anchor: sign tx: %w", err)
	}

	if err := c.eth.SendTransaction(submitCtx, signedTx); err != nil {
		return "", fmt.Errorf("anchor: send tx: %w", err)
	}

	txHash := signedTx.Hash().Hex()
	c.logger.Info("anchor transaction submitted",
		zap.String("hid", hid), zap.Int64("seq", seq), zap.String("txHash", txHash))

	if c.requiredConfirms > 0 {
		if err := c.waitMined(submitCtx, signedTx.Hash()); err != nil {
			return txHash, fmt.Errorf("anchor: wait mined: %w", err)
		}
	}

	return txHash, nil
}

// waitMined polls for the transaction receipt and enough confirming
// blocks on top of it, the way the teacher's wallet verification flow
// polls for state rather than subscribing to events.
func (c *Client) waitMined(ctx context.Context, txHash common.Hash) error {
	for {
		receipt, err := c.eth.TransactionReceipt(ctx, txHash)
		if err == nil {
			head, err := c.eth.BlockNumber(ctx)
			if err != nil {
				return err
			}
			if head >= receipt.BlockNumber.Uint64()+c.requiredConfirms-1 {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func calldata(hid, chainHead string, seq int64) []byte {
	payload := fmt.Sprintf("%s|%s|%d", hid, chainHead, seq)
	return []byte(payload)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// AddressHex returns the minter's checksummed address, for startup
// logging and operator verification against the configured minter key.
func (c *Client) AddressHex() string {
	return c.minterAddress.Hex()
}

// ChainID returns the RPC-reported chain id, used to configure
// minterauth's EIP-712 domain with the same chain the minter actually
// transacts on.
func (c *Client) ChainID() *big.Int {
	return c.chainID
}
