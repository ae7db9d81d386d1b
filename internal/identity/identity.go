// Package identity manages the long-lived signing keypair, biometric
// liveness proof wrapping, and encrypted backup export/import for one
// Identity (spec.md §3 Identity, §4.1, §6).
package identity

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"time"

	balerrors "github.com/balancechain/core/internal/common/errors"
	"github.com/balancechain/core/internal/segment"
	"github.com/balancechain/core/internal/store"
	"github.com/balancechain/core/pkg/codec"
)

// backupPayload is the JSON form encrypted into a backup blob (spec.md
// §6 "Encrypted identity backup").
type backupPayload struct {
	Version    int    `json:"version"`
	HID        string `json:"hid"`
	PubKey     string `json:"pubkey"`
	PrivateKey string `json:"private_key"`
	CreatedAt  int64  `json:"createdAt"`
	ExportedAt int64  `json:"exportedAt"`
}

// Manager holds one identity's private key in memory and never lets it
// leave (spec.md §5 "Identity private keys are held by the identity
// manager and never leave it; signing is requested through a narrow
// sign(signable) → signature interface").
type Manager struct {
	store      *store.Store
	keyPair    *codec.KeyPair
	hid        string
	createdVia string
}

// Create generates a fresh keypair, derives its HID, and persists the
// public identity record (spec.md §3 Identity "created on first use").
// createdVia records provenance (e.g. "generated", "webauthn",
// "restored") — an ambient field this service adds for audit purposes.
func Create(ctx context.Context, s *store.Store, createdVia string) (*Manager, error) {
	kp, err := codec.GenerateKeyPair()
	if err != nil {
		return nil, balerrors.Internal(fmt.Sprintf("identity: generate key: %v", err))
	}
	pubHex := codec.PublicKeyHex(&kp.PrivateKey.PublicKey)
	hid, err := codec.DeriveHID(pubHex)
	if err != nil {
		return nil, balerrors.Internal(fmt.Sprintf("identity: derive hid: %v", err))
	}

	rec := store.IdentityRecord{
		HID: hid, Algorithm: kp.Algorithm, PublicKey: pubHex,
		CreatedVia: createdVia, CreatedAt: time.Now().UnixMilli(),
	}
	if err := s.SaveIdentity(ctx, rec); err != nil {
		return nil, balerrors.DBError(err)
	}

	return &Manager{store: s, keyPair: kp, hid: hid, createdVia: createdVia}, nil
}

// Load reconstructs a Manager from a previously generated private key and
// the matching persisted identity record, used after process restart
// when the caller has retained the key (e.g. via Export/Import) rather
// than generating a fresh one.
func Load(ctx context.Context, s *store.Store, priv *ecdsa.PrivateKey) (*Manager, error) {
	pubHex := codec.PublicKeyHex(&priv.PublicKey)
	hid, err := codec.DeriveHID(pubHex)
	if err != nil {
		return nil, balerrors.Internal(fmt.Sprintf("identity: derive hid: %v", err))
	}
	rec, err := s.GetIdentity(ctx, hid)
	if err != nil {
		return nil, balerrors.DBError(err)
	}
	if rec == nil {
		return nil, balerrors.NotFound("identity")
	}
	return &Manager{
		store:      s,
		keyPair:    &codec.KeyPair{Algorithm: rec.Algorithm, PrivateKey: priv},
		hid:        hid,
		createdVia: rec.CreatedVia,
	}, nil
}

// HID returns the identity's stable public identifier.
func (m *Manager) HID() string { return m.hid }

// Author returns the portable author record carried on every segment
// this identity signs.
func (m *Manager) Author() segment.Author {
	return segment.Author{
		HID:       m.hid,
		Algorithm: m.keyPair.Algorithm,
		PublicKey: codec.PublicKeyHex(&m.keyPair.PrivateKey.PublicKey),
	}
}

// Sign implements chain.Signer: the chain requests a signature through
// this narrow interface and never sees the private key itself.
func (m *Manager) Sign(s *segment.Segment) error {
	return s.Sign(m.keyPair.PrivateKey)
}

// PrivateKeyHex renders the held key as hex. This is the one deliberate
// exception to "never leave the identity manager" (spec.md §5): the HTTP
// Create endpoint hands the key to its caller exactly once, the same
// moment a local Manager would hand it to its caller in-process.
func (m *Manager) PrivateKeyHex() string {
	return privateKeyHex(m.keyPair.PrivateKey)
}

// PrivateKeyHexOf renders an arbitrary key as hex, for callers that hold
// one outside a Manager (e.g. a freshly Import-ed key awaiting a
// restore decision).
func PrivateKeyHexOf(priv *ecdsa.PrivateKey) string {
	return privateKeyHex(priv)
}

// Export produces an encrypted backup blob of this identity's private
// key material (spec.md §6 "Encrypted identity backup").
func (m *Manager) Export(password string) ([]byte, error) {
	payload := backupPayload{
		Version:    1,
		HID:        m.hid,
		PubKey:     codec.PublicKeyHex(&m.keyPair.PrivateKey.PublicKey),
		PrivateKey: privateKeyHex(m.keyPair.PrivateKey),
		CreatedAt:  time.Now().UnixMilli(),
		ExportedAt: time.Now().UnixMilli(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, balerrors.Internal(fmt.Sprintf("identity: marshal backup: %v", err))
	}
	blob, err := codec.EncryptBackup(password, raw)
	if err != nil {
		return nil, balerrors.Internal(fmt.Sprintf("identity: encrypt backup: %v", err))
	}
	return blob, nil
}

// Import decrypts a backup blob and reconstructs the private key,
// without touching the store — the caller decides whether and how to
// reconcile against the current chain via internal/integrity's
// BackupEligibility before trusting it (spec.md §4.8 "no restore
// without sync").
func Import(password string, blob []byte) (priv *ecdsa.PrivateKey, hid string, err error) {
	raw, err := codec.DecryptBackup(password, blob)
	if err != nil {
		return nil, "", balerrors.Unauthorized(err.Error())
	}
	var payload backupPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, "", balerrors.Internal(fmt.Sprintf("identity: unmarshal backup: %v", err))
	}
	if payload.Version != 1 {
		return nil, "", balerrors.Internal("identity: unsupported backup version")
	}
	priv, err = parsePrivateKeyHex(payload.PrivateKey)
	if err != nil {
		return nil, "", balerrors.Internal(fmt.Sprintf("identity: parse private key: %v", err))
	}
	return priv, payload.HID, nil
}

// LivenessProof is a biometric/timestamp assertion attached to a
// cap-affecting segment's payload (spec.md §6).
type LivenessProof struct {
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Assertion map[string]any `json:"assertion,omitempty"`
	Nonce     string         `json:"nonce,omitempty"`
}

// ToPayload renders a liveness proof in the shape the validator expects
// under the "liveness" payload key.
func (p LivenessProof) ToPayload() map[string]any {
	m := map[string]any{"type": p.Type, "timestamp": p.Timestamp}
	if p.Assertion != nil {
		m["assertion"] = p.Assertion
	}
	if p.Nonce != "" {
		m["nonce"] = p.Nonce
	}
	return m
}
