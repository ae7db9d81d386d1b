// Package segment builds, signs, and canonically encodes BalanceChain
// segments — the chain's atomic signed record (spec.md §3, §4.3).
package segment

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/balancechain/core/internal/protocol"
	"github.com/balancechain/core/pkg/codec"
)

// Type is the closed set of segment type tags (spec.md §3).
type Type string

const (
	TypeChatUser         Type = "chat.user"
	TypeAIAdvice         Type = "ai.advice"
	TypeBizDecision      Type = "biz.decision"
	TypeBizOutcome       Type = "biz.outcome"
	TypeCapsuleMint      Type = "capsule.mint"
	TypeTVMTransfer      Type = "tvm.transfer"
	TypeChatAppendLegacy Type = "chat.append-legacy"
)

// ValidTypes is the closed set structural validation checks membership
// against.
var ValidTypes = map[Type]bool{
	TypeChatUser:         true,
	TypeAIAdvice:         true,
	TypeBizDecision:      true,
	TypeBizOutcome:       true,
	TypeCapsuleMint:      true,
	TypeTVMTransfer:      true,
	TypeChatAppendLegacy: true,
}

// CapAffecting returns whether committing a segment of this type increments
// the Caps counters (spec.md §4.5).
func (t Type) CapAffecting() bool {
	switch t {
	case TypeChatUser, TypeAIAdvice, TypeBizDecision, TypeCapsuleMint:
		return true
	default:
		return false
	}
}

// MessageBearing returns whether this type produces a message projection
// record (spec.md §3 MessageView, §4.5). Chat and business-flow types all
// carry a chatId and belong to the per-chat timeline; capsule.mint and
// tvm.transfer do not reference a chat and are excluded.
func (t Type) MessageBearing() bool {
	switch t {
	case TypeChatUser, TypeAIAdvice, TypeChatAppendLegacy, TypeBizDecision, TypeBizOutcome:
		return true
	default:
		return false
	}
}

// Author is the portable author record carried on every segment: the HID
// and a public key in a form sufficient to verify the signature.
type Author struct {
	HID       string `json:"hid"`
	Algorithm string `json:"algorithm"`
	PublicKey string `json:"pubkey"`
}

// ToMap renders the author record in Canonical-compatible form.
func (a Author) ToMap() map[string]any {
	return map[string]any{
		"hid":       a.HID,
		"algorithm": a.Algorithm,
		"pubkey":    a.PublicKey,
	}
}

// Segment is the chain's atomic record (spec.md §3).
type Segment struct {
	Version        int            `json:"version"`
	Seq            int64          `json:"seq"`
	Timestamp      int64          `json:"timestamp"`
	Nonce          string         `json:"nonce"`
	Type           Type           `json:"type"`
	Payload        map[string]any `json:"payload"`
	PrevHash       string         `json:"prevHash"`
	UnlockerRef    *string        `json:"unlockerRef,omitempty"`
	UnlockedRef    *string        `json:"unlockedRef,omitempty"`
	PreviousOwner  *string        `json:"previousOwner,omitempty"`
	CurrentOwner   string         `json:"currentOwner"`
	Author         Author         `json:"author"`
	Signature      string         `json:"signature"`
}

// ID returns the projection reference form `"{seq}:{nonce}"` (spec.md §3).
func (s *Segment) ID() string {
	return fmt.Sprintf("%d:%s", s.Seq, s.Nonce)
}

// nonceHex generates a fresh 16-byte random nonce, hex encoded (32 hex
// chars), per spec.md §3 and protocol.NonceLength.
func nonceHex() (string, error) {
	buf := make([]byte, protocol.NonceLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("segment: generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Build produces an unsigned segment with timestamp = now and a freshly
// generated nonce (spec.md §4.3).
func Build(author Author, prevHash string, seq int64, typ Type, payload map[string]any, previousOwner, unlockerRef, unlockedRef *string) (*Segment, error) {
	nonce, err := nonceHex()
	if err != nil {
		return nil, err
	}
	return &Segment{
		Version:       protocol.Version,
		Seq:           seq,
		Timestamp:     time.Now().UnixMilli(),
		Nonce:         nonce,
		Type:          typ,
		Payload:       payload,
		PrevHash:      prevHash,
		UnlockerRef:   unlockerRef,
		UnlockedRef:   unlockedRef,
		PreviousOwner: previousOwner,
		CurrentOwner:  author.HID,
		Author:        author,
	}, nil
}

// toMap renders s as a Canonical-compatible map, optionally including the
// signature field.
func (s *Segment) toMap(includeSignature bool) map[string]any {
	m := map[string]any{
		"version":      s.Version,
		"seq":          s.Seq,
		"timestamp":    s.Timestamp,
		"nonce":        s.Nonce,
		"type":         string(s.Type),
		"payload":      s.Payload,
		"prevHash":     s.PrevHash,
		"currentOwner": s.CurrentOwner,
		"author":       s.Author.ToMap(),
	}
	if s.UnlockerRef != nil {
		m["unlockerRef"] = *s.UnlockerRef
	} else {
		m["unlockerRef"] = codec.Undefined{}
	}
	if s.UnlockedRef != nil {
		m["unlockedRef"] = *s.UnlockedRef
	} else {
		m["unlockedRef"] = codec.Undefined{}
	}
	if s.PreviousOwner != nil {
		m["previousOwner"] = *s.PreviousOwner
	} else {
		m["previousOwner"] = codec.Undefined{}
	}
	if includeSignature {
		m["signature"] = s.Signature
	}
	return m
}

// Signable returns the canonical encoding of s excluding the signature field
// (spec.md §4.1, §4.3).
func (s *Segment) Signable() (string, error) {
	return codec.Canonical(s.toMap(false))
}

// Sign signs s with priv and attaches the resulting signature (spec.md
// §4.3).
func (s *Segment) Sign(priv *ecdsa.PrivateKey) error {
	signable, err := s.Signable()
	if err != nil {
		return err
	}
	sig, err := codec.Sign(priv, signable)
	if err != nil {
		return err
	}
	s.Signature = sig
	return nil
}

// Hash computes the block hash of a signed segment:
// SHA256(canonical(signable) ∥ "|" ∥ signature_b64) (spec.md §4.1, §6).
func (s *Segment) Hash() (string, error) {
	signable, err := s.Signable()
	if err != nil {
		return "", err
	}
	return codec.BlockHash(signable, s.Signature), nil
}

// VerifySignature verifies s.Signature against s.Author.PublicKey over
// Signable (spec.md §4.4 rule 8).
func (s *Segment) VerifySignature() (bool, error) {
	pub, err := codec.ParsePublicKeyHex(s.Author.PublicKey)
	if err != nil {
		return false, err
	}
	signable, err := s.Signable()
	if err != nil {
		return false, err
	}
	return codec.Verify(pub, signable, s.Signature), nil
}
