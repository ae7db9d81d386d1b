package api

import (
	"github.com/balancechain/core/internal/caps"
	"github.com/balancechain/core/internal/capsules"
	"github.com/balancechain/core/internal/projections"
	"github.com/balancechain/core/internal/segment"
	"github.com/balancechain/core/internal/store"
)

// CreateIdentityResponse is returned once, at Create time, and carries the
// private key in the clear (spec.md §5, §6 "Encrypted identity backup");
// ImportIdentityResponse is the only other response that returns one.
// Callers are expected to hold it client-side from then on.
type CreateIdentityResponse struct {
	HID        string `json:"hid"`
	Algorithm  string `json:"algorithm"`
	PublicKey  string `json:"pubkey"`
	PrivateKey string `json:"privateKey"`
}

// ImportIdentityRequest decrypts an exported backup blob to recover a
// private key, without restoring anything server-side (spec.md §4.8
// "no restore without sync" is decided by the caller against
// BackupEligibility, not by this endpoint).
type ImportIdentityRequest struct {
	Password string `json:"password" binding:"required"`
	Backup   string `json:"backup" binding:"required"` // base64
}

type ImportIdentityResponse struct {
	HID        string `json:"hid"`
	PrivateKey string `json:"privateKey"`
}

type IdentityResponse struct {
	HID        string `json:"hid"`
	Algorithm  string `json:"algorithm"`
	PublicKey  string `json:"pubkey"`
	CreatedVia string `json:"createdVia"`
	CreatedAt  int64  `json:"createdAt"`
}

func toIdentityResponse(rec *store.IdentityRecord) IdentityResponse {
	return IdentityResponse{
		HID: rec.HID, Algorithm: rec.Algorithm, PublicKey: rec.PublicKey,
		CreatedVia: rec.CreatedVia, CreatedAt: rec.CreatedAt,
	}
}

// HeadResponse reports an identity's current chain position.
type HeadResponse struct {
	HID             string `json:"hid"`
	ChainHead       string `json:"chainHead"`
	ChainLen        int64  `json:"chainLen"`
	ReadOnlyEnabled bool   `json:"readOnlyEnabled"`
	ReadOnlyReason  string `json:"readOnlyReason,omitempty"`
}

func toHeadResponse(meta *store.MetaRow) HeadResponse {
	return HeadResponse{
		HID: meta.HID, ChainHead: meta.ChainHead, ChainLen: meta.ChainLen,
		ReadOnlyEnabled: meta.ReadOnlyEnabled, ReadOnlyReason: meta.ReadOnlyReason,
	}
}

// CommitSegmentRequest wraps the segment the caller's own identity
// manager already built and signed (spec.md §5 "private key never
// leaves the identity manager"). The server only validates and persists
// it.
type CommitSegmentRequest struct {
	Segment *segment.Segment `json:"segment" binding:"required"`
}

type CommitSegmentResponse struct {
	Head  string                 `json:"head"`
	Seq   int64                  `json:"seq"`
	State projections.ScoreState `json:"state"`
}

type CreateCapsuleRequest struct {
	SessionID string            `json:"sessionId" binding:"required"`
	Messages  []string          `json:"messages" binding:"required"`
	Analysis  capsules.Analysis `json:"analysis"`
}

type CapsuleResponse struct {
	ID            string  `json:"id"`
	HID           string  `json:"hid"`
	SessionID     string  `json:"sessionId"`
	RichScore     float64 `json:"richScore"`
	BusinessScore float64 `json:"businessScore"`
	ECFScore      float64 `json:"ecfScore"`
	Motivator     string  `json:"motivator"`
	Category      string  `json:"category"`
	ContentHash   string  `json:"contentHash"`
	Status        string  `json:"status"`
	Reason        string  `json:"reason,omitempty"`
	MintSeq       *int64  `json:"mintSeq,omitempty"`
}

func toCapsuleResponse(row *store.CapsuleRow) CapsuleResponse {
	return CapsuleResponse{
		ID: row.ID, HID: row.HID, SessionID: row.SessionID,
		RichScore: row.RichScore, BusinessScore: row.BusinessScore, ECFScore: row.ECFScore,
		Motivator: row.Motivator, Category: row.Category, ContentHash: row.ContentHash,
		Status: row.Status, Reason: row.Reason, MintSeq: row.MintSeq,
	}
}

type MintCapsuleRequest struct {
	Segment *segment.Segment `json:"segment" binding:"required"`
}

type ScanRequest struct {
	VerifySignatures bool `json:"verifySignatures"`
}

type CapsResponse struct {
	State     *caps.State     `json:"state"`
	Available *caps.Available `json:"available"`
}

type TurnRequest struct {
	Text      string   `json:"text" binding:"required"`
	ChatID    string   `json:"chatId" binding:"required"`
	History   []string `json:"history"`
	TurnIndex int      `json:"turnIndex"`
}

type ActivateSubscriptionRequest struct {
	PlanID    string `json:"planId" binding:"required"`
	AutoRenew bool   `json:"autoRenew"`
}

type SubscriptionResponse struct {
	PlanID        string `json:"planId"`
	Provider      string `json:"provider"`
	TransactionID string `json:"transactionId"`
	ExpiresAt     int64  `json:"expiresAt"`
	ActivatedAt   int64  `json:"activatedAt"`
	AutoRenew     bool   `json:"autoRenew"`
	Active        bool   `json:"active"`
}

func toSubscriptionResponse(row *store.SubscriptionRow, active bool) *SubscriptionResponse {
	if row == nil {
		return nil
	}
	return &SubscriptionResponse{
		PlanID: row.PlanID, Provider: row.Provider, TransactionID: row.TransactionID,
		ExpiresAt: row.ExpiresAt, ActivatedAt: row.ActivatedAt, AutoRenew: row.AutoRenew,
		Active: active,
	}
}

type AnchorStatusResponse struct {
	HID              string `json:"hid"`
	LastAnchoredSeq  int64  `json:"lastAnchoredSeq"`
	LastAnchoredHead string `json:"lastAnchoredHead"`
	LastTxHash       string `json:"lastTxHash,omitempty"`
	LastAnchoredAt   int64  `json:"lastAnchoredAt,omitempty"`
}

func toAnchorStatusResponse(hid string, row *store.AnchorRow) AnchorStatusResponse {
	if row == nil {
		return AnchorStatusResponse{HID: hid, LastAnchoredHead: "GENESIS"}
	}
	return AnchorStatusResponse{
		HID: hid, LastAnchoredSeq: row.LastAnchoredSeq, LastAnchoredHead: row.LastAnchoredHead,
		LastTxHash: row.LastTxHash, LastAnchoredAt: row.LastAnchoredAt,
	}
}
