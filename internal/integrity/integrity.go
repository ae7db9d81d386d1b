// Package integrity implements the full-scan auditor, backup/restore
// eligibility, and clone detection (spec.md §4.8), the only producer of
// the chain's read-only latch.
package integrity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/balancechain/core/internal/protocol"
	"github.com/balancechain/core/internal/segment"
	"github.com/balancechain/core/internal/store"
)

// Error codes a full scan can report (spec.md §4.8).
const (
	CodeMissingSegment  = "MISSING_SEGMENT"
	CodeSeqMismatch     = "SEQ_MISMATCH"
	CodeHashChainBroken = "HASH_CHAIN_BROKEN"
	CodeInvalidSig      = "INVALID_SIGNATURE"
	CodeSigError        = "SIGNATURE_ERROR"
	CodeHashComputeErr  = "HASH_COMPUTE_ERROR"
	CodeHeadMismatch    = "HEAD_MISMATCH"
)

// Severity classifies how a scan's errors should affect the chain's
// read-only latch (spec.md §4.8).
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// ScanError is one fault found during a full scan.
type ScanError struct {
	Seq     int64  `json:"seq"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScanWarning is a non-fatal observation (spec.md §4.8 "regression is a
// warning not an error").
type ScanWarning struct {
	Seq     int64  `json:"seq"`
	Message string `json:"message"`
}

// ScanResult is the full-scan report (spec.md §4.8).
type ScanResult struct {
	OK           bool          `json:"ok"`
	Verified     int64         `json:"verified"`
	Errors       []ScanError   `json:"errors"`
	Warnings     []ScanWarning `json:"warnings"`
	ComputedHead string        `json:"computedHead"`
	StoredHead   string        `json:"storedHead"`
	Duration     time.Duration `json:"duration"`
	Severity     Severity      `json:"severity"`
}

func (r *ScanResult) addError(seq int64, code, message string) {
	r.Errors = append(r.Errors, ScanError{Seq: seq, Code: code, Message: message})
}

func (r *ScanResult) addWarning(seq int64, message string) {
	r.Warnings = append(r.Warnings, ScanWarning{Seq: seq, Message: message})
}

func (r *ScanResult) hasCode(codes ...string) bool {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	for _, e := range r.Errors {
		if set[e.Code] {
			return true
		}
	}
	return false
}

func (r *ScanResult) classify() Severity {
	if r.hasCode(CodeHashChainBroken, CodeHeadMismatch, CodeMissingSegment) {
		return SeverityCritical
	}
	if r.hasCode(CodeInvalidSig, CodeSigError) {
		return SeverityMajor
	}
	return SeverityNone
}

// Scanner is the explicit handle bundling integrity collaborators
// (spec.md §9 "no module-level mutable state").
type Scanner struct {
	store  *store.Store
	logger *zap.Logger
}

// New constructs a Scanner.
func New(s *store.Store, logger *zap.Logger) *Scanner {
	return &Scanner{store: s, logger: logger}
}

// Scan walks hid's chain from seq=1, verifying presence, sequencing,
// hash-chain continuity, optional signatures, and timestamp monotonicity,
// then compares the recomputed head against the stored one (spec.md
// §4.8). When the resulting severity is major or critical, the chain's
// read-only latch is set.
func (sc *Scanner) Scan(ctx context.Context, hid string, verifySignatures bool) (*ScanResult, error) {
	start := time.Now()
	result := &ScanResult{OK: true, ComputedHead: protocol.Genesis}

	meta, err := sc.store.GetMeta(ctx, hid)
	if err != nil {
		return nil, fmt.Errorf("integrity: get meta: %w", err)
	}
	result.StoredHead = meta.ChainHead

	expectedPrev := protocol.Genesis
	var lastTimestamp int64 = -1

	for seq := int64(1); seq <= meta.ChainLen; seq++ {
		seg, err := sc.store.GetSegment(ctx, hid, seq)
		if err != nil {
			return nil, fmt.Errorf("integrity: get segment %d: %w", seq, err)
		}
		if seg == nil {
			result.addError(seq, CodeMissingSegment, "segment not found")
			continue
		}
		if seg.Seq != seq {
			result.addError(seq, CodeSeqMismatch, fmt.Sprintf("stored seq %d does not match position %d", seg.Seq, seq))
		}
		if seg.PrevHash != expectedPrev {
			result.addError(seq, CodeHashChainBroken, "prevHash does not match the previous segment's computed hash")
		}
		if lastTimestamp >= 0 && seg.Timestamp < lastTimestamp {
			result.addWarning(seq, "timestamp regressed relative to the previous segment")
		}
		lastTimestamp = seg.Timestamp

		if verifySignatures {
			ok, err := seg.VerifySignature()
			if err != nil {
				result.addError(seq, CodeSigError, err.Error())
			} else if !ok {
				result.addError(seq, CodeInvalidSig, "signature does not verify")
			}
		}

		head, err := seg.Hash()
		if err != nil {
			result.addError(seq, CodeHashComputeErr, err.Error())
			break
		}
		expectedPrev = head
		result.ComputedHead = head
		result.Verified++
	}

	if result.ComputedHead != result.StoredHead {
		result.addError(meta.ChainLen, CodeHeadMismatch, "recomputed head does not match the stored chain head")
	}

	result.Duration = time.Since(start)
	result.OK = len(result.Errors) == 0
	result.Severity = result.classify()

	if result.Severity == SeverityMajor || result.Severity == SeverityCritical {
		reason := fmt.Sprintf("integrity scan found %s severity faults", result.Severity)
		if err := sc.store.SetReadOnly(ctx, hid, true, reason, time.Now().UnixMilli()); err != nil {
			sc.logger.Warn("integrity: failed to latch read-only mode", zap.String("hid", hid), zap.Error(err))
		} else {
			sc.logger.Warn("integrity: read-only mode latched", zap.String("hid", hid), zap.String("severity", string(result.Severity)))
		}
	}

	return result, nil
}

// BackupEligibility implements the five-case "no restore without sync"
// decision table (spec.md §4.8).
func BackupEligibility(currentLen int64, currentHead string, backupLen int64, backupHead string) (canRestore, requiresSync bool, reason string) {
	if currentLen == 0 {
		return true, false, "fresh install"
	}
	if backupLen < currentLen {
		return false, true, "backup older"
	}
	if backupHead != currentHead && backupLen > currentLen {
		return false, true, "diverged, fork"
	}
	if backupHead != currentHead {
		return false, true, "heads mismatch"
	}
	return true, false, "match"
}

// CloneDetection is the evidence returned when an incoming segment
// collides on seq with a locally stored one (spec.md §4.8).
type CloneDetection struct {
	IsClone  bool   `json:"isClone"`
	Seq      int64  `json:"seq"`
	Evidence string `json:"evidence,omitempty"`
}

// DetectClone compares an incoming segment against the locally stored
// segment at the same seq. A different nonce or a different author
// signature at the same position indicates two devices independently
// produced a segment for that slot — never silently overwritten (spec.md
// §4.8).
func DetectClone(local, incoming *segment.Segment) CloneDetection {
	if local == nil || incoming == nil || local.Seq != incoming.Seq {
		return CloneDetection{}
	}
	if local.Nonce != incoming.Nonce {
		return CloneDetection{IsClone: true, Seq: local.Seq, Evidence: fmt.Sprintf("seq %d: local nonce %s != incoming nonce %s", local.Seq, local.Nonce, incoming.Nonce)}
	}
	if local.Signature != incoming.Signature {
		return CloneDetection{IsClone: true, Seq: local.Seq, Evidence: fmt.Sprintf("seq %d: local signature != incoming signature", local.Seq)}
	}
	return CloneDetection{}
}
