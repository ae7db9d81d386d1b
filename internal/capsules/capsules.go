// Package capsules implements capsule creation, mint eligibility, and
// similarity scoring (spec.md §4.7), grounded on internal/chain's commit
// boundary for the mint side effect.
package capsules

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/balancechain/core/internal/chain"
	balerrors "github.com/balancechain/core/internal/common/errors"
	"github.com/balancechain/core/internal/protocol"
	"github.com/balancechain/core/internal/segment"
	"github.com/balancechain/core/internal/store"
	"github.com/balancechain/core/pkg/codec"
)

// MessageInput is the subset of a session's messages the content hash and
// eligibility check need (spec.md §4.7 Create).
type MessageInput struct {
	Text string
}

// Analysis is the scoring input supplied by the caller (typically an AI
// collaborator's final turn) alongside the raw messages.
type Analysis struct {
	RichScore     float64
	BusinessScore float64
	ECFScore      float64
	Motivator     string
	Category      string
}

// CreateInput bundles a Create call's arguments (spec.md §4.7 "create
// ({sessionId, ownerHid, messages, analysis})").
type CreateInput struct {
	SessionID string
	OwnerHID  string
	Messages  []MessageInput
	Analysis  Analysis
}

// Manager is the explicit handle bundling capsule collaborators (spec.md
// §9 "no module-level mutable state").
type Manager struct {
	store  *store.Store
	chain  *chain.Handle
	logger *zap.Logger
}

// New constructs a Manager.
func New(s *store.Store, chainHandle *chain.Handle, logger *zap.Logger) *Manager {
	return &Manager{store: s, chain: chainHandle, logger: logger}
}

// CheckEligibility applies spec.md §4.7's fixed threshold: richScore ≥ 70,
// businessScore ≥ 70, ecfScore ≥ 0.1, messageCount ≥ 12. Returns the
// reason for the first failing condition, or "" if eligible.
func CheckEligibility(a Analysis, messageCount int) (bool, string) {
	if a.RichScore < protocol.MinRichScore {
		return false, "rich_score_below_threshold"
	}
	if a.BusinessScore < protocol.MinBusinessScore {
		return false, "business_score_below_threshold"
	}
	if a.ECFScore < protocol.MinECFScore {
		return false, "ecf_score_below_threshold"
	}
	if messageCount < protocol.SessionMessageLimit {
		return false, "insufficient_messages"
	}
	return true, ""
}

// scoreEligible re-checks the score thresholds alone, for Mint's
// "eligibility still holds" re-check — message count was already fixed
// at Create time and does not change afterward.
func scoreEligible(richScore, businessScore, ecfScore float64) (bool, string) {
	if richScore < protocol.MinRichScore {
		return false, "rich_score_below_threshold"
	}
	if businessScore < protocol.MinBusinessScore {
		return false, "business_score_below_threshold"
	}
	if ecfScore < protocol.MinECFScore {
		return false, "ecf_score_below_threshold"
	}
	return true, ""
}

// contentHash computes SHA256(canonical({messageTexts, motivator,
// category, richScore})) (spec.md §4.7 Create).
func contentHash(messages []MessageInput, a Analysis) (string, error) {
	texts := make([]string, len(messages))
	for i, m := range messages {
		texts[i] = m.Text
	}
	canonical, err := codec.Canonical(map[string]any{
		"messageTexts": strings.Join(texts, "|"),
		"motivator":    a.Motivator,
		"category":     a.Category,
		"richScore":    a.RichScore,
	})
	if err != nil {
		return "", fmt.Errorf("capsules: canonicalize content: %w", err)
	}
	return codec.Hash(canonical), nil
}

// Create computes the content hash, checks eligibility, and persists the
// capsule in pending or rejected status (spec.md §4.7 Create).
func (m *Manager) Create(ctx context.Context, in CreateInput) (*store.CapsuleRow, error) {
	hash, err := contentHash(in.Messages, in.Analysis)
	if err != nil {
		return nil, balerrors.Internal(err.Error())
	}

	eligible, reason := CheckEligibility(in.Analysis, len(in.Messages))
	status := "pending"
	if !eligible {
		status = "rejected"
	}

	row := &store.CapsuleRow{
		ID:            uuid.New().String(),
		HID:           in.OwnerHID,
		SessionID:     in.SessionID,
		RichScore:     in.Analysis.RichScore,
		BusinessScore: in.Analysis.BusinessScore,
		ECFScore:      in.Analysis.ECFScore,
		Motivator:     in.Analysis.Motivator,
		Category:      in.Analysis.Category,
		ContentHash:   hash,
		Status:        status,
		Reason:        reason,
		CreatedAt:     time.Now().UnixMilli(),
	}
	if err := m.store.InsertCapsule(ctx, row); err != nil {
		return nil, balerrors.DBError(err)
	}
	return row, nil
}

// Mint refuses unless the capsule is pending and still eligible, commits a
// capsule.mint segment, marks the capsule minted, and credits
// protocol.TVMPerCapsule to the owner's TVM balance (spec.md §4.7 Mint).
func (m *Manager) Mint(ctx context.Context, capsuleID string, author segment.Author, signer chain.Signer) (*store.CapsuleRow, error) {
	row, err := m.store.GetCapsule(ctx, capsuleID)
	if err != nil {
		return nil, balerrors.DBError(err)
	}
	if row == nil {
		return nil, balerrors.NotFound("capsule")
	}
	if row.Status != "pending" {
		return nil, balerrors.Conflict(fmt.Sprintf("capsule is %s, not pending", row.Status))
	}
	if eligible, reason := scoreEligible(row.RichScore, row.BusinessScore, row.ECFScore); !eligible {
		return nil, balerrors.Validation(0, reason, "capsule no longer meets eligibility")
	}

	payload := segment.CapsuleMintPayload(row.ID, row.SessionID, row.RichScore, row.BusinessScore, row.ContentHash)
	result, err := m.chain.Commit(ctx, row.HID, author, signer, segment.TypeCapsuleMint, payload, nil, nil, nil)
	if err != nil {
		return nil, err
	}

	// The mint side effects (capsule status flip, TVM credit) are a
	// second atomic step after the chain commit, per spec.md §4.7
	// Mint — distinct from the commit's own transaction since they
	// only matter once the commit has already succeeded.
	err = m.store.Tx().WithTx(ctx, func(tx *sql.Tx) error {
		if err := m.store.MarkCapsuleMintedTx(ctx, tx, row.ID, result.Seq); err != nil {
			return err
		}
		return m.store.IncrementBalanceTx(ctx, tx, row.HID, protocol.TVMPerCapsule)
	})
	if err != nil {
		return nil, balerrors.DBError(err)
	}

	row.Status = "minted"
	row.MintSeq = &result.Seq
	return row, nil
}

// MintSegment is Mint's HTTP-boundary counterpart: it accepts a
// capsule.mint segment the owning identity already built and signed
// client-side (spec.md §5 "signing is requested through a narrow
// interface... the private key never leaves the identity manager"),
// checks it actually refers to this capsule before committing it, and
// otherwise runs the same eligibility re-check and post-commit bookkeeping
// as Mint.
func (m *Manager) MintSegment(ctx context.Context, capsuleID string, signed *segment.Segment) (*store.CapsuleRow, error) {
	row, err := m.store.GetCapsule(ctx, capsuleID)
	if err != nil {
		return nil, balerrors.DBError(err)
	}
	if row == nil {
		return nil, balerrors.NotFound("capsule")
	}
	if row.Status != "pending" {
		return nil, balerrors.Conflict(fmt.Sprintf("capsule is %s, not pending", row.Status))
	}
	if eligible, reason := scoreEligible(row.RichScore, row.BusinessScore, row.ECFScore); !eligible {
		return nil, balerrors.Validation(0, reason, "capsule no longer meets eligibility")
	}
	if signed.Author.HID != row.HID {
		return nil, balerrors.Validation(0, "author_mismatch", "segment author does not own this capsule")
	}
	if signed.Type != segment.TypeCapsuleMint {
		return nil, balerrors.Validation(0, "wrong_type", "segment is not a capsule.mint")
	}
	want := segment.CapsuleMintPayload(row.ID, row.SessionID, row.RichScore, row.BusinessScore, row.ContentHash)
	for k, v := range want {
		if signed.Payload[k] != v {
			return nil, balerrors.Validation(0, "payload_mismatch", fmt.Sprintf("payload field %q does not match capsule record", k))
		}
	}

	result, err := m.chain.CommitSegment(ctx, row.HID, signed)
	if err != nil {
		return nil, err
	}

	err = m.store.Tx().WithTx(ctx, func(tx *sql.Tx) error {
		if err := m.store.MarkCapsuleMintedTx(ctx, tx, row.ID, result.Seq); err != nil {
			return err
		}
		return m.store.IncrementBalanceTx(ctx, tx, row.HID, protocol.TVMPerCapsule)
	})
	if err != nil {
		return nil, balerrors.DBError(err)
	}

	row.Status = "minted"
	row.MintSeq = &result.Seq
	return row, nil
}

// Similarity is the weighted-sum score of spec.md §4.7: motivator match
// (3), category match (2), rich-score proximity (2), business-score
// proximity (2), ECF proximity (1), normalized by total weight 10.
func Similarity(a, b *store.CapsuleRow) float64 {
	var score float64
	if a.Motivator == b.Motivator {
		score += 3
	}
	if a.Category == b.Category {
		score += 2
	}
	score += 2 * (1 - math.Abs(a.RichScore-b.RichScore)/100)
	score += 2 * (1 - math.Abs(a.BusinessScore-b.BusinessScore)/100)
	score += math.Max(0, 1-math.Abs(a.ECFScore-b.ECFScore))
	return score / 10
}

// IsRecyclable reports whether candidate matches any minted capsule in
// minted with similarity ≥ protocol.CapsuleSimilarityThreshold (spec.md
// §4.7 "mark the candidate as recyclable").
func IsRecyclable(candidate *store.CapsuleRow, minted []*store.CapsuleRow) bool {
	for _, m := range minted {
		if Similarity(candidate, m) >= protocol.CapsuleSimilarityThreshold {
			return true
		}
	}
	return false
}
