// Package validator implements the nine-rule gate every segment append
// must pass (spec.md §4.4) before the chain commits it.
package validator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/balancechain/core/internal/caps"
	balerrors "github.com/balancechain/core/internal/common/errors"
	"github.com/balancechain/core/internal/protocol"
	"github.com/balancechain/core/internal/segment"
	"github.com/balancechain/core/internal/store"
)

// LivenessVerifier checks a biometric assertion and reports whether it is
// genuine. The validator only calls it when a proof is both present and
// structurally valid (spec.md §4.4 rule 4, §9 "pluggable verifier").
type LivenessVerifier interface {
	Verify(proof map[string]any) (bool, error)
}

// Options configures one Validate call (spec.md §4.4 "Options").
type Options struct {
	SkipLiveness     bool
	LivenessVerifier LivenessVerifier
}

// Gate is the explicit handle bundling the rule gate's collaborators
// (spec.md §9 "no module-level mutable state").
type Gate struct {
	store *store.Store
	caps  *caps.Accountant
}

// New constructs a Gate.
func New(s *store.Store, capsAccountant *caps.Accountant) *Gate {
	return &Gate{store: s, caps: capsAccountant}
}

// Result is the structured pass/fail of one rule (spec.md §4.4, §7).
type Result struct {
	OK      bool
	Rule    int
	Reason  string
	Message string
}

func pass() Result { return Result{OK: true} }

func fail(rule int, reason, message string) Result {
	return Result{OK: false, Rule: rule, Reason: reason, Message: message}
}

// AsError converts a failing Result into the taxonomy's ValidationError
// shape (spec.md §7).
func (r Result) AsError() error {
	if r.OK {
		return nil
	}
	return balerrors.Validation(r.Rule, r.Reason, r.Message)
}

// Validate runs all nine rules in order against the candidate segment,
// short-circuiting on the first failure (spec.md §4.4). hid is the chain
// being appended to; prev is the previous segment (nil for seq=1).
func (g *Gate) Validate(ctx context.Context, hid string, candidate *segment.Segment, prev *segment.Segment, opts Options) Result {
	rules := []func(context.Context, string, *segment.Segment, *segment.Segment, Options) Result{
		g.ruleCounterRelationship,
		g.ruleCaps,
		g.ruleRateLimit,
		g.ruleLiveness,
		g.ruleOwnerTransition,
		g.ruleHistoryHash,
		g.ruleSequence,
		g.ruleSignature,
		g.ruleNonce,
	}
	for _, rule := range rules {
		if r := rule(ctx, hid, candidate, prev, opts); !r.OK {
			return r
		}
	}
	return pass()
}

// ruleCounterRelationship is rule 1 (spec.md §4.4 rule 1).
func (g *Gate) ruleCounterRelationship(ctx context.Context, hid string, s, _ *segment.Segment, _ Options) Result {
	if s.UnlockerRef == nil || s.UnlockedRef == nil {
		return pass()
	}
	unlockerSeq, err := leadingSeq(*s.UnlockerRef)
	if err != nil {
		return fail(1, "missing_refs", "malformed unlockerRef")
	}
	unlockedSeq, err := leadingSeq(*s.UnlockedRef)
	if err != nil {
		return fail(1, "missing_refs", "malformed unlockedRef")
	}
	if unlockerSeq <= unlockedSeq {
		return fail(1, "counter_order", "unlocker segment must have a later seq than unlocked segment")
	}
	unlockerExists, err := g.store.GetSegment(ctx, hid, unlockerSeq)
	if err != nil || unlockerExists == nil {
		return fail(1, "missing_refs", "unlocker segment does not exist")
	}
	unlockedExists, err := g.store.GetSegment(ctx, hid, unlockedSeq)
	if err != nil || unlockedExists == nil {
		return fail(1, "missing_refs", "unlocked segment does not exist")
	}
	return pass()
}

func leadingSeq(ref string) (int64, error) {
	parts := strings.SplitN(ref, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("validator: malformed ref %q", ref)
	}
	return strconv.ParseInt(parts[0], 10, 64)
}

// ruleCaps is rule 2 (spec.md §4.4 rule 2). It peeks at the current caps
// state without incrementing — Chain.Commit performs the actual
// increment after validation succeeds.
func (g *Gate) ruleCaps(ctx context.Context, hid string, s, _ *segment.Segment, _ Options) Result {
	if !s.Type.CapAffecting() {
		return pass()
	}
	state, err := g.caps.Current(ctx, hid)
	if err != nil {
		return fail(2, "caps_unavailable", err.Error())
	}
	if state.Daily >= protocol.DailyCap {
		return fail(2, "daily_cap_exceeded", "daily cap exceeded")
	}
	if state.Monthly >= protocol.MonthlyCap {
		return fail(2, "monthly_cap_exceeded", "monthly cap exceeded")
	}
	if state.Yearly >= protocol.YearlyCap {
		return fail(2, "yearly_cap_exceeded", "yearly cap exceeded")
	}
	return pass()
}

// ruleRateLimit is rule 3 (spec.md §4.4 rule 3).
func (g *Gate) ruleRateLimit(_ context.Context, _ string, s, prev *segment.Segment, _ Options) Result {
	if prev == nil || prev.Author.HID != s.Author.HID {
		return pass()
	}
	delta := time.Duration(s.Timestamp-prev.Timestamp) * time.Millisecond
	if delta < protocol.MinBlockInterval {
		return fail(3, "rate_limit", "segments from the same author must be at least 1000ms apart")
	}
	return pass()
}

// ruleLiveness is rule 4 (spec.md §4.4 rule 4, §9 pluggable verifier).
func (g *Gate) ruleLiveness(_ context.Context, _ string, s, _ *segment.Segment, opts Options) Result {
	if opts.SkipLiveness {
		return pass()
	}
	raw, present := s.Payload["liveness"]
	if !present {
		return pass() // absence is tolerated, logged by the caller as a warning
	}
	proof, ok := raw.(map[string]any)
	if !ok {
		return fail(4, "invalid_liveness_shape", "liveness proof must be an object")
	}
	tsRaw, ok := proof["timestamp"]
	if !ok {
		return fail(4, "invalid_liveness_shape", "liveness proof missing timestamp")
	}
	ts, ok := toInt64(tsRaw)
	if !ok {
		return fail(4, "invalid_liveness_shape", "liveness proof timestamp must be numeric")
	}
	drift := time.Duration(s.Timestamp-ts) * time.Millisecond
	if drift < 0 {
		drift = -drift
	}
	if drift > protocol.TimestampTolerance {
		return fail(4, "timestamp_drift", "liveness proof is stale")
	}
	if _, hasAssertion := proof["assertion"]; hasAssertion {
		if opts.LivenessVerifier == nil {
			return fail(4, "liveness_unverifiable", "a liveness verifier is required when an assertion is present")
		}
		ok, err := opts.LivenessVerifier.Verify(proof)
		if err != nil {
			return fail(4, "liveness_error", err.Error())
		}
		if !ok {
			return fail(4, "liveness_failed", "liveness verification failed")
		}
	}
	return pass()
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// ruleOwnerTransition is rule 5 (spec.md §4.4 rule 5).
func (g *Gate) ruleOwnerTransition(_ context.Context, _ string, s, _ *segment.Segment, _ Options) Result {
	if s.Type != segment.TypeTVMTransfer {
		return pass()
	}
	if s.PreviousOwner == nil || *s.PreviousOwner == "" {
		return fail(5, "missing_previous_owner", "tvm.transfer requires previousOwner")
	}
	if *s.PreviousOwner == s.CurrentOwner {
		return fail(5, "same_owner", "tvm.transfer requires previousOwner != currentOwner")
	}
	return pass()
}

// ruleHistoryHash is rule 6 (spec.md §4.4 rule 6).
func (g *Gate) ruleHistoryHash(ctx context.Context, hid string, s, _ *segment.Segment, _ Options) Result {
	meta, err := g.store.GetMeta(ctx, hid)
	if err != nil {
		return fail(6, "bad_prev_hash", err.Error())
	}
	if s.PrevHash != meta.ChainHead {
		return fail(6, "bad_prev_hash", "prevHash does not match the stored chain head")
	}
	return pass()
}

// ruleSequence is rule 7 (spec.md §4.4 rule 7).
func (g *Gate) ruleSequence(ctx context.Context, hid string, s, _ *segment.Segment, _ Options) Result {
	meta, err := g.store.GetMeta(ctx, hid)
	if err != nil {
		return fail(7, "bad_seq", err.Error())
	}
	if s.Seq != meta.ChainLen+1 {
		return fail(7, "bad_seq", "seq must equal chainLen + 1")
	}
	return pass()
}

// ruleSignature is rule 8 (spec.md §4.4 rule 8).
func (g *Gate) ruleSignature(_ context.Context, _ string, s, _ *segment.Segment, _ Options) Result {
	ok, err := s.VerifySignature()
	if err != nil || !ok {
		return fail(8, "bad_signature", "signature does not verify against the author's public key")
	}
	return pass()
}

// ruleNonce is rule 9 (spec.md §4.4 rule 9). It atomically reserves the
// sync_log entry for s.Nonce rather than only checking for its absence:
// the (hid, nonce) primary key makes ReserveNonce the actual replay
// check, closing the gap a plain existence check leaves between two
// concurrent commits racing the same nonce across processes. A reserved
// entry that never reaches MarkNonceUsed (the candidate fails later in
// the commit transaction) is released by the caller so the same nonce
// can be retried.
func (g *Gate) ruleNonce(ctx context.Context, hid string, s, _ *segment.Segment, _ Options) Result {
	if err := g.store.ReserveNonce(ctx, hid, s.Nonce); err != nil {
		return fail(9, "replay_nonce", "nonce has already been reserved or used")
	}
	return pass()
}
