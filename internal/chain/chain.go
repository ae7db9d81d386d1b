// Package chain implements the atomic append pipeline: build, sign,
// validate, and commit a segment in a single database transaction
// (spec.md §4.5), grounded on pkg/nonce's explicit-handle collaborator
// shape and pkg/db/tx.go's WithTx pattern.
package chain

import (
	"context"
	"crypto/ecdsa"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/balancechain/core/internal/caps"
	balerrors "github.com/balancechain/core/internal/common/errors"
	"github.com/balancechain/core/internal/projections"
	"github.com/balancechain/core/internal/segment"
	"github.com/balancechain/core/internal/store"
	"github.com/balancechain/core/internal/validator"
)

// Signer produces a segment signature. identity.Manager implements this
// over a held private key; tests can substitute a bare key (spec.md §9
// "pluggable verifier" design note applied symmetrically to signing).
type Signer interface {
	Sign(s *segment.Segment) error
}

// PrivateKeySigner adapts a raw ECDSA key to Signer.
type PrivateKeySigner struct {
	Key *ecdsa.PrivateKey
}

func (p PrivateKeySigner) Sign(s *segment.Segment) error {
	return s.Sign(p.Key)
}

// CommitResult is what Commit returns on success (spec.md §4.5 "commit
// event").
type CommitResult struct {
	Segment *segment.Segment
	Head    string
	Seq     int64
}

// Handle is the explicit, per-process collaborator bundle for the chain
// (spec.md §9 "no module-level mutable state"). One Handle serves every
// identity; per-identity serialization is done with a lock keyed by hid.
type Handle struct {
	store      *store.Store
	caps       *caps.Accountant
	gate       *validator.Gate
	broadcast  projections.Broadcaster
	logger     *zap.Logger
	options    validator.Options

	tracker *projections.Tracker

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	rebuiltMu sync.Mutex
	rebuilt   map[string]bool
}

// New constructs a Handle.
func New(s *store.Store, capsAccountant *caps.Accountant, gate *validator.Gate, tracker *projections.Tracker, broadcast projections.Broadcaster, logger *zap.Logger, opts validator.Options) *Handle {
	return &Handle{
		store:     s,
		caps:      capsAccountant,
		gate:      gate,
		tracker:   tracker,
		broadcast: broadcast,
		logger:    logger,
		options:   opts,
		locks:     make(map[string]*sync.Mutex),
		rebuilt:   make(map[string]bool),
	}
}

// lockFor returns the per-hid mutex, creating it on first use. Segments for
// different identities commit concurrently; segments for the same identity
// serialize, which is what makes the read-then-write seq/prevHash check
// inside the transaction race-free under concurrent callers in this
// process (spec.md §9 "external lock per identity").
func (h *Handle) lockFor(hid string) *sync.Mutex {
	h.locksMu.Lock()
	defer h.locksMu.Unlock()
	m, ok := h.locks[hid]
	if !ok {
		m = &sync.Mutex{}
		h.locks[hid] = m
	}
	return m
}

// Commit builds, signs, validates, and atomically appends a segment to
// hid's chain (spec.md §4.5). On validation failure it returns the
// failure as an error with no side effects. On success every write —
// segment, nonce, message projection, meta head, caps counters — commits
// in a single transaction.
func (h *Handle) Commit(ctx context.Context, hid string, author segment.Author, signer Signer, typ segment.Type, payload map[string]any, previousOwner, unlockerRef, unlockedRef *string) (*CommitResult, error) {
	lock := h.lockFor(hid)
	lock.Lock()
	defer lock.Unlock()

	if err := h.EnsureProjections(ctx, hid); err != nil {
		return nil, err
	}

	meta, err := h.store.GetMeta(ctx, hid)
	if err != nil {
		return nil, balerrors.DBError(err)
	}
	if meta.ReadOnlyEnabled {
		return nil, balerrors.ReadOnly(meta.ReadOnlyReason)
	}

	var prev *segment.Segment
	if meta.ChainLen > 0 {
		prev, err = h.store.GetSegment(ctx, hid, meta.ChainLen)
		if err != nil {
			return nil, balerrors.DBError(err)
		}
	}

	seq := meta.ChainLen + 1
	candidate, err := segment.Build(author, meta.ChainHead, seq, typ, payload, previousOwner, unlockerRef, unlockedRef)
	if err != nil {
		return nil, balerrors.Internal(fmt.Sprintf("build segment: %v", err))
	}
	if err := signer.Sign(candidate); err != nil {
		return nil, balerrors.Internal(fmt.Sprintf("sign segment: %v", err))
	}
	if err := segment.ValidateStructure(candidate); err != nil {
		return nil, balerrors.Validation(0, "bad_structure", err.Error())
	}

	if r := h.gate.Validate(ctx, hid, candidate, prev, h.options); !r.OK {
		h.logger.Info("chain: commit rejected",
			zap.String("hid", hid), zap.Int64("seq", seq), zap.Int("rule", r.Rule), zap.String("reason", r.Reason))
		return nil, r.AsError()
	}

	return h.finalizeCommit(ctx, hid, candidate)
}

// CommitSegment appends an already built and signed segment (spec.md §5
// "offline-first": a client holding its own identity manager builds and
// signs locally; this is the sync path a server-side HTTP boundary uses
// to accept that segment without ever touching the private key). The
// same nine-rule gate and atomic transaction apply as in Commit.
func (h *Handle) CommitSegment(ctx context.Context, hid string, candidate *segment.Segment) (*CommitResult, error) {
	lock := h.lockFor(hid)
	lock.Lock()
	defer lock.Unlock()

	if err := h.EnsureProjections(ctx, hid); err != nil {
		return nil, err
	}

	meta, err := h.store.GetMeta(ctx, hid)
	if err != nil {
		return nil, balerrors.DBError(err)
	}
	if meta.ReadOnlyEnabled {
		return nil, balerrors.ReadOnly(meta.ReadOnlyReason)
	}

	var prev *segment.Segment
	if meta.ChainLen > 0 {
		prev, err = h.store.GetSegment(ctx, hid, meta.ChainLen)
		if err != nil {
			return nil, balerrors.DBError(err)
		}
	}

	if err := segment.ValidateStructure(candidate); err != nil {
		return nil, balerrors.Validation(0, "bad_structure", err.Error())
	}
	if r := h.gate.Validate(ctx, hid, candidate, prev, h.options); !r.OK {
		h.logger.Info("chain: commit rejected",
			zap.String("hid", hid), zap.Int64("seq", candidate.Seq), zap.Int("rule", r.Rule), zap.String("reason", r.Reason))
		return nil, r.AsError()
	}

	return h.finalizeCommit(ctx, hid, candidate)
}

// finalizeCommit runs the atomic multi-record write shared by Commit and
// CommitSegment once a candidate has passed structural validation and the
// nine-rule gate.
func (h *Handle) finalizeCommit(ctx context.Context, hid string, candidate *segment.Segment) (*CommitResult, error) {
	seq := candidate.Seq
	head, err := candidate.Hash()
	if err != nil {
		return nil, balerrors.Internal(fmt.Sprintf("hash segment: %v", err))
	}

	txr := h.store.Tx()
	err = txr.WithTx(ctx, func(tx *sql.Tx) error {
		if err := h.store.EnsureMeta(ctx, tx, hid); err != nil {
			return err
		}
		if err := h.store.InsertSegment(ctx, tx, hid, candidate); err != nil {
			return err
		}
		if err := h.store.MarkNonceUsed(ctx, tx, hid, candidate.Nonce); err != nil {
			return err
		}
		if candidate.Type.MessageBearing() {
			rec := projections.BuildMessage(candidate)
			if err := h.store.InsertMessage(ctx, tx, hid, rec); err != nil {
				return err
			}
		}
		if err := h.store.SetHead(ctx, tx, hid, head, seq); err != nil {
			return err
		}
		if candidate.Type.CapAffecting() {
			if _, err := h.caps.IncrementTx(ctx, tx, hid, 1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Rule 9 already reserved this nonce (internal/validator); the
		// transaction never reached MarkNonceUsed, so release the
		// reservation rather than leave it permanently blocking a retry.
		if releaseErr := h.store.ReleaseNonce(ctx, hid, candidate.Nonce); releaseErr != nil {
			h.logger.Warn("chain: release nonce after failed commit",
				zap.String("hid", hid), zap.String("nonce", candidate.Nonce), zap.Error(releaseErr))
		}
		if appErr, ok := balerrors.AsAppError(err); ok {
			return nil, appErr
		}
		return nil, balerrors.DBError(err)
	}

	if candidate.Type.CapAffecting() {
		h.caps.InvalidateCache(ctx, hid)
	}

	state := h.tracker.Apply(hid, candidate)
	if h.broadcast != nil {
		if candidate.Type.MessageBearing() {
			h.broadcast.OnMessage(hid, projections.BuildMessage(candidate))
		}
		h.broadcast.OnState(hid, state)
	}

	h.logger.Info("chain: commit",
		zap.String("hid", hid), zap.Int64("seq", seq), zap.String("type", string(candidate.Type)), zap.String("head", head))

	return &CommitResult{Segment: candidate, Head: head, Seq: seq}, nil
}

// Head returns the current chain_head/chain_len for hid without
// committing anything, used by read endpoints and Integrity.
func (h *Handle) Head(ctx context.Context, hid string) (*store.MetaRow, error) {
	if err := h.EnsureProjections(ctx, hid); err != nil {
		return nil, err
	}
	meta, err := h.store.GetMeta(ctx, hid)
	if err != nil {
		return nil, balerrors.DBError(err)
	}
	return meta, nil
}

// ListSegments returns the full signed chain for hid in order.
func (h *Handle) ListSegments(ctx context.Context, hid string) ([]*segment.Segment, error) {
	if err := h.EnsureProjections(ctx, hid); err != nil {
		return nil, err
	}
	segs, err := h.store.ListSegments(ctx, hid)
	if err != nil {
		return nil, balerrors.DBError(err)
	}
	return segs, nil
}

// EnsureProjections lazily replays hid's chain into the score tracker the
// first time this process touches that identity (spec.md §4.5
// "rebuild_projections ... used on startup and after restore"). A
// freshly started process holds an empty Tracker until something
// commits, which would otherwise serve a zeroed score projection for a
// chain that already has history. Idempotent per hid per process: the
// replay only runs once, tracked in rebuilt.
func (h *Handle) EnsureProjections(ctx context.Context, hid string) error {
	h.rebuiltMu.Lock()
	done := h.rebuilt[hid]
	h.rebuilt[hid] = true
	h.rebuiltMu.Unlock()
	if done {
		return nil
	}
	return h.RebuildProjections(ctx, hid)
}

// RebuildProjections reads hid's entire signed chain in seq order and
// replays it into the score tracker (spec.md §4.5), used at startup,
// after a restore, or lazily via EnsureProjections. It resets the
// tracked state to zero before replaying, so it is safe to call more
// than once for the same hid. The message view needs no replay of its
// own: every message-bearing segment was already projected into the
// messages table at commit time (spec.md §3 MessageView).
func (h *Handle) RebuildProjections(ctx context.Context, hid string) error {
	segs, err := h.store.ListSegments(ctx, hid)
	if err != nil {
		return balerrors.DBError(err)
	}
	h.tracker.Set(hid, projections.ScoreState{})
	for _, seg := range segs {
		h.tracker.Apply(hid, seg)
	}
	return nil
}
