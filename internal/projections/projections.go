// Package projections builds the read-side views the chain emits
// alongside each commit: the per-chat message view and the in-memory
// score view (spec.md §3 MessageView, §4.1 design note, §4.5), and
// defines the narrow event-broadcast interface the chain commits
// through.
package projections

import (
	"sync"

	"github.com/balancechain/core/internal/protocol"
	"github.com/balancechain/core/internal/segment"
	"github.com/balancechain/core/internal/store"
)

// Broadcaster is the narrow interface Chain.Commit notifies through
// after a transaction commits (spec.md §4.1 "narrow on_message/on_state/
// on_error interfaces", §9). A nil Broadcaster is valid — commits still
// succeed, just silently.
type Broadcaster interface {
	OnMessage(hid string, rec store.MessageRecord)
	OnState(hid string, state ScoreState)
	OnError(hid string, err error)
}

// ScoreState is the in-memory rich/business score projection (spec.md
// §4.5 "update the in-memory score projection").
type ScoreState struct {
	RichScore     float64 `json:"richScore"`
	BusinessScore float64 `json:"businessScore"`
}

func clip100(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}

// Tracker holds the per-identity score projection explicitly (spec.md §9
// "no module-level mutable state") — there is no package-level map.
type Tracker struct {
	mu     sync.Mutex
	scores map[string]ScoreState
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{scores: make(map[string]ScoreState)}
}

// Get returns the current projection for hid, the zero value if none has
// been recorded yet.
func (t *Tracker) Get(hid string) ScoreState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scores[hid]
}

// Set overwrites the projection for hid, used when restoring from a
// backup or rebuilding from the full chain (spec.md §4.8).
func (t *Tracker) Set(hid string, state ScoreState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scores[hid] = state
}

// Apply updates hid's score projection deterministically from a
// committed segment and returns the new state (spec.md §4.5):
//
//   - biz.decision with decision == "ACCEPT": richScore += 2
//   - biz.outcome with outcome == "SUCCESS": richScore += 5, businessScore += 3
//   - an explicit "scores" payload field overrides either field directly
//
// All fields clip to [0, 100].
func (t *Tracker) Apply(hid string, seg *segment.Segment) ScoreState {
	t.mu.Lock()
	defer t.mu.Unlock()
	state := t.scores[hid]

	switch seg.Type {
	case segment.TypeBizDecision:
		if decision, _ := seg.Payload["decision"].(string); decision == "ACCEPT" {
			state.RichScore = clip100(state.RichScore + 2)
		}
	case segment.TypeBizOutcome:
		if outcome, _ := seg.Payload["outcome"].(string); outcome == "SUCCESS" {
			state.RichScore = clip100(state.RichScore + 5)
			state.BusinessScore = clip100(state.BusinessScore + 3)
		}
	}

	if overrides, ok := seg.Payload["scores"].(map[string]any); ok {
		if rich, ok := overrides["richScore"].(float64); ok {
			state.RichScore = clip100(rich)
		}
		if biz, ok := overrides["businessScore"].(float64); ok {
			state.BusinessScore = clip100(biz)
		}
	}

	t.scores[hid] = state
	return state
}

// Band reports the rich-score tier for hid's current projection (spec.md
// §3 GLOSSARY RichScoreBand).
func (t *Tracker) Band(hid string) protocol.RichScoreBand {
	return protocol.Band(t.Get(hid).RichScore)
}

// BuildMessage derives the MessageView projection record from a
// message-bearing segment (spec.md §3 MessageView, §4.5). Direction is
// "out" for the identity's own authored chat turn and for any segment
// whose payload role is "user", and "in" for every other message-bearing
// segment (advice received, decisions/outcomes recorded against the
// identity's own business flow).
func BuildMessage(seg *segment.Segment) store.MessageRecord {
	rec := store.MessageRecord{
		ID:        seg.ID(),
		Seq:       seg.Seq,
		Timestamp: seg.Timestamp,
		Type:      string(seg.Type),
		Author:    seg.Author.HID,
		Direction: direction(seg),
	}

	if chatID, ok := seg.Payload["chatId"].(string); ok {
		rec.Peer = chatID
	}
	if text, ok := seg.Payload["text"].(string); ok {
		rec.Text = text
	}
	if tag, ok := seg.Payload["tag"].(string); ok {
		rec.Tag = tag
	}
	if decision, ok := seg.Payload["decision"].(string); ok {
		rec.Decision = &decision
	}
	if outcome, ok := seg.Payload["outcome"].(string); ok {
		rec.Outcome = &outcome
	}
	if scores, ok := seg.Payload["scores"].(map[string]any); ok {
		rec.Scores = scores
	}

	return rec
}

func direction(seg *segment.Segment) string {
	if seg.Type == segment.TypeChatUser {
		return "out"
	}
	if role, ok := seg.Payload["role"].(string); ok && role == "user" {
		return "out"
	}
	return "in"
}
