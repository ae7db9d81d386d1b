package projections

import (
	"testing"

	"github.com/balancechain/core/internal/segment"
)

func buildSeg(t *testing.T, typ segment.Type, payload map[string]any) *segment.Segment {
	t.Helper()
	author := segment.Author{HID: "HID-TEST0001", Algorithm: "ECDSA-P256-SHA256", PublicKey: "aa"}
	s, err := segment.Build(author, "GENESIS", 1, typ, payload, nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return s
}

func TestTracker_Apply_BizDecisionAcceptIncrementsRichScore(t *testing.T) {
	tr := NewTracker()
	seg := buildSeg(t, segment.TypeBizDecision, segment.BizDecisionPayload("c", "ACCEPT", 1))
	state := tr.Apply("HID-TEST0001", seg)
	if state.RichScore != 2 {
		t.Errorf("expected richScore 2, got %v", state.RichScore)
	}
}

func TestTracker_Apply_BizDecisionRejectDoesNotChangeScore(t *testing.T) {
	tr := NewTracker()
	seg := buildSeg(t, segment.TypeBizDecision, segment.BizDecisionPayload("c", "REJECT", 1))
	state := tr.Apply("HID-TEST0001", seg)
	if state.RichScore != 0 {
		t.Errorf("expected richScore unchanged at 0, got %v", state.RichScore)
	}
}

func TestTracker_Apply_BizOutcomeSuccessIncrementsBothScores(t *testing.T) {
	tr := NewTracker()
	seg := buildSeg(t, segment.TypeBizOutcome, segment.BizOutcomePayload("c", "SUCCESS", 1))
	state := tr.Apply("HID-TEST0001", seg)
	if state.RichScore != 5 || state.BusinessScore != 3 {
		t.Errorf("unexpected state: %+v", state)
	}
}

func TestTracker_Apply_ClipsAt100(t *testing.T) {
	tr := NewTracker()
	tr.Set("HID-TEST0001", ScoreState{RichScore: 99, BusinessScore: 99})
	seg := buildSeg(t, segment.TypeBizOutcome, segment.BizOutcomePayload("c", "SUCCESS", 1))
	state := tr.Apply("HID-TEST0001", seg)
	if state.RichScore != 100 || state.BusinessScore != 100 {
		t.Errorf("expected clip to 100, got %+v", state)
	}
}

func TestTracker_Apply_ExplicitScoresOverride(t *testing.T) {
	tr := NewTracker()
	seg := buildSeg(t, segment.TypeBizOutcome, segment.BizOutcomePayload("c", "FAIL", 1))
	seg.Payload["scores"] = segment.ScoresOverride(42, 17)
	state := tr.Apply("HID-TEST0001", seg)
	if state.RichScore != 42 || state.BusinessScore != 17 {
		t.Errorf("expected override to win, got %+v", state)
	}
}

func TestTracker_Get_IsIndependentPerIdentity(t *testing.T) {
	tr := NewTracker()
	tr.Set("HID-A", ScoreState{RichScore: 10})
	tr.Set("HID-B", ScoreState{RichScore: 20})
	if tr.Get("HID-A").RichScore != 10 || tr.Get("HID-B").RichScore != 20 {
		t.Error("expected per-identity isolation")
	}
}

func TestBuildMessage_ChatUserIsOutbound(t *testing.T) {
	seg := buildSeg(t, segment.TypeChatUser, segment.ChatUserPayload("chat-1", "hello", "user"))
	rec := BuildMessage(seg)
	if rec.Direction != "out" || rec.Peer != "chat-1" || rec.Text != "hello" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestBuildMessage_AIAdviceIsInbound(t *testing.T) {
	seg := buildSeg(t, segment.TypeAIAdvice, segment.AIAdvicePayload("chat-1", "consider x"))
	rec := BuildMessage(seg)
	if rec.Direction != "in" {
		t.Errorf("expected inbound direction, got %q", rec.Direction)
	}
}

func TestBuildMessage_CarriesDecisionAndOutcome(t *testing.T) {
	seg := buildSeg(t, segment.TypeBizDecision, segment.BizDecisionPayload("chat-1", "ACCEPT", 3))
	rec := BuildMessage(seg)
	if rec.Decision == nil || *rec.Decision != "ACCEPT" {
		t.Errorf("expected decision carried through, got %+v", rec.Decision)
	}
}
