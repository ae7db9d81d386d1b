package validator

import (
	"testing"
	"time"

	"github.com/balancechain/core/internal/segment"
	"github.com/balancechain/core/pkg/codec"
)

func newTestAuthor(t *testing.T) (segment.Author, *testKey) {
	t.Helper()
	kp, err := codec.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	pubHex := codec.PublicKeyHex(&kp.PrivateKey.PublicKey)
	hid, err := codec.DeriveHID(pubHex)
	if err != nil {
		t.Fatalf("derive hid: %v", err)
	}
	return segment.Author{HID: hid, Algorithm: kp.Algorithm, PublicKey: pubHex}, &testKey{priv: kp}
}

type testKey struct {
	priv *codec.KeyPair
}

func TestRuleSignature_PassesForValidSignature(t *testing.T) {
	g := &Gate{}
	author, key := newTestAuthor(t)
	s, err := segment.Build(author, "GENESIS", 1, segment.TypeChatUser, segment.ChatUserPayload("hakim", "hi", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := s.Sign(key.priv.PrivateKey); err != nil {
		t.Fatalf("sign: %v", err)
	}
	r := g.ruleSignature(nil, "", s, nil, Options{})
	if !r.OK {
		t.Errorf("expected signature rule to pass, got %+v", r)
	}
}

func TestRuleSignature_FailsForTamperedPayload(t *testing.T) {
	g := &Gate{}
	author, key := newTestAuthor(t)
	s, err := segment.Build(author, "GENESIS", 1, segment.TypeChatUser, segment.ChatUserPayload("hakim", "hi", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := s.Sign(key.priv.PrivateKey); err != nil {
		t.Fatalf("sign: %v", err)
	}
	s.Payload["text"] = "tampered"
	r := g.ruleSignature(nil, "", s, nil, Options{})
	if r.OK {
		t.Error("expected signature rule to fail on tampered payload")
	}
	if r.Rule != 8 || r.Reason != "bad_signature" {
		t.Errorf("unexpected failure shape: %+v", r)
	}
}

func TestRuleRateLimit_FailsUnder1000ms(t *testing.T) {
	g := &Gate{}
	author, key := newTestAuthor(t)
	prev, err := segment.Build(author, "GENESIS", 1, segment.TypeChatUser, segment.ChatUserPayload("c", "a", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := prev.Sign(key.priv.PrivateKey); err != nil {
		t.Fatalf("sign: %v", err)
	}

	candidate, err := segment.Build(author, "h", 2, segment.TypeChatUser, segment.ChatUserPayload("c", "b", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	candidate.Timestamp = prev.Timestamp + 999

	r := g.ruleRateLimit(nil, "", candidate, prev, Options{})
	if r.OK {
		t.Error("expected rate limit rule to fail at 999ms spacing")
	}
	if r.Reason != "rate_limit" {
		t.Errorf("unexpected reason: %q", r.Reason)
	}
}

func TestRuleRateLimit_PassesAt1000ms(t *testing.T) {
	g := &Gate{}
	author, key := newTestAuthor(t)
	prev, err := segment.Build(author, "GENESIS", 1, segment.TypeChatUser, segment.ChatUserPayload("c", "a", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := prev.Sign(key.priv.PrivateKey); err != nil {
		t.Fatalf("sign: %v", err)
	}

	candidate, err := segment.Build(author, "h", 2, segment.TypeChatUser, segment.ChatUserPayload("c", "b", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	candidate.Timestamp = prev.Timestamp + 1000

	r := g.ruleRateLimit(nil, "", candidate, prev, Options{})
	if !r.OK {
		t.Errorf("expected rate limit rule to pass at 1000ms spacing, got %+v", r)
	}
}

func TestRuleRateLimit_IgnoresDifferentAuthors(t *testing.T) {
	g := &Gate{}
	author1, key1 := newTestAuthor(t)
	author2, _ := newTestAuthor(t)

	prev, err := segment.Build(author1, "GENESIS", 1, segment.TypeChatUser, segment.ChatUserPayload("c", "a", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := prev.Sign(key1.priv.PrivateKey); err != nil {
		t.Fatalf("sign: %v", err)
	}

	candidate, err := segment.Build(author2, "h", 2, segment.TypeChatUser, segment.ChatUserPayload("c", "b", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	candidate.Timestamp = prev.Timestamp

	r := g.ruleRateLimit(nil, "", candidate, prev, Options{})
	if !r.OK {
		t.Errorf("expected rate limit rule to ignore different authors, got %+v", r)
	}
}

func TestRuleOwnerTransition_RequiresPreviousOwnerForTransfer(t *testing.T) {
	g := &Gate{}
	author, _ := newTestAuthor(t)
	s, err := segment.Build(author, "h", 2, segment.TypeTVMTransfer, map[string]any{}, nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r := g.ruleOwnerTransition(nil, "", s, nil, Options{})
	if r.OK || r.Reason != "missing_previous_owner" {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestRuleOwnerTransition_FailsWhenSameOwner(t *testing.T) {
	g := &Gate{}
	author, _ := newTestAuthor(t)
	same := author.HID
	s, err := segment.Build(author, "h", 2, segment.TypeTVMTransfer, map[string]any{}, &same, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r := g.ruleOwnerTransition(nil, "", s, nil, Options{})
	if r.OK || r.Reason != "same_owner" {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestRuleOwnerTransition_PassesWhenOwnersDiffer(t *testing.T) {
	g := &Gate{}
	author, _ := newTestAuthor(t)
	other := "HID-OTHER0001"
	s, err := segment.Build(author, "h", 2, segment.TypeTVMTransfer, map[string]any{}, &other, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r := g.ruleOwnerTransition(nil, "", s, nil, Options{})
	if !r.OK {
		t.Errorf("expected owner transition rule to pass, got %+v", r)
	}
}

func TestRuleOwnerTransition_IgnoresNonTransferTypes(t *testing.T) {
	g := &Gate{}
	author, _ := newTestAuthor(t)
	s, err := segment.Build(author, "h", 2, segment.TypeChatUser, segment.ChatUserPayload("c", "a", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r := g.ruleOwnerTransition(nil, "", s, nil, Options{})
	if !r.OK {
		t.Errorf("expected non-transfer type to pass owner transition unconditionally, got %+v", r)
	}
}

func TestRuleLiveness_SkippedWhenFlagSet(t *testing.T) {
	g := &Gate{}
	author, _ := newTestAuthor(t)
	payload := segment.ChatUserPayload("c", "a", "user")
	payload["liveness"] = map[string]any{"timestamp": "not-a-number"} // would fail if evaluated
	s, err := segment.Build(author, "h", 2, segment.TypeChatUser, payload, nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r := g.ruleLiveness(nil, "", s, nil, Options{SkipLiveness: true})
	if !r.OK {
		t.Errorf("expected liveness rule to be skipped, got %+v", r)
	}
}

func TestRuleLiveness_PassesWhenAbsent(t *testing.T) {
	g := &Gate{}
	author, _ := newTestAuthor(t)
	s, err := segment.Build(author, "h", 2, segment.TypeChatUser, segment.ChatUserPayload("c", "a", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r := g.ruleLiveness(nil, "", s, nil, Options{})
	if !r.OK {
		t.Errorf("expected absent liveness proof to be tolerated, got %+v", r)
	}
}

func TestRuleLiveness_FailsOnStaleTimestamp(t *testing.T) {
	g := &Gate{}
	author, _ := newTestAuthor(t)
	payload := segment.ChatUserPayload("c", "a", "user")
	s, err := segment.Build(author, "h", 2, segment.TypeChatUser, payload, nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	s.Payload["liveness"] = map[string]any{
		"timestamp": float64(s.Timestamp - int64(2*time.Hour/time.Millisecond)),
	}
	r := g.ruleLiveness(nil, "", s, nil, Options{})
	if r.OK || r.Reason != "timestamp_drift" {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestRuleCounterRelationship_PassesWhenRefsAbsent(t *testing.T) {
	g := &Gate{}
	author, _ := newTestAuthor(t)
	s, err := segment.Build(author, "h", 2, segment.TypeChatUser, segment.ChatUserPayload("c", "a", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r := g.ruleCounterRelationship(nil, "", s, nil, Options{})
	if !r.OK {
		t.Errorf("expected pass when no refs present, got %+v", r)
	}
}

func TestRuleCounterRelationship_FailsOnBadOrder(t *testing.T) {
	g := &Gate{}
	author, _ := newTestAuthor(t)
	unlocker := "1:aaaa"
	unlocked := "5:bbbb"
	s, err := segment.Build(author, "h", 6, segment.TypeChatUser, segment.ChatUserPayload("c", "a", "user"), nil, &unlocker, &unlocked)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r := g.ruleCounterRelationship(nil, "", s, nil, Options{})
	if r.OK || r.Reason != "counter_order" {
		t.Errorf("unexpected result: %+v", r)
	}
}
