package segment

import "testing"

func testAuthor(t *testing.T) (Author, *segmentTestKey) {
	t.Helper()
	key, err := newSegmentTestKey()
	if err != nil {
		t.Fatalf("generate test key: %v", err)
	}
	return Author{HID: key.hid, Algorithm: key.algorithm, PublicKey: key.pubHex}, key
}

func TestBuild_FirstSegmentHasGenesisPrevHash(t *testing.T) {
	author, key := testAuthor(t)
	seg, err := Build(author, "GENESIS", 1, TypeChatUser, ChatUserPayload("hakim", "hello", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if seg.PrevHash != "GENESIS" || seg.Seq != 1 {
		t.Errorf("unexpected seq/prevHash: %d %q", seg.Seq, seg.PrevHash)
	}
	if err := seg.Sign(key.priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := ValidateStructure(seg); err != nil {
		t.Errorf("expected valid structure, got %v", err)
	}
}

func TestSignable_SignVerify_RoundTrip(t *testing.T) {
	author, key := testAuthor(t)
	seg, err := Build(author, "GENESIS", 1, TypeChatUser, ChatUserPayload("hakim", "hello", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := seg.Sign(key.priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := seg.VerifySignature()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Error("expected signature to verify")
	}
}

func TestSignable_TamperedPayloadFailsVerification(t *testing.T) {
	author, key := testAuthor(t)
	seg, err := Build(author, "GENESIS", 1, TypeChatUser, ChatUserPayload("hakim", "hello", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := seg.Sign(key.priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	seg.Payload["text"] = "tampered"
	ok, err := seg.VerifySignature()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Error("expected tampered payload to fail verification")
	}
}

func TestHash_StableAcrossCalls(t *testing.T) {
	author, key := testAuthor(t)
	seg, err := Build(author, "GENESIS", 1, TypeChatUser, ChatUserPayload("hakim", "hello", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := seg.Sign(key.priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	h1, err := seg.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := seg.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 != h2 {
		t.Errorf("hash not stable: %q != %q", h1, h2)
	}
}

func TestValidateStructure_RejectsBadNonce(t *testing.T) {
	author, key := testAuthor(t)
	seg, err := Build(author, "GENESIS", 1, TypeChatUser, ChatUserPayload("hakim", "hello", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	seg.Nonce = "not-hex"
	if err := seg.Sign(key.priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := ValidateStructure(seg); err == nil {
		t.Error("expected structural validation to reject a non-hex nonce")
	}
}

func TestValidateStructure_RejectsUnknownType(t *testing.T) {
	author, key := testAuthor(t)
	seg, err := Build(author, "GENESIS", 1, TypeChatUser, ChatUserPayload("hakim", "hello", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	seg.Type = "not.a.type"
	if err := seg.Sign(key.priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := ValidateStructure(seg); err == nil {
		t.Error("expected structural validation to reject an unknown type")
	}
}

func TestID_MatchesSeqColonNonce(t *testing.T) {
	author, _ := testAuthor(t)
	seg, err := Build(author, "GENESIS", 7, TypeChatUser, ChatUserPayload("hakim", "hello", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := "7:" + seg.Nonce
	if seg.ID() != want {
		t.Errorf("got %q, want %q", seg.ID(), want)
	}
}
