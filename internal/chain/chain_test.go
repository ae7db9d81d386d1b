package chain

import (
	"sync"
	"testing"

	"github.com/balancechain/core/internal/segment"
	"github.com/balancechain/core/pkg/codec"
)

func TestLockFor_ReturnsSameMutexForSameHID(t *testing.T) {
	h := &Handle{locks: make(map[string]*sync.Mutex)}
	a := h.lockFor("HID-ONE")
	b := h.lockFor("HID-ONE")
	if a != b {
		t.Error("expected lockFor to return the same mutex for the same hid")
	}
}

func TestLockFor_ReturnsDistinctMutexesForDistinctHIDs(t *testing.T) {
	h := &Handle{locks: make(map[string]*sync.Mutex)}
	a := h.lockFor("HID-ONE")
	b := h.lockFor("HID-TWO")
	if a == b {
		t.Error("expected lockFor to return distinct mutexes for distinct hids")
	}
}

func TestPrivateKeySigner_SignsAndVerifies(t *testing.T) {
	kp, err := codec.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	pubHex := codec.PublicKeyHex(&kp.PrivateKey.PublicKey)
	hid, err := codec.DeriveHID(pubHex)
	if err != nil {
		t.Fatalf("derive hid: %v", err)
	}
	author := segment.Author{HID: hid, Algorithm: kp.Algorithm, PublicKey: pubHex}

	s, err := segment.Build(author, "GENESIS", 1, segment.TypeChatUser, segment.ChatUserPayload("c", "hi", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	signer := PrivateKeySigner{Key: kp.PrivateKey}
	if err := signer.Sign(s); err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := s.VerifySignature()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Error("expected PrivateKeySigner-produced signature to verify")
	}
}
