package identity

import (
	"testing"

	"github.com/balancechain/core/internal/segment"
	"github.com/balancechain/core/pkg/codec"
)

func TestPrivateKeyHex_RoundTrip(t *testing.T) {
	kp, err := codec.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	hexKey := privateKeyHex(kp.PrivateKey)
	recovered, err := parsePrivateKeyHex(hexKey)
	if err != nil {
		t.Fatalf("parse private key hex: %v", err)
	}
	if recovered.D.Cmp(kp.PrivateKey.D) != 0 {
		t.Error("expected recovered scalar to match original")
	}
	if recovered.PublicKey.X.Cmp(kp.PrivateKey.PublicKey.X) != 0 || recovered.PublicKey.Y.Cmp(kp.PrivateKey.PublicKey.Y) != 0 {
		t.Error("expected recovered public point to match original")
	}
}

func TestManager_ExportImport_RoundTrip(t *testing.T) {
	kp, err := codec.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	pubHex := codec.PublicKeyHex(&kp.PrivateKey.PublicKey)
	hid, err := codec.DeriveHID(pubHex)
	if err != nil {
		t.Fatalf("derive hid: %v", err)
	}
	m := &Manager{keyPair: kp, hid: hid, createdVia: "generated"}

	blob, err := m.Export("correct horse")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	priv, recoveredHID, err := Import("correct horse", blob)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if recoveredHID != hid {
		t.Errorf("expected recovered hid %q, got %q", hid, recoveredHID)
	}
	if priv.D.Cmp(kp.PrivateKey.D) != 0 {
		t.Error("expected recovered private key to match original")
	}
}

func TestManager_Import_WrongPasswordFails(t *testing.T) {
	kp, err := codec.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	pubHex := codec.PublicKeyHex(&kp.PrivateKey.PublicKey)
	hid, err := codec.DeriveHID(pubHex)
	if err != nil {
		t.Fatalf("derive hid: %v", err)
	}
	m := &Manager{keyPair: kp, hid: hid, createdVia: "generated"}

	blob, err := m.Export("correct horse")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, _, err := Import("wrong password", blob); err == nil {
		t.Error("expected import with wrong password to fail")
	}
}

func TestLivenessProof_ToPayload_OmitsAbsentFields(t *testing.T) {
	p := LivenessProof{Type: "timestamp", Timestamp: 12345}
	payload := p.ToPayload()
	if _, ok := payload["assertion"]; ok {
		t.Error("expected no assertion key when Assertion is nil")
	}
	if _, ok := payload["nonce"]; ok {
		t.Error("expected no nonce key when Nonce is empty")
	}
	if payload["type"] != "timestamp" || payload["timestamp"] != int64(12345) {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestManager_Sign_ProducesVerifiableSignature(t *testing.T) {
	kp, err := codec.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	pubHex := codec.PublicKeyHex(&kp.PrivateKey.PublicKey)
	hid, err := codec.DeriveHID(pubHex)
	if err != nil {
		t.Fatalf("derive hid: %v", err)
	}
	m := &Manager{keyPair: kp, hid: hid, createdVia: "generated"}

	author := m.Author()
	if author.HID != hid {
		t.Errorf("expected Author().HID %q, got %q", hid, author.HID)
	}

	seg, err := segment.Build(author, "GENESIS", 1, segment.TypeChatUser, segment.ChatUserPayload("c", "hi", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := m.Sign(seg); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if ok, err := seg.VerifySignature(); err != nil || !ok {
		t.Errorf("expected Manager.Sign to produce a verifiable signature, got ok=%v err=%v", ok, err)
	}
}
