package codec

import (
	"bytes"
	"testing"
)

func TestECDH_SharedSecretAgrees(t *testing.T) {
	a, err := GenerateECDHKeyPair()
	if err != nil {
		t.Fatalf("generate ecdh key pair: %v", err)
	}
	b, err := GenerateECDHKeyPair()
	if err != nil {
		t.Fatalf("generate ecdh key pair: %v", err)
	}

	secretA, err := a.SharedSecret(b.Public)
	if err != nil {
		t.Fatalf("shared secret a: %v", err)
	}
	secretB, err := b.SharedSecret(a.Public)
	if err != nil {
		t.Fatalf("shared secret b: %v", err)
	}
	if !bytes.Equal(secretA, secretB) {
		t.Error("shared secrets do not agree")
	}
}

func TestSealOpenAESGCM_RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	plaintext := []byte("session payload")

	sealed, err := SealAESGCM(key, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	got, err := OpenAESGCM(key, sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("got %q, want %q", got, plaintext)
	}
}

func TestOpenAESGCM_WrongKeyFails(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	wrongKey := bytes.Repeat([]byte{0x24}, 32)

	sealed, err := SealAESGCM(key, []byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := OpenAESGCM(wrongKey, sealed); err == nil {
		t.Error("expected error opening with the wrong key")
	}
}
