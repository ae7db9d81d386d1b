package codec

import "testing"

func TestSignVerify_RoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	signable := `{"action":"chat.user","seq":1}`

	sig, err := Sign(kp.PrivateKey, signable)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !Verify(&kp.PrivateKey.PublicKey, signable, sig) {
		t.Error("verify returned false for an untampered signature")
	}
}

func TestVerify_TamperedSignableFails(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	sig, err := Sign(kp.PrivateKey, "original")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if Verify(&kp.PrivateKey.PublicKey, "tampered", sig) {
		t.Error("verify returned true for a tampered signable string")
	}
}

func TestVerify_TamperedSignatureFails(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	signable := "original"
	sig, err := Sign(kp.PrivateKey, signable)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	raw := []byte(sig)
	raw[len(raw)-1] ^= 0xFF
	if Verify(&kp.PrivateKey.PublicKey, signable, string(raw)) {
		t.Error("verify returned true for a tampered signature")
	}
}

func TestVerify_WrongKeyFails(t *testing.T) {
	kp1, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	kp2, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	signable := "original"
	sig, err := Sign(kp1.PrivateKey, signable)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if Verify(&kp2.PrivateKey.PublicKey, signable, sig) {
		t.Error("verify returned true against the wrong public key")
	}
}

func TestPublicKeyHex_RoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	hexKey := PublicKeyHex(&kp.PrivateKey.PublicKey)
	parsed, err := ParsePublicKeyHex(hexKey)
	if err != nil {
		t.Fatalf("parse public key hex: %v", err)
	}
	if parsed.X.Cmp(kp.PrivateKey.PublicKey.X) != 0 || parsed.Y.Cmp(kp.PrivateKey.PublicKey.Y) != 0 {
		t.Error("round-tripped public key does not match original")
	}
}

func TestDeriveHID_StableAndPrefixed(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	hexKey := PublicKeyHex(&kp.PrivateKey.PublicKey)

	hid1, err := DeriveHID(hexKey)
	if err != nil {
		t.Fatalf("derive hid: %v", err)
	}
	hid2, err := DeriveHID(hexKey)
	if err != nil {
		t.Fatalf("derive hid: %v", err)
	}
	if hid1 != hid2 {
		t.Errorf("DeriveHID is not stable: %q != %q", hid1, hid2)
	}
	if len(hid1) != len("HID-")+8 || hid1[:4] != "HID-" {
		t.Errorf("unexpected HID shape: %q", hid1)
	}
}

func TestDeriveHID_DifferentKeysDiffer(t *testing.T) {
	kp1, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	kp2, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	hid1, err := DeriveHID(PublicKeyHex(&kp1.PrivateKey.PublicKey))
	if err != nil {
		t.Fatalf("derive hid: %v", err)
	}
	hid2, err := DeriveHID(PublicKeyHex(&kp2.PrivateKey.PublicKey))
	if err != nil {
		t.Fatalf("derive hid: %v", err)
	}
	if hid1 == hid2 {
		t.Error("distinct keys produced the same HID")
	}
}
