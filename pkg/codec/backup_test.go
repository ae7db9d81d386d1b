package codec

import "testing"

func TestBackup_RoundTrip(t *testing.T) {
	plaintext := []byte(`{"hid":"HID-ABCD1234","privateKey":"..."}`)
	blob, err := EncryptBackup("correct horse battery staple", plaintext)
	if err != nil {
		t.Fatalf("encrypt backup: %v", err)
	}
	got, err := DecryptBackup("correct horse battery staple", blob)
	if err != nil {
		t.Fatalf("decrypt backup: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Errorf("got %q, want %q", got, plaintext)
	}
}

func TestBackup_WrongPasswordFailsAuthentication(t *testing.T) {
	blob, err := EncryptBackup("correct", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt backup: %v", err)
	}
	if _, err := DecryptBackup("wrong", blob); err != ErrBackupAuthentication {
		t.Errorf("got %v, want ErrBackupAuthentication", err)
	}
}

func TestBackup_TamperedCiphertextFailsAuthentication(t *testing.T) {
	blob, err := EncryptBackup("pw", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt backup: %v", err)
	}
	blob[len(blob)-1] ^= 0xFF
	if _, err := DecryptBackup("pw", blob); err != ErrBackupAuthentication {
		t.Errorf("got %v, want ErrBackupAuthentication", err)
	}
}

func TestBackup_VersionMismatch(t *testing.T) {
	blob, err := EncryptBackup("pw", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt backup: %v", err)
	}
	blob[0] = 0xFF
	if _, err := DecryptBackup("pw", blob); err != ErrBackupVersionMismatch {
		t.Errorf("got %v, want ErrBackupVersionMismatch", err)
	}
}

func TestBackup_DistinctSaltsPerCall(t *testing.T) {
	blob1, err := EncryptBackup("pw", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt backup: %v", err)
	}
	blob2, err := EncryptBackup("pw", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt backup: %v", err)
	}
	if string(blob1) == string(blob2) {
		t.Error("two encryptions of the same plaintext produced identical blobs")
	}
}
