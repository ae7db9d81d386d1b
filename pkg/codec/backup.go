package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	backupVersion    byte = 1
	backupSaltLen         = 16
	backupNonceLen        = 12
	pbkdf2Iterations      = 100_000
	aesKeyLen             = 32
)

var (
	// ErrBackupVersionMismatch is returned when the framing byte does not
	// match the version this codec understands.
	ErrBackupVersionMismatch = errors.New("codec: backup version mismatch")
	// ErrBackupAuthentication is returned when AES-GCM authentication
	// fails — wrong password or tampered ciphertext.
	ErrBackupAuthentication = errors.New("codec: backup authentication failed")
)

// EncryptBackup encrypts plaintext (the JSON form of an identity export)
// with a password-derived AES-256-GCM key, framed as
// [version=1][16-byte salt][12-byte nonce][ciphertext] (spec.md §4.1, §6).
func EncryptBackup(password string, plaintext []byte) ([]byte, error) {
	salt := make([]byte, backupSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("codec: backup salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("codec: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("codec: gcm: %w", err)
	}

	nonce := make([]byte, backupNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("codec: backup nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, 1+backupSaltLen+backupNonceLen+len(ciphertext))
	out = append(out, backupVersion)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// DecryptBackup reverses EncryptBackup. It fails with
// ErrBackupVersionMismatch on a framing mismatch and
// ErrBackupAuthentication on a wrong password or tampered ciphertext.
func DecryptBackup(password string, blob []byte) ([]byte, error) {
	if len(blob) < 1+backupSaltLen+backupNonceLen {
		return nil, fmt.Errorf("codec: backup payload too short")
	}
	if blob[0] != backupVersion {
		return nil, ErrBackupVersionMismatch
	}

	offset := 1
	salt := blob[offset : offset+backupSaltLen]
	offset += backupSaltLen
	nonce := blob[offset : offset+backupNonceLen]
	offset += backupNonceLen
	ciphertext := blob[offset:]

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("codec: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("codec: gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrBackupAuthentication
	}
	return plaintext, nil
}
