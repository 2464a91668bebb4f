// Package crypto implements the Encryptor component: authenticated
// symmetric encryption of byte strings and JSON payloads, with the key
// derived from a master secret.
//
// Encryption algorithm:
//   - AES-256-GCM (authenticated encryption)
//   - 12-byte random nonce per call
//   - Key derived from the master secret using PBKDF2-SHA256 at 100,000
//     iterations with a fixed, per-installation salt
//
// Wire format: base64.URLEncoding(nonce || ciphertext || tag).
//
// Grounded on _examples/tomtom215-cartographus/internal/config/encryption.go
// (AES-256-GCM shape, error sentinels, self-framed Seal/Open usage,
// ValidateEncryptionSetup self-test), substituting PBKDF2-SHA256 for HKDF
// per the key-derivation requirement, and base64 URL encoding plus a
// JSON round-trip helper per the conversation-memory/profile use case.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// encryptionSalt is a fixed, application-specific salt. It is
	// sufficient for per-installation scope (spec.md §4.F): rotating it
	// invalidates all ciphertexts for this installation, which is the
	// desired behaviour when the master secret itself is rotated.
	encryptionSalt = "rhythmai-encryption-salt-v1"

	pbkdf2Iterations = 100_000
	aesKeySize       = 32
	gcmNonceSize     = 12
)

var (
	// ErrEmptySecret is returned when an empty master secret is provided.
	ErrEmptySecret = errors.New("crypto: master secret cannot be empty")
	// ErrEmptyPlaintext is returned when attempting to encrypt empty data.
	ErrEmptyPlaintext = errors.New("crypto: plaintext cannot be empty")
	// ErrEmptyCiphertext is returned when attempting to decrypt empty data.
	ErrEmptyCiphertext = errors.New("crypto: ciphertext cannot be empty")
	// ErrDecryptionFailed is the single typed error returned for any
	// integrity failure: nonce reuse, tampering, or the wrong key. The
	// caller cannot distinguish the cause (spec.md §4.F).
	ErrDecryptionFailed = errors.New("crypto: decryption failed: invalid key or corrupted data")
)

// Encryptor performs AEAD encryption/decryption of byte strings and JSON
// objects. Safe for concurrent use once constructed.
type Encryptor struct {
	gcm cipher.AEAD
}

// New derives a key from masterSecret via PBKDF2-SHA256 and constructs an
// Encryptor. masterSecret must be non-empty.
func New(masterSecret string) (*Encryptor, error) {
	if masterSecret == "" {
		return nil, ErrEmptySecret
	}

	key := pbkdf2.Key([]byte(masterSecret), []byte(encryptionSalt), pbkdf2Iterations, aesKeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return &Encryptor{gcm: gcm}, nil
}

// EncryptBytes encrypts plaintext with a fresh nonce and returns a
// base64url-encoded, self-framed ciphertext (nonce ‖ body ‖ tag).
func (e *Encryptor) EncryptBytes(plaintext []byte) (string, error) {
	if len(plaintext) == 0 {
		return "", ErrEmptyPlaintext
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: generating nonce: %w", err)
	}

	sealed := e.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// DecryptBytes reverses EncryptBytes. Any integrity failure — nonce
// reuse, tampering, or the wrong key — collapses to ErrDecryptionFailed;
// the caller cannot distinguish causes.
func (e *Encryptor) DecryptBytes(ciphertext string) ([]byte, error) {
	if ciphertext == "" {
		return nil, ErrEmptyCiphertext
	}

	data, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	minLen := gcmNonceSize + e.gcm.Overhead()
	if len(data) < minLen {
		return nil, ErrDecryptionFailed
	}

	nonce, body := data[:gcmNonceSize], data[gcmNonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptJSON serialises v with stable key ordering and encrypts the
// result.
func (e *Encryptor) EncryptJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("crypto: marshalling json: %w", err)
	}
	return e.EncryptBytes(data)
}

// DecryptJSON decrypts ciphertext and unmarshals it into v.
func (e *Encryptor) DecryptJSON(ciphertext string, v interface{}) error {
	plaintext, err := e.DecryptBytes(ciphertext)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("crypto: unmarshalling json: %w", err)
	}
	return nil
}

// ValidateSetup performs a round-trip encrypt/decrypt self-test, the Go
// analogue of the original's __main__ self-test block.
func (e *Encryptor) ValidateSetup() error {
	const probe = "encryption-validation-probe"
	ciphertext, err := e.EncryptBytes([]byte(probe))
	if err != nil {
		return fmt.Errorf("crypto: encrypt probe failed: %w", err)
	}
	plaintext, err := e.DecryptBytes(ciphertext)
	if err != nil {
		return fmt.Errorf("crypto: decrypt probe failed: %w", err)
	}
	if string(plaintext) != probe {
		return errors.New("crypto: round-trip validation failed: data mismatch")
	}
	return nil
}
