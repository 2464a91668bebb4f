package crypto_test

import (
	"testing"

	"rhythmai/internal/crypto"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	enc, err := crypto.New("test-master-secret")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	plaintext := []byte("texto con acentos: café, corazón, música")
	ciphertext, err := enc.EncryptBytes(plaintext)
	if err != nil {
		t.Fatalf("EncryptBytes returned error: %v", err)
	}

	decrypted, err := enc.DecryptBytes(ciphertext)
	if err != nil {
		t.Fatalf("DecryptBytes returned error: %v", err)
	}
	if string(decrypted) != string(plaintext) {
		t.Errorf("expected round-trip to recover plaintext, got %q", decrypted)
	}
}

func TestEncrypt_DistinctCiphertexts(t *testing.T) {
	enc, _ := crypto.New("test-master-secret")
	a, err := enc.EncryptBytes([]byte("same plaintext"))
	if err != nil {
		t.Fatalf("EncryptBytes returned error: %v", err)
	}
	b, err := enc.EncryptBytes([]byte("same plaintext"))
	if err != nil {
		t.Fatalf("EncryptBytes returned error: %v", err)
	}
	if a == b {
		t.Error("expected two encryptions of the same plaintext to produce distinct ciphertexts")
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	enc1, _ := crypto.New("secret-one")
	enc2, _ := crypto.New("secret-two")

	ciphertext, err := enc1.EncryptBytes([]byte("sensitive data"))
	if err != nil {
		t.Fatalf("EncryptBytes returned error: %v", err)
	}
	if _, err := enc2.DecryptBytes(ciphertext); err != crypto.ErrDecryptionFailed {
		t.Errorf("expected ErrDecryptionFailed with the wrong key, got %v", err)
	}
}

func TestDecrypt_TamperedCiphertextFails(t *testing.T) {
	enc, _ := crypto.New("test-master-secret")
	ciphertext, _ := enc.EncryptBytes([]byte("sensitive data"))
	tampered := ciphertext[:len(ciphertext)-2] + "xx"

	if _, err := enc.DecryptBytes(tampered); err != crypto.ErrDecryptionFailed {
		t.Errorf("expected ErrDecryptionFailed for tampered ciphertext, got %v", err)
	}
}

func TestEncryptJSON_RoundTrip(t *testing.T) {
	enc, _ := crypto.New("test-master-secret")

	type payload struct {
		Name  string
		Count int
	}
	in := payload{Name: "rhythmai", Count: 7}

	ciphertext, err := enc.EncryptJSON(in)
	if err != nil {
		t.Fatalf("EncryptJSON returned error: %v", err)
	}

	var out payload
	if err := enc.DecryptJSON(ciphertext, &out); err != nil {
		t.Fatalf("DecryptJSON returned error: %v", err)
	}
	if out != in {
		t.Errorf("expected %+v, got %+v", in, out)
	}
}

func TestNew_EmptySecretRejected(t *testing.T) {
	if _, err := crypto.New(""); err != crypto.ErrEmptySecret {
		t.Errorf("expected ErrEmptySecret, got %v", err)
	}
}

func TestValidateSetup(t *testing.T) {
	enc, _ := crypto.New("test-master-secret")
	if err := enc.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup returned error: %v", err)
	}
}
