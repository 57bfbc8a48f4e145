package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// Cipher encrypts stored session values. Seal and Open work on the string
// representation the store persists.
type Cipher interface {
	Seal(plaintext string) (string, error)
	Open(boxed string) (string, error)
}

// SecretboxCipher implements Cipher with NaCl secretbox. The 24-byte nonce
// is prepended to the ciphertext and the whole blob is base64-encoded.
type SecretboxCipher struct {
	key [32]byte
}

// NewSecretboxCipher derives the cipher from a base64-encoded 32-byte key.
func NewSecretboxCipher(encodedKey string) (*SecretboxCipher, error) {
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("invalid session encryption key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("session encryption key must be 32 bytes, got %d", len(raw))
	}

	c := &SecretboxCipher{}
	copy(c.key[:], raw)
	return c, nil
}

func (c *SecretboxCipher) Seal(plaintext string) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	boxed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key)
	return base64.StdEncoding.EncodeToString(boxed), nil
}

func (c *SecretboxCipher) Open(boxed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(boxed)
	if err != nil {
		return "", fmt.Errorf("invalid encrypted value: %w", err)
	}
	if len(raw) < 24 {
		return "", fmt.Errorf("encrypted value too short")
	}

	var nonce [24]byte
	copy(nonce[:], raw[:24])

	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &c.key)
	if !ok {
		return "", fmt.Errorf("failed to decrypt value")
	}
	return string(plain), nil
}
