package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
)

const (
	NonceSize = 12 // GCM nonce size
	TagSize   = 16 // GCM authentication tag size
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrAuthFailed        = errors.New("authentication failed")
)

// Seal encrypts plaintext using AES-256-GCM under a fresh random nonce.
// The authentication tag is returned separately from the ciphertext so
// callers can persist them as distinct fields.
func Seal(key, plaintext, aad []byte) (nonce, ciphertext, tag []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, nil, err
	}

	nonce, err = GenerateRandom(NonceSize)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, aad)
	ciphertext = sealed[:len(sealed)-TagSize]
	tag = sealed[len(sealed)-TagSize:]
	return nonce, ciphertext, tag, nil
}

// Open verifies the tag and decrypts the ciphertext. The tag is checked
// before any plaintext is released; on mismatch ErrAuthFailed is returned
// and no decryption output is produced.
func Open(key, nonce, ciphertext, tag, aad []byte) ([]byte, error) {
	if len(nonce) != NonceSize || len(tag) != TagSize {
		return nil, ErrInvalidCiphertext
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("aes-gcm requires a %d-byte key", KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
