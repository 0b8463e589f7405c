package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestGenerateAndLoadDeterministic(t *testing.T) {
	password := []byte("correct horse")

	km, err := Generate(password)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	defer km.Destroy()

	if len(km.Salt) != SaltSize {
		t.Errorf("Salt length: got %d, want %d", len(km.Salt), SaltSize)
	}
	if len(km.IV) != IVSize {
		t.Errorf("IV length: got %d, want %d", len(km.IV), IVSize)
	}

	// Re-deriving with the same password and salt must yield the same key
	km2, err := Load(password, km.Salt, km.IV, km.Params)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer km2.Destroy()

	if !bytes.Equal(km.key, km2.key) {
		t.Error("re-derived key differs from original")
	}

	// A different password must yield a different key
	km3, err := Load([]byte("battery staple"), km.Salt, km.IV, km.Params)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer km3.Destroy()

	if bytes.Equal(km.key, km3.key) {
		t.Error("different passwords derived the same key")
	}
}

func TestLoadRejectsEmptyPassword(t *testing.T) {
	salt := make([]byte, SaltSize)
	iv := make([]byte, IVSize)

	if _, err := Load(nil, salt, iv, DefaultParams()); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("expected ErrEmptyPassword, got %v", err)
	}
	if _, err := Load([]byte{}, salt, iv, DefaultParams()); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestLoadRejectsBadLengths(t *testing.T) {
	password := []byte("pw")

	cases := []struct {
		name string
		salt []byte
		iv   []byte
	}{
		{"short salt", make([]byte, SaltSize-1), make([]byte, IVSize)},
		{"long salt", make([]byte, SaltSize+1), make([]byte, IVSize)},
		{"short iv", make([]byte, SaltSize), make([]byte, IVSize-1)},
		{"nil iv", make([]byte, SaltSize), nil},
	}

	for _, tc := range cases {
		if _, err := Load(password, tc.salt, tc.iv, DefaultParams()); !errors.Is(err, ErrBadKeyMaterial) {
			t.Errorf("%s: expected ErrBadKeyMaterial, got %v", tc.name, err)
		}
	}
}

func TestContainerKeyVariesWithSalt(t *testing.T) {
	km, err := Generate([]byte("pw"))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	defer km.Destroy()

	salt1, _ := GenerateRandom(ContainerSaltSize)
	salt2, _ := GenerateRandom(ContainerSaltSize)

	k1, err := km.ContainerKey(salt1)
	if err != nil {
		t.Fatalf("ContainerKey failed: %v", err)
	}
	k2, err := km.ContainerKey(salt2)
	if err != nil {
		t.Fatalf("ContainerKey failed: %v", err)
	}

	if bytes.Equal(k1, k2) {
		t.Error("different salts derived the same container key")
	}

	// Same salt must be deterministic
	k1again, err := km.ContainerKey(salt1)
	if err != nil {
		t.Fatalf("ContainerKey failed: %v", err)
	}
	if !bytes.Equal(k1, k1again) {
		t.Error("container key not deterministic for fixed salt")
	}

	if _, err := km.ContainerKey(make([]byte, ContainerSaltSize-4)); !errors.Is(err, ErrBadKeyMaterial) {
		t.Errorf("expected ErrBadKeyMaterial for short salt, got %v", err)
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	key, _ := GenerateRandom(KeySize)
	plaintext := []byte("the secret payload")
	aad := []byte{0, 0, 0, 0, 0, 0, 0, 42}

	nonce, ciphertext, tag, err := Seal(key, plaintext, aad)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if len(nonce) != NonceSize {
		t.Errorf("nonce length: got %d, want %d", len(nonce), NonceSize)
	}
	if len(tag) != TagSize {
		t.Errorf("tag length: got %d, want %d", len(tag), TagSize)
	}

	got, err := Open(key, nonce, ciphertext, tag, aad)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestOpenDetectsTampering(t *testing.T) {
	key, _ := GenerateRandom(KeySize)
	aad := []byte("record-1")

	nonce, ciphertext, tag, err := Seal(key, []byte("payload"), aad)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	flip := func(b []byte) []byte {
		out := append([]byte(nil), b...)
		out[len(out)/2] ^= 0x01
		return out
	}

	if _, err := Open(key, nonce, flip(ciphertext), tag, aad); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("tampered ciphertext: expected ErrAuthFailed, got %v", err)
	}
	if _, err := Open(key, nonce, ciphertext, flip(tag), aad); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("tampered tag: expected ErrAuthFailed, got %v", err)
	}
	if _, err := Open(key, nonce, ciphertext, tag, []byte("record-2")); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("wrong aad: expected ErrAuthFailed, got %v", err)
	}

	wrongKey, _ := GenerateRandom(KeySize)
	if _, err := Open(wrongKey, nonce, ciphertext, tag, aad); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("wrong key: expected ErrAuthFailed, got %v", err)
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	key, _ := GenerateRandom(KeySize)

	nonce1, ct1, _, err := Seal(key, []byte("same payload"), nil)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	nonce2, ct2, _, err := Seal(key, []byte("same payload"), nil)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if bytes.Equal(nonce1, nonce2) {
		t.Error("nonce reused across encryption events")
	}
	if bytes.Equal(ct1, ct2) {
		t.Error("identical ciphertext for two encryption events")
	}
}

func TestClearBytes(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	ClearBytes(b)
	for i, v := range b {
		if v != 0 {
			t.Errorf("byte %d not cleared: %d", i, v)
		}
	}
}
