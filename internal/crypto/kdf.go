package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	SaltSize          = 32 // vault KDF salt size in bytes
	IVSize            = 16 // vault IV size, used as the MAC key derivation salt
	KeySize           = 32 // AES-256 key size
	ContainerSaltSize = 16 // per-container HKDF salt size
)

// HKDF context strings. Versioned so a future format change can derive
// different keys from the same master key.
const (
	containerKeyInfo = "securebox/container/v1"
	vaultMACInfo     = "securebox/vault-mac/v1"
)

var (
	ErrEmptyPassword  = errors.New("empty password")
	ErrBadKeyMaterial = errors.New("invalid salt or iv")
)

// Params are the Argon2id cost parameters. They are persisted next to the
// salt so the key can be re-derived on unlock.
type Params struct {
	Time        uint32
	MemoryMB    uint32
	Parallelism uint8
}

// DefaultParams returns the cost parameters used for new vaults.
func DefaultParams() Params {
	return Params{
		Time:        3,
		MemoryMB:    64,
		Parallelism: 1,
	}
}

func (p Params) validate() error {
	if p.Time == 0 || p.MemoryMB == 0 || p.Parallelism == 0 {
		return fmt.Errorf("invalid argon2 parameters %+v", p)
	}
	return nil
}

// KeyMaterial holds the vault-level salt, iv and the key derived from the
// master password. The derived key is never persisted.
type KeyMaterial struct {
	Salt   []byte
	IV     []byte
	Params Params

	key []byte
}

// Generate produces fresh random salt and iv and derives the key from the
// password. Used on vault creation and on key rotation.
func Generate(password []byte) (*KeyMaterial, error) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	iv, err := GenerateRandom(IVSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}
	return Load(password, salt, iv, DefaultParams())
}

// Load rebuilds key material from persisted salt/iv and derives the key.
// Wrong-length salt or iv is rejected, never padded or truncated.
func Load(password, salt, iv []byte, p Params) (*KeyMaterial, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if len(salt) != SaltSize || len(iv) != IVSize {
		return nil, ErrBadKeyMaterial
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	key := argon2.IDKey(password, salt, p.Time, p.MemoryMB*1024, p.Parallelism, KeySize)

	return &KeyMaterial{
		Salt:   salt,
		IV:     iv,
		Params: p,
		key:    key,
	}, nil
}

// ContainerKey derives the encryption subkey for a single container from
// the master key and the container's stored salt.
func (k *KeyMaterial) ContainerKey(salt []byte) ([]byte, error) {
	if len(salt) != ContainerSaltSize {
		return nil, ErrBadKeyMaterial
	}
	return expand(k.key, salt, containerKeyInfo)
}

// MACKey derives the key for the whole-vault HMAC from the master key and
// the vault iv.
func (k *KeyMaterial) MACKey() ([]byte, error) {
	return expand(k.key, k.IV, vaultMACInfo)
}

func expand(key, salt []byte, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, key, salt, []byte(info))
	out := make([]byte, KeySize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("hkdf expand failed: %w", err)
	}
	return out, nil
}

// Destroy clears the derived key from memory.
func (k *KeyMaterial) Destroy() {
	ClearBytes(k.key)
}
