package storage

import (
	"errors"
	"fmt"
	"time"
)

// Reserved record names in the private bucket. These hold the cloud
// credential and token, encrypted exactly like container records.
const (
	ReservedCredential = "credential"
	ReservedToken      = "token"
)

var (
	ErrNoRecord       = errors.New("record not found")
	ErrNotInitialized = errors.New("vault storage not initialized")
)

// Record is the encrypted-at-rest form of a container. All fields are
// opaque bytes; JSON encodes them as base64 for lossless round-trips.
type Record struct {
	Cipher []byte `json:"cipher"`
	MAC    []byte `json:"mac"`
	Salt   []byte `json:"salt"`
	IV     []byte `json:"iv"`
}

// KDFParams are the persisted Argon2id cost parameters.
type KDFParams struct {
	Time        uint32 `json:"time"`
	MemoryMB    uint32 `json:"memoryMB"`
	Parallelism uint8  `json:"parallelism"`
}

// KeyParams is the unencrypted key block of the vault: everything needed
// to re-derive the master key from the password.
type KeyParams struct {
	Salt []byte
	IV   []byte
	KDF  KDFParams
}

// Snapshot is a complete vault state, used to build a fresh database
// file during password change and key rotation.
type Snapshot struct {
	Key        KeyParams
	MAC        []byte
	Containers map[int]Record
	Reserved   map[string]Record
	VaultID    string
	Created    time.Time
}

func (r Record) validate() error {
	if len(r.Cipher) == 0 || len(r.MAC) == 0 || len(r.Salt) == 0 || len(r.IV) == 0 {
		return fmt.Errorf("record missing required fields")
	}
	return nil
}
