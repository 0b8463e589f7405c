package vault

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/securebox/securebox/internal/crypto"
	"github.com/securebox/securebox/internal/storage"
)

// Container is one named secret record, plaintext while the vault is
// unlocked. Mutations touch memory only; the Vault re-encrypts and
// persists.
type Container struct {
	id   int
	name string
	data string
}

// ID returns the container id. Ids are unique within a vault and never
// reused after deletion during a session.
func (c *Container) ID() int { return c.id }

// Name returns the plaintext label.
func (c *Container) Name() string { return c.name }

// Data returns the plaintext payload.
func (c *Container) Data() string { return c.data }

// SetName updates the label in memory.
func (c *Container) SetName(name string) { c.name = name }

// SetData updates the payload in memory.
func (c *Container) SetData(data string) { c.data = data }

// payload is the canonical plaintext form that gets encrypted. Only the
// id is stored in the clear; name and data live inside the ciphertext.
type payload struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// idAAD binds a record's ciphertext to its clear-text id so records
// cannot be swapped between ids without failing authentication.
func idAAD(id int) []byte {
	aad := make([]byte, 8)
	binary.BigEndian.PutUint64(aad, uint64(id))
	return aad
}

// encryptPayload seals a payload under fresh per-record material: a new
// HKDF salt and a new GCM nonce for every encryption event.
func encryptPayload(km *crypto.KeyMaterial, aad []byte, p payload) (storage.Record, error) {
	var rec storage.Record

	plaintext, err := json.Marshal(p)
	if err != nil {
		return rec, fmt.Errorf("failed to marshal payload: %w", err)
	}

	salt, err := crypto.GenerateRandom(crypto.ContainerSaltSize)
	if err != nil {
		return rec, err
	}
	key, err := km.ContainerKey(salt)
	if err != nil {
		return rec, err
	}
	defer crypto.ClearBytes(key)

	nonce, cipher, tag, err := crypto.Seal(key, plaintext, aad)
	crypto.ClearBytes(plaintext)
	if err != nil {
		return rec, err
	}

	return storage.Record{
		Cipher: cipher,
		MAC:    tag,
		Salt:   salt,
		IV:     nonce,
	}, nil
}

// decryptRecord verifies and opens a persisted record. The tag is checked
// before decryption; a mismatch is reported as an integrity failure for
// the given id. Malformed salt/iv lengths and undecodable plaintext after
// a successful tag check are corruption, not tampering.
func decryptRecord(km *crypto.KeyMaterial, id int, aad []byte, rec storage.Record) (payload, error) {
	var p payload

	key, err := km.ContainerKey(rec.Salt)
	if err != nil {
		if errors.Is(err, crypto.ErrBadKeyMaterial) {
			return p, fmt.Errorf("%w: bad record salt", ErrCorrupt)
		}
		return p, err
	}
	defer crypto.ClearBytes(key)

	plaintext, err := crypto.Open(key, rec.IV, rec.Cipher, rec.MAC, aad)
	if err != nil {
		if errors.Is(err, crypto.ErrInvalidCiphertext) {
			return p, fmt.Errorf("%w: bad record nonce or tag", ErrCorrupt)
		}
		return p, &IntegrityError{ID: id}
	}
	defer crypto.ClearBytes(plaintext)

	if err := json.Unmarshal(plaintext, &p); err != nil {
		return p, fmt.Errorf("%w: undecodable container payload", ErrCorrupt)
	}
	return p, nil
}

// encryptContainer produces the encrypted-at-rest record for a container.
func encryptContainer(km *crypto.KeyMaterial, c *Container) (storage.Record, error) {
	return encryptPayload(km, idAAD(c.id), payload{Name: c.name, Data: c.data})
}

// decryptContainer reconstructs a container from its persisted record.
func decryptContainer(km *crypto.KeyMaterial, id int, rec storage.Record) (*Container, error) {
	p, err := decryptRecord(km, id, idAAD(id), rec)
	if err != nil {
		return nil, err
	}
	return &Container{id: id, name: p.Name, data: p.Data}, nil
}
