// Package crypto provides the key material and authenticated encryption
// used by securebox.
//
// Key derivation uses Argon2id with:
//   - 32-byte random salt (stored unencrypted alongside the ciphertext)
//   - time=3, memory=64MiB, parallelism=1, 32-byte key (stored params)
//
// Each container is encrypted under its own subkey:
//   - 16-byte random salt per encryption event
//   - subkey = HKDF-SHA256(master key, salt, "securebox/container/v1")
//   - AES-256-GCM with a fresh 12-byte nonce, container id as AAD
//
// The GCM tag is kept separate from the ciphertext so records can store
// {cipher, mac, salt, iv} as independent fields. Open verifies the tag
// before any plaintext is produced.
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
//   - Call KeyMaterial.Destroy() when the session ends
package crypto
