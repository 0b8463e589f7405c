// Package storage provides the BBolt database interface for securebox.
//
// Database structure uses three buckets:
//   - config: KDF parameters (salt, iv, argon2 costs), vault MAC,
//     timestamps, vault id (unencrypted)
//   - containers: encrypted container records keyed by 8-byte
//     big-endian id
//   - private: reserved encrypted records (cloud credential and token)
//
// Every mutating method writes the affected record and the refreshed
// vault MAC in a single transaction, so the on-disk state is either the
// old vault or the new one, never a mix.
//
// Key rotation rewrites the whole vault into a fresh database file which
// is then atomically renamed over the original (see WriteSnapshot and
// Replace).
package storage
