// Package vault implements the unlocked in-memory vault: container
// lifecycle, whole-vault integrity verification, master password change
// and key regeneration with atomic file replacement, and cloud backup
// round-trips through a backup.Gateway.
//
// A Vault is obtained from Create, Open or OpenRecovery and released
// with Lock. Open verifies the whole vault before returning; a wrong
// password and a tampered file are indistinguishable and both fail with
// ErrWrongPassword.
package vault
