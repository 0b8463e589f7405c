// Package keyring stores the master password in the OS keyring, keyed
// by the vault's stable identifier so renamed or moved vault files keep
// their entry.
package keyring

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const serviceName = "securebox"

// ErrNotFound is returned when no password is stored for the vault.
var ErrNotFound = errors.New("no password stored in keyring")

// SavePassword stores the master password in the OS keyring
func SavePassword(vaultID string, password string) error {
	return keyring.Set(serviceName, vaultID, password)
}

// GetPassword retrieves the master password from the OS keyring
func GetPassword(vaultID string) (string, error) {
	pw, err := keyring.Get(serviceName, vaultID)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return pw, err
}

// DeletePassword removes the master password from the OS keyring
func DeletePassword(vaultID string) error {
	err := keyring.Delete(serviceName, vaultID)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// HasPassword checks if a password is stored for the vault
func HasPassword(vaultID string) bool {
	_, err := keyring.Get(serviceName, vaultID)
	return err == nil
}
