package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/securebox/securebox/internal/crypto"
	"github.com/securebox/securebox/internal/keyring"
)

// Passwd changes the master password and re-encrypts the whole vault
func Passwd(ctx context.Context) {
	s := Settings()
	v, currentPassword := OpenVault(s)
	defer crypto.ClearBytes(currentPassword)
	defer v.Lock()

	newPassword, err := ReadPasswordConfirm()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(newPassword)

	if err := v.ChangeMasterPassword(newPassword); err != nil {
		HandleError(err)
	}

	// Keep the keyring entry in sync if one exists
	if !s.NoKeyring {
		if vaultID, err := v.VaultID(); err == nil && keyring.HasPassword(vaultID) {
			if err := keyring.SavePassword(vaultID, string(newPassword)); err == nil {
				fmt.Println("Keyring updated with new password")
			}
		}
	}

	fmt.Println("✓ Password changed")
	maybeAutoUpload(ctx, s, v)
}
