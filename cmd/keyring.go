package cmd

import (
	"fmt"
	"os"

	"github.com/securebox/securebox/internal/crypto"
	"github.com/securebox/securebox/internal/keyring"
)

// KeyringSave verifies the password and stores it in the OS keyring
func KeyringSave() {
	s := Settings()

	password, err := ReadPassword("Enter password: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(password)

	// Verify by actually unlocking the vault
	v, err := openWith(s, password)
	if err != nil {
		HandleError(err)
	}
	vaultID, err := v.VaultID()
	v.Lock()
	if err != nil {
		HandleError(err)
	}

	if err := keyring.SavePassword(vaultID, string(password)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save to keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ Password saved to keyring")
}

// KeyringDelete removes the stored password from the OS keyring
func KeyringDelete() {
	s := Settings()

	vaultID := storedVaultID(s)
	if vaultID == "" {
		fmt.Println("No password stored in keyring")
		return
	}

	if err := keyring.DeletePassword(vaultID); err != nil {
		fmt.Println("No password stored in keyring")
		return
	}

	fmt.Println("✓ Password removed from keyring")
}

// KeyringStatus reports whether a password is stored for this vault
func KeyringStatus() {
	s := Settings()

	vaultID := storedVaultID(s)
	if vaultID != "" && keyring.HasPassword(vaultID) {
		fmt.Println("Password is stored in keyring")
		return
	}
	fmt.Println("No password stored in keyring")
}
