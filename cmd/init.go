package cmd

import (
	"fmt"
	"os"

	"github.com/securebox/securebox/internal/crypto"
	"github.com/securebox/securebox/internal/keyring"
	"github.com/securebox/securebox/internal/vault"
)

// Init creates a new vault file
func Init(saveToKeyring bool) {
	s := Settings()
	if err := s.EnsureDataDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	password, err := GetPasswordForInit(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(password)

	v, err := vault.Create(password, s.VaultPath())
	if err != nil {
		HandleError(err)
	}
	defer v.Lock()

	if saveToKeyring && !s.NoKeyring {
		if vaultID, err := v.VaultID(); err == nil {
			if err := keyring.SavePassword(vaultID, string(password)); err == nil {
				fmt.Println("Password saved to keyring")
			}
		}
	}

	fmt.Printf("✓ Initialized vault at %s\n", s.VaultPath())
}
