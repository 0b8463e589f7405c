package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/securebox/securebox/internal/vault"
)

// Paths prints the resolved file locations and basic vault metadata.
// Does not require a password.
func Paths() {
	s := Settings()

	fmt.Printf("Data directory: %s\n", s.DataDir)
	fmt.Printf("Vault file:     %s\n", s.VaultPath())

	vaultID, modified, err := vault.Inspect(s.VaultPath())
	switch {
	case errors.Is(err, vault.ErrNotInitialized):
		fmt.Println("Vault:          not initialized")
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	default:
		if vaultID != "" {
			fmt.Printf("Vault ID:       %s\n", vaultID)
		}
		if !modified.IsZero() {
			fmt.Printf("Last modified:  %s\n", modified.Format("2006-01-02 15:04:05"))
		}
	}
}
