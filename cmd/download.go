package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/securebox/securebox/internal/crypto"
	"github.com/securebox/securebox/internal/vault"
)

// Download fetches the remote backup, verifies it opens with the master
// password and replaces the local vault. With keep set, the verified
// file is left next to the vault instead of replacing it.
func Download(ctx context.Context, remoteName string, keep bool) {
	s := Settings()
	v, password := OpenVault(s)
	defer crypto.ClearBytes(password)

	gw, err := Gateway(v)
	if err != nil {
		v.Lock()
		HandleError(err)
	}

	if remoteName == "" {
		remoteName = s.RemoteName
	}
	if remoteName == "" {
		remoteName = v.RemoteName()
	}

	candidate, err := v.DownloadBackup(ctx, gw, remoteName)
	if err != nil {
		v.Lock()
		HandleError(err)
	}

	// The downloaded file is untrusted until it opens and verifies
	// under the master password.
	bv, err := vault.Open(password, candidate)
	if err != nil {
		os.Remove(candidate)
		v.Lock()
		fmt.Fprintf(os.Stderr, "Error: downloaded backup failed verification: %s\n", err)
		os.Exit(1)
	}
	bv.Lock()

	if keep {
		v.Lock()
		fmt.Printf("✓ Backup verified, kept at %s\n", candidate)
		return
	}

	v.Lock()
	local := s.VaultPath()
	previous := local + ".backup"
	if err := os.Rename(local, previous); err != nil {
		os.Remove(candidate)
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if err := os.Rename(candidate, local); err != nil {
		os.Rename(previous, local) // rollback
		os.Remove(candidate)
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	os.Remove(previous)

	fmt.Printf("✓ Restored vault from %s\n", remoteName)
}
