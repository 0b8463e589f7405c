package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/securebox/securebox/internal/crypto"
	"github.com/securebox/securebox/internal/vault"
)

// Diff compares the local vault contents against the remote backup
func Diff(ctx context.Context, remoteName string) {
	s := Settings()
	v, password := OpenVault(s)
	defer crypto.ClearBytes(password)
	defer v.Lock()

	gw, err := Gateway(v)
	if err != nil {
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
		HandleError(err)
	}
	defer os.Remove(candidate)

	bv, err := vault.Open(password, candidate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: downloaded backup failed verification: %s\n", err)
		os.Exit(1)
	}
	defer bv.Lock()

	d := vault.Diff(v, bv)
	if d == "" {
		fmt.Println("Local vault and backup match")
		return
	}
	fmt.Print(d)
}
