package cmd

import (
	"context"
	"fmt"

	"github.com/securebox/securebox/internal/crypto"
)

// Upload sends the encrypted vault file to the configured cloud remote
func Upload(ctx context.Context, remoteName string) {
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

	if err := v.UploadBackup(ctx, gw, remoteName); err != nil {
		HandleError(err)
	}

	fmt.Printf("✓ Uploaded vault as %s\n", remoteName)
}
