package cmd

import (
	"context"
	"fmt"

	"github.com/securebox/securebox/internal/crypto"
)

// Rotate issues fresh key material under the same password and
// re-encrypts every container
func Rotate(ctx context.Context) {
	s := Settings()
	v, password := OpenVault(s)
	defer crypto.ClearBytes(password)
	defer v.Lock()

	if err := v.RegenerateKeys(); err != nil {
		HandleError(err)
	}

	fmt.Println("✓ Keys regenerated, vault re-encrypted")
	maybeAutoUpload(ctx, s, v)
}
