package cmd

import (
	"context"
	"fmt"

	"github.com/securebox/securebox/internal/crypto"
)

// Remove deletes containers by id
func Remove(ctx context.Context, ids []int) {
	s := Settings()
	v, password := OpenVault(s)
	defer crypto.ClearBytes(password)
	defer v.Lock()

	for _, id := range ids {
		if err := v.RemoveContainer(id); err != nil {
			HandleError(err)
		}
		fmt.Printf("✓ Removed container [%d]\n", id)
	}
	maybeAutoUpload(ctx, s, v)
}
