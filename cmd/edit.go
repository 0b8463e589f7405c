package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/securebox/securebox/internal/crypto"
)

// Edit updates a container's name and/or data. Empty flags leave the
// field unchanged; data may also come from stdin.
func Edit(ctx context.Context, id int, name, data string, dataFromStdin bool) {
	s := Settings()
	v, password := OpenVault(s)
	defer crypto.ClearBytes(password)
	defer v.Lock()

	if dataFromStdin {
		var err error
		data, err = readData()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	}

	var namePtr, dataPtr *string
	if name != "" {
		namePtr = &name
	}
	if data != "" || dataFromStdin {
		dataPtr = &data
	}
	if namePtr == nil && dataPtr == nil {
		fmt.Fprintln(os.Stderr, "Nothing to change: provide --name, --data or --stdin")
		os.Exit(1)
	}

	if err := v.UpdateContainer(id, namePtr, dataPtr); err != nil {
		HandleError(err)
	}

	fmt.Printf("✓ Updated container [%d]\n", id)
	maybeAutoUpload(ctx, s, v)
}
