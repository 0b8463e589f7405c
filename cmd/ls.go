package cmd

import (
	"fmt"

	"github.com/securebox/securebox/internal/crypto"
)

// List shows all containers without printing their data
func List() {
	s := Settings()
	v, password := OpenVault(s)
	defer crypto.ClearBytes(password)
	defer v.Lock()

	containers := v.Containers()
	if len(containers) == 0 {
		fmt.Println("Vault is empty")
		return
	}

	fmt.Printf("%d container(s):\n", len(containers))
	for _, c := range containers {
		fmt.Printf("  [%d] %s (%d bytes)\n", c.ID(), c.Name(), len(c.Data()))
	}
}
