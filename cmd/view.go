package cmd

import (
	"fmt"
	"strings"

	"github.com/securebox/securebox/internal/crypto"
)

// View prints a container's decrypted data to stdout
func View(id int) {
	s := Settings()
	v, password := OpenVault(s)
	defer crypto.ClearBytes(password)
	defer v.Lock()

	c, err := v.GetContainer(id)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("[%d] %s\n", c.ID(), c.Name())
	data := c.Data()
	fmt.Print(data)
	if !strings.HasSuffix(data, "\n") {
		fmt.Println()
	}
}
