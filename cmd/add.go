package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/securebox/securebox/internal/crypto"
)

// Add stores a new container. Data comes from the argument, stdin when
// piped, or an interactive prompt.
func Add(ctx context.Context, name, data string) {
	s := Settings()
	v, password := OpenVault(s)
	defer crypto.ClearBytes(password)
	defer v.Lock()

	if data == "" {
		var err error
		data, err = readData()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	}

	c, err := v.AddContainer(name, data)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("✓ Added container [%d] %s\n", c.ID(), c.Name())
	maybeAutoUpload(ctx, s, v)
}

// readData reads container data from stdin, interactively when it is a
// terminal
func readData() (string, error) {
	fi, err := os.Stdin.Stat()
	if err == nil && (fi.Mode()&os.ModeCharDevice) == 0 {
		// Piped input, read everything
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	fmt.Println("Enter data (end with a single '.' on its own line):")
	var b strings.Builder
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "." {
			break
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String(), scanner.Err()
}
