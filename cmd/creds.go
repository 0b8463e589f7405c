package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/securebox/securebox/internal/backup"
	"github.com/securebox/securebox/internal/crypto"
	"github.com/securebox/securebox/internal/keyring"
)

// Creds stores cloud credentials and an access token, encrypted inside
// the vault like any other record
func Creds(endpoint, account, token string) {
	s := Settings()
	v, password := OpenVault(s)
	defer crypto.ClearBytes(password)
	defer v.Lock()

	reader := bufio.NewReader(os.Stdin)
	var err error
	if endpoint == "" {
		endpoint, err = promptLine(reader, "Endpoint URL: ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	}
	if account == "" {
		account, err = promptLine(reader, "Account: ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	}
	if token == "" {
		tokenBytes, err := ReadPassword("Access token: ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
		token = string(tokenBytes)
		crypto.ClearBytes(tokenBytes)
	}

	blob, err := backup.Credentials{Endpoint: endpoint, Account: account}.Encode()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if err := v.SetCloudCredentials(blob, token); err != nil {
		HandleError(err)
	}

	fmt.Println("✓ Cloud credentials stored")
}

// SignOut removes the stored cloud credentials and token, and forgets
// the keyring entry for this vault
func SignOut() {
	s := Settings()
	v, password := OpenVault(s)
	defer crypto.ClearBytes(password)
	defer v.Lock()

	if err := v.ClearCloudCredentials(); err != nil {
		HandleError(err)
	}

	if !s.NoKeyring {
		if vaultID, err := v.VaultID(); err == nil && keyring.HasPassword(vaultID) {
			keyring.DeletePassword(vaultID)
			fmt.Println("Keyring entry removed")
		}
	}

	fmt.Println("✓ Signed out, credentials removed from vault")
}

func promptLine(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
