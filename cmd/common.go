package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/securebox/securebox/internal/backup"
	"github.com/securebox/securebox/internal/config"
	"github.com/securebox/securebox/internal/crypto"
	"github.com/securebox/securebox/internal/keyring"
	"github.com/securebox/securebox/internal/vault"
)

// Settings loads runtime configuration or exits
func Settings() config.Settings {
	s, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return s
}

// ReadPassword reads a password from the terminal without echoing
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)

	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // New line after password

	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	return password, nil
}

// ReadPasswordConfirm reads a password twice and ensures they match
func ReadPasswordConfirm() ([]byte, error) {
	password1, err := ReadPassword("Enter password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password1)

	password2, err := ReadPassword("Confirm password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password2)

	if !crypto.ConstantTimeCompare(password1, password2) {
		return nil, fmt.Errorf("passwords do not match")
	}

	result := make([]byte, len(password1))
	copy(result, password1)
	return result, nil
}

// passwordFromEnv returns a copy of SECUREBOX_PASSWORD, or nil when unset
func passwordFromEnv(s config.Settings) []byte {
	if s.Password == "" {
		return nil
	}
	result := make([]byte, len(s.Password))
	copy(result, []byte(s.Password))
	return result
}

// GetPassword retrieves the master password: environment variable first,
// then the OS keyring, then an interactive prompt.
// The caller is responsible for calling crypto.ClearBytes on the result.
func GetPassword(s config.Settings, prompt string) ([]byte, error) {
	if password := passwordFromEnv(s); password != nil {
		return password, nil
	}

	if !s.NoKeyring {
		if vaultID := storedVaultID(s); vaultID != "" {
			if pw, err := keyring.GetPassword(vaultID); err == nil {
				return []byte(pw), nil
			}
		}
	}

	return ReadPassword(prompt)
}

// GetPasswordForInit checks the environment first, then prompts with
// confirmation
func GetPasswordForInit(s config.Settings) ([]byte, error) {
	if password := passwordFromEnv(s); password != nil {
		return password, nil
	}
	return ReadPasswordConfirm()
}

// OpenVault unlocks the vault at the configured path. When the unlock
// came from a stale keyring entry, the entry is dropped and the user is
// prompted once.
func OpenVault(s config.Settings) (*vault.Vault, []byte) {
	password, err := GetPassword(s, "Enter password: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	v, err := vault.Open(password, s.VaultPath())
	if errors.Is(err, vault.ErrWrongPassword) && passwordFromEnv(s) == nil && !s.NoKeyring {
		// The keyring entry may be stale. Drop it and ask directly.
		if vaultID := storedVaultID(s); vaultID != "" && keyring.HasPassword(vaultID) {
			keyring.DeletePassword(vaultID)
			crypto.ClearBytes(password)
			password, err = ReadPassword("Enter password: ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			v, err = vault.Open(password, s.VaultPath())
		}
	}
	if err != nil {
		crypto.ClearBytes(password)
		HandleError(err)
	}

	return v, password
}

// openWith unlocks the vault with an already-obtained password
func openWith(s config.Settings, password []byte) (*vault.Vault, error) {
	return vault.Open(password, s.VaultPath())
}

// storedVaultID reads the vault identifier without deriving any keys.
// Returns "" when the vault does not exist or has no identifier yet.
func storedVaultID(s config.Settings) string {
	v, _, err := vault.Inspect(s.VaultPath())
	if err != nil {
		return ""
	}
	return v
}

// Gateway builds the backup transport from the credentials stored in the
// unlocked vault
func Gateway(v *vault.Vault) (backup.Gateway, error) {
	blob, token, err := v.CloudCredentials()
	if err != nil {
		return nil, err
	}
	creds, err := backup.ParseCredentials(blob)
	if err != nil {
		return nil, err
	}
	return backup.NewHTTPGateway(creds, token), nil
}

// maybeAutoUpload uploads the vault after a mutation when
// SECUREBOX_AUTO_UPLOAD is set and credentials are stored. Failures are
// reported as warnings; the local mutation already succeeded.
func maybeAutoUpload(ctx context.Context, s config.Settings, v *vault.Vault) {
	if !s.AutoUpload {
		return
	}
	gw, err := Gateway(v)
	if err != nil {
		if !errors.Is(err, vault.ErrNoCredentials) {
			fmt.Fprintf(os.Stderr, "warning: auto-upload skipped: %s\n", err)
		}
		return
	}
	if err := v.UploadBackup(ctx, gw, s.RemoteName); err != nil {
		fmt.Fprintf(os.Stderr, "warning: auto-upload failed: %s\n", err)
		return
	}
	fmt.Println("✓ Vault uploaded")
}

// HandleError handles common errors consistently
func HandleError(err error) {
	switch {
	case errors.Is(err, vault.ErrNotInitialized):
		fmt.Fprintf(os.Stderr, "Error: vault not initialized\n")
		fmt.Fprintf(os.Stderr, "Run 'securebox init' first\n")
	case errors.Is(err, vault.ErrAlreadyExists):
		fmt.Fprintf(os.Stderr, "Error: vault already exists\n")
		fmt.Fprintf(os.Stderr, "Use 'securebox ls' to see current state\n")
	case errors.Is(err, vault.ErrWrongPassword):
		fmt.Fprintf(os.Stderr, "Error: wrong password or modified vault\n")
		fmt.Fprintf(os.Stderr, "Use 'securebox verify --recover' to inspect a damaged vault\n")
	case errors.Is(err, vault.ErrNotFound):
		fmt.Fprintf(os.Stderr, "Error: no such container\n")
	case errors.Is(err, vault.ErrNoCredentials):
		fmt.Fprintf(os.Stderr, "Error: no cloud credentials stored\n")
		fmt.Fprintf(os.Stderr, "Use 'securebox creds' to sign in first\n")
	case errors.Is(err, backup.ErrRemoteNotFound):
		fmt.Fprintf(os.Stderr, "Error: no backup found on the remote\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}
