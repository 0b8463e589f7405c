// Package config resolves runtime settings from SECUREBOX_* environment
// variables plus platform defaults for file locations.
package config

import (
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// Settings are the process-wide knobs every command reads at startup.
// All fields map to SECUREBOX_* environment variables.
type Settings struct {
	DataDir    string `split_words:"true"`
	VaultFile  string `split_words:"true" default:"vault.db"`
	RemoteName string `split_words:"true"`
	AutoUpload bool   `split_words:"true"`
	Password   string // SECUREBOX_PASSWORD, non-interactive unlock
	NoKeyring  bool   `split_words:"true"`
	Verbose    bool
}

// Load processes the environment and fills in platform defaults.
func Load() (Settings, error) {
	var s Settings
	if err := envconfig.Process("securebox", &s); err != nil {
		return s, err
	}

	if s.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			home, herr := os.UserHomeDir()
			if herr != nil {
				return s, err
			}
			base = filepath.Join(home, ".config")
		}
		s.DataDir = filepath.Join(base, "securebox")
	}

	return s, nil
}

// VaultPath returns the full path to the vault file.
func (s Settings) VaultPath() string {
	if filepath.IsAbs(s.VaultFile) {
		return s.VaultFile
	}
	return filepath.Join(s.DataDir, s.VaultFile)
}

// EnsureDataDir creates the data directory if it does not exist.
func (s Settings) EnsureDataDir() error {
	return os.MkdirAll(s.DataDir, 0700)
}
