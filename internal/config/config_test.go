package config

import (
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SECUREBOX_DATA_DIR", "")
	t.Setenv("SECUREBOX_VAULT_FILE", "")

	s, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.DataDir == "" {
		t.Error("DataDir not defaulted")
	}
	if s.VaultFile != "vault.db" {
		t.Errorf("VaultFile = %q, want vault.db", s.VaultFile)
	}
}

func TestVaultPath(t *testing.T) {
	t.Setenv("SECUREBOX_DATA_DIR", "/tmp/boxes")
	t.Setenv("SECUREBOX_VAULT_FILE", "work.db")

	s, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if got := s.VaultPath(); got != filepath.Join("/tmp/boxes", "work.db") {
		t.Errorf("VaultPath = %q", got)
	}

	s.VaultFile = "/elsewhere/abs.db"
	if got := s.VaultPath(); got != "/elsewhere/abs.db" {
		t.Errorf("absolute VaultPath = %q", got)
	}
}

func TestPasswordFromEnvironment(t *testing.T) {
	t.Setenv("SECUREBOX_PASSWORD", "hunter2")

	s, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.Password != "hunter2" {
		t.Errorf("Password = %q, want hunter2", s.Password)
	}
}
