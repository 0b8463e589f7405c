package vault

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/securebox/securebox/internal/storage"
)

var testPassword = []byte("correct horse battery staple")

func newTestVault(t *testing.T) (*Vault, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.db")
	v, err := Create(testPassword, path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return v, path
}

func reopen(t *testing.T, path string, password []byte) *Vault {
	t.Helper()
	v, err := Open(password, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return v
}

// tamperContainer flips a byte in one field of a persisted record while
// keeping the stored whole-vault MAC, simulating offline modification.
func tamperContainer(t *testing.T, path string, id int, field string) {
	t.Helper()
	st, err := storage.Open(path)
	if err != nil {
		t.Fatalf("storage.Open failed: %v", err)
	}
	defer st.Close()

	rec, err := st.GetContainer(id)
	if err != nil {
		t.Fatalf("GetContainer failed: %v", err)
	}
	mac, err := st.GetVaultMAC()
	if err != nil {
		t.Fatalf("GetVaultMAC failed: %v", err)
	}

	switch field {
	case "cipher":
		rec.Cipher[0] ^= 0xFF
	case "mac":
		rec.MAC[0] ^= 0xFF
	case "salt":
		rec.Salt[0] ^= 0xFF
	case "iv":
		rec.IV[0] ^= 0xFF
	default:
		t.Fatalf("unknown field %q", field)
	}

	if err := st.PutContainer(id, rec, mac); err != nil {
		t.Fatalf("PutContainer failed: %v", err)
	}
}

func TestCreateOpenRoundTrip(t *testing.T) {
	v, path := newTestVault(t)

	c, err := v.AddContainer("email", "user@example.com\nhunter2")
	if err != nil {
		t.Fatalf("AddContainer failed: %v", err)
	}
	if c.ID() != 1 {
		t.Errorf("first container id = %d, want 1", c.ID())
	}
	if _, err := v.AddContainer("wifi", "ssid=home pass=secret"); err != nil {
		t.Fatalf("AddContainer failed: %v", err)
	}
	if err := v.Lock(); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	v2 := reopen(t, path, testPassword)
	defer v2.Lock()

	got, err := v2.GetContainer(1)
	if err != nil {
		t.Fatalf("GetContainer failed: %v", err)
	}
	if got.Name() != "email" || got.Data() != "user@example.com\nhunter2" {
		t.Errorf("container 1 = %q/%q, want email/original data", got.Name(), got.Data())
	}
	if len(v2.Containers()) != 2 {
		t.Errorf("got %d containers, want 2", len(v2.Containers()))
	}
}

func TestCreateRefusesExisting(t *testing.T) {
	v, path := newTestVault(t)
	v.Lock()

	if _, err := Create(testPassword, path); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("Create on existing vault = %v, want ErrAlreadyExists", err)
	}
}

func TestOpenMissingVault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.db")
	if _, err := Open(testPassword, path); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Open missing vault = %v, want ErrNotInitialized", err)
	}
}

func TestOpenWrongPassword(t *testing.T) {
	v, path := newTestVault(t)
	if _, err := v.AddContainer("a", "1"); err != nil {
		t.Fatal(err)
	}
	v.Lock()

	if _, err := Open([]byte("not the password"), path); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Open with wrong password = %v, want ErrWrongPassword", err)
	}
}

func TestEmptyVaultRejectsWrongPassword(t *testing.T) {
	v, path := newTestVault(t)
	v.Lock()

	if _, err := Open([]byte("not the password"), path); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("empty vault opened with wrong password: err = %v", err)
	}

	v2 := reopen(t, path, testPassword)
	v2.Lock()
}

func TestOpenDetectsTamper(t *testing.T) {
	for _, field := range []string{"cipher", "mac", "salt", "iv"} {
		t.Run(field, func(t *testing.T) {
			v, path := newTestVault(t)
			if _, err := v.AddContainer("a", "payload"); err != nil {
				t.Fatal(err)
			}
			v.Lock()

			tamperContainer(t, path, 1, field)

			if _, err := Open(testPassword, path); !errors.Is(err, ErrWrongPassword) {
				t.Errorf("Open tampered vault = %v, want ErrWrongPassword", err)
			}
		})
	}
}

func TestOpenRecoveryReportsTamper(t *testing.T) {
	v, path := newTestVault(t)
	if _, err := v.AddContainer("good", "keep me"); err != nil {
		t.Fatal(err)
	}
	if _, err := v.AddContainer("bad", "lose me"); err != nil {
		t.Fatal(err)
	}
	v.Lock()

	tamperContainer(t, path, 2, "cipher")

	rv, report, err := OpenRecovery(testPassword, path)
	if err != nil {
		t.Fatalf("OpenRecovery failed: %v", err)
	}
	defer rv.Lock()

	if report.OK() {
		t.Error("report.OK() = true for tampered vault")
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0] != 2 {
		t.Errorf("report.Failed() = %v, want [2]", failed)
	}

	c, err := rv.GetContainer(1)
	if err != nil || c.Data() != "keep me" {
		t.Errorf("surviving container 1 = %v/%v, want readable", c, err)
	}
	if _, err := rv.GetContainer(2); !errors.Is(err, ErrNotFound) {
		t.Errorf("tampered container 2 returned: err = %v", err)
	}
}

func TestOpenRecoveryWrongPassword(t *testing.T) {
	v, path := newTestVault(t)
	if _, err := v.AddContainer("a", "1"); err != nil {
		t.Fatal(err)
	}
	v.Lock()

	if _, _, err := OpenRecovery([]byte("wrong"), path); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("OpenRecovery with wrong password = %v, want ErrWrongPassword", err)
	}
}

func TestIDAllocationNeverReuses(t *testing.T) {
	v, _ := newTestVault(t)
	defer v.Lock()

	for _, name := range []string{"one", "two"} {
		if _, err := v.AddContainer(name, ""); err != nil {
			t.Fatal(err)
		}
	}
	if err := v.RemoveContainer(2); err != nil {
		t.Fatalf("RemoveContainer failed: %v", err)
	}
	c3, err := v.AddContainer("three", "")
	if err != nil {
		t.Fatal(err)
	}
	c4, err := v.AddContainer("four", "")
	if err != nil {
		t.Fatal(err)
	}

	if c3.ID() != 3 || c4.ID() != 4 {
		t.Errorf("ids after removal = %d, %d, want 3, 4", c3.ID(), c4.ID())
	}

	var ids []int
	for _, c := range v.Containers() {
		ids = append(ids, c.ID())
	}
	want := []int{1, 3, 4}
	if len(ids) != len(want) {
		t.Fatalf("containers = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("containers = %v, want %v", ids, want)
			break
		}
	}
}

func TestDefaultContainerName(t *testing.T) {
	v, _ := newTestVault(t)
	defer v.Lock()

	c, err := v.AddContainer("", "data")
	if err != nil {
		t.Fatal(err)
	}
	if c.Name() != "Container 1" {
		t.Errorf("default name = %q, want %q", c.Name(), "Container 1")
	}
}

func TestUpdateContainer(t *testing.T) {
	v, path := newTestVault(t)
	if _, err := v.AddContainer("old", "before"); err != nil {
		t.Fatal(err)
	}

	name := "new"
	if err := v.UpdateContainer(1, &name, nil); err != nil {
		t.Fatalf("UpdateContainer failed: %v", err)
	}
	data := "after"
	if err := v.UpdateContainer(1, nil, &data); err != nil {
		t.Fatalf("UpdateContainer failed: %v", err)
	}
	if err := v.UpdateContainer(99, &name, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateContainer missing id = %v, want ErrNotFound", err)
	}
	v.Lock()

	v2 := reopen(t, path, testPassword)
	defer v2.Lock()
	c, err := v2.GetContainer(1)
	if err != nil {
		t.Fatal(err)
	}
	if c.Name() != "new" || c.Data() != "after" {
		t.Errorf("after update, container = %q/%q", c.Name(), c.Data())
	}
}

func TestUpdateRefreshesRecordMaterial(t *testing.T) {
	v, _ := newTestVault(t)
	if _, err := v.AddContainer("a", "same data"); err != nil {
		t.Fatal(err)
	}
	before := v.records[1]

	data := "same data"
	if err := v.UpdateContainer(1, nil, &data); err != nil {
		t.Fatal(err)
	}
	after := v.records[1]
	v.Lock()

	if bytes.Equal(before.Salt, after.Salt) {
		t.Error("record salt unchanged after update")
	}
	if bytes.Equal(before.IV, after.IV) {
		t.Error("record iv unchanged after update")
	}
	if bytes.Equal(before.Cipher, after.Cipher) {
		t.Error("ciphertext unchanged after re-encrypting identical data")
	}
}

func TestRemoveContainerPersists(t *testing.T) {
	v, path := newTestVault(t)
	if _, err := v.AddContainer("a", "1"); err != nil {
		t.Fatal(err)
	}
	if _, err := v.AddContainer("b", "2"); err != nil {
		t.Fatal(err)
	}
	if err := v.RemoveContainer(1); err != nil {
		t.Fatal(err)
	}
	if err := v.RemoveContainer(1); !errors.Is(err, ErrNotFound) {
		t.Errorf("double remove = %v, want ErrNotFound", err)
	}
	v.Lock()

	v2 := reopen(t, path, testPassword)
	defer v2.Lock()
	if _, err := v2.GetContainer(1); !errors.Is(err, ErrNotFound) {
		t.Errorf("removed container survived reopen: err = %v", err)
	}
	if _, err := v2.GetContainer(2); err != nil {
		t.Errorf("remaining container lost: %v", err)
	}
}

func TestChangeMasterPassword(t *testing.T) {
	v, path := newTestVault(t)
	if _, err := v.AddContainer("a", "secret data"); err != nil {
		t.Fatal(err)
	}

	newPassword := []byte("a different passphrase")
	if err := v.ChangeMasterPassword(newPassword); err != nil {
		t.Fatalf("ChangeMasterPassword failed: %v", err)
	}

	// The session stays usable after the change.
	if _, err := v.AddContainer("b", "post-change"); err != nil {
		t.Fatalf("AddContainer after password change failed: %v", err)
	}
	v.Lock()

	if _, err := Open(testPassword, path); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("old password still opens vault: err = %v", err)
	}

	v2 := reopen(t, path, newPassword)
	defer v2.Lock()
	c, err := v2.GetContainer(1)
	if err != nil || c.Data() != "secret data" {
		t.Errorf("container after password change = %v/%v", c, err)
	}
	if _, err := v2.GetContainer(2); err != nil {
		t.Errorf("container added after change lost: %v", err)
	}
}

func TestRegenerateKeys(t *testing.T) {
	v, path := newTestVault(t)
	if _, err := v.AddContainer("a", "stable plaintext"); err != nil {
		t.Fatal(err)
	}
	before := v.records[1]

	if err := v.RegenerateKeys(); err != nil {
		t.Fatalf("RegenerateKeys failed: %v", err)
	}
	after := v.records[1]
	v.Lock()

	if bytes.Equal(before.Cipher, after.Cipher) {
		t.Error("ciphertext unchanged after key regeneration")
	}
	if bytes.Equal(before.Salt, after.Salt) {
		t.Error("record salt unchanged after key regeneration")
	}

	// Same password still opens the rotated vault.
	v2 := reopen(t, path, testPassword)
	defer v2.Lock()
	c, err := v2.GetContainer(1)
	if err != nil || c.Data() != "stable plaintext" {
		t.Errorf("container after rotation = %v/%v", c, err)
	}
}

func TestRotationLeavesNoStagingFile(t *testing.T) {
	v, path := newTestVault(t)
	if _, err := v.AddContainer("a", "1"); err != nil {
		t.Fatal(err)
	}
	if err := v.RegenerateKeys(); err != nil {
		t.Fatal(err)
	}
	v.Lock()

	for _, suffix := range []string{".rewrite", ".backup"} {
		if _, err := os.Stat(path + suffix); err == nil {
			t.Errorf("staging file %s%s left behind", path, suffix)
		}
	}
}

func TestCloudCredentials(t *testing.T) {
	v, path := newTestVault(t)

	if _, _, err := v.CloudCredentials(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("CloudCredentials on fresh vault = %v, want ErrNoCredentials", err)
	}

	if err := v.SetCloudCredentials(`{"endpoint":"https://backup.example.com","account":"me"}`, "tok-123"); err != nil {
		t.Fatalf("SetCloudCredentials failed: %v", err)
	}
	v.Lock()

	v2 := reopen(t, path, testPassword)
	creds, token, err := v2.CloudCredentials()
	if err != nil {
		t.Fatalf("CloudCredentials failed: %v", err)
	}
	if !strings.Contains(creds, "backup.example.com") || token != "tok-123" {
		t.Errorf("credentials round-trip = %q/%q", creds, token)
	}

	// Credentials survive key rotation like any other record.
	if err := v2.RegenerateKeys(); err != nil {
		t.Fatal(err)
	}
	creds2, token2, err := v2.CloudCredentials()
	if err != nil || creds2 != creds || token2 != token {
		t.Errorf("credentials after rotation = %q/%q/%v", creds2, token2, err)
	}

	if err := v2.ClearCloudCredentials(); err != nil {
		t.Fatalf("ClearCloudCredentials failed: %v", err)
	}
	v2.Lock()

	v3 := reopen(t, path, testPassword)
	defer v3.Lock()
	if _, _, err := v3.CloudCredentials(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("credentials survived signout: err = %v", err)
	}
}

func TestVerifyIntegrity(t *testing.T) {
	v, path := newTestVault(t)
	if _, err := v.AddContainer("a", "1"); err != nil {
		t.Fatal(err)
	}

	report, err := v.VerifyIntegrity()
	if err != nil {
		t.Fatalf("VerifyIntegrity failed: %v", err)
	}
	if !report.OK() {
		t.Errorf("fresh vault failed verification: %+v", report)
	}
	v.Lock()

	tamperContainer(t, path, 1, "cipher")

	// The aggregate MAC still matches because the per-record tag was
	// kept, so recovery open is the only way back in.
	rv, _, err := OpenRecovery(testPassword, path)
	if err == nil {
		report, err := rv.VerifyIntegrity()
		if err != nil {
			t.Fatalf("VerifyIntegrity failed: %v", err)
		}
		if report.OK() {
			t.Error("tampered vault passed verification")
		}
		rv.Lock()
	} else if !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("OpenRecovery failed: %v", err)
	}
}

func TestVaultIDStable(t *testing.T) {
	v, path := newTestVault(t)
	id1, err := v.VaultID()
	if err != nil || id1 == "" {
		t.Fatalf("VaultID = %q, %v", id1, err)
	}
	if err := v.RegenerateKeys(); err != nil {
		t.Fatal(err)
	}
	id2, err := v.VaultID()
	if err != nil || id2 != id1 {
		t.Errorf("VaultID after rotation = %q, want %q", id2, id1)
	}
	v.Lock()

	v2 := reopen(t, path, testPassword)
	defer v2.Lock()
	id3, err := v2.VaultID()
	if err != nil || id3 != id1 {
		t.Errorf("VaultID after reopen = %q, want %q", id3, id1)
	}
}

func TestEndToEndScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")
	p1 := []byte("P1")

	v, err := Create(p1, path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	bank, err := v.AddContainer("bank", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.AddContainer("other", "secret2"); err != nil {
		t.Fatal(err)
	}
	v.Lock()

	v2 := reopen(t, path, p1)
	c, err := v2.GetContainer(bank.ID())
	if err != nil {
		t.Fatal(err)
	}
	if c.Name() != "bank" || c.Data() != "secret1" {
		t.Errorf("container = %q/%q, want bank/secret1", c.Name(), c.Data())
	}
	v2.Lock()

	if _, err := Open([]byte("WRONG"), path); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Open with WRONG = %v, want ErrWrongPassword", err)
	}

	tamperContainer(t, path, bank.ID(), "mac")

	rv, report, err := OpenRecovery(p1, path)
	if err != nil {
		t.Fatalf("OpenRecovery failed: %v", err)
	}
	defer rv.Lock()

	failed := report.Failed()
	if len(failed) != 1 || failed[0] != bank.ID() {
		t.Errorf("report.Failed() = %v, want [%d]", failed, bank.ID())
	}
	for _, check := range report.Containers {
		if check.ID != bank.ID() && !check.OK {
			t.Errorf("untouched container %d reported as failed", check.ID)
		}
	}
}

func TestDiff(t *testing.T) {
	dir := t.TempDir()

	a, err := Create(testPassword, filepath.Join(dir, "a.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Lock()
	b, err := Create(testPassword, filepath.Join(dir, "b.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Lock()

	if _, err := a.AddContainer("shared", "same"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddContainer("shared", "same"); err != nil {
		t.Fatal(err)
	}

	if d := Diff(a, b); d != "" {
		t.Errorf("identical vaults produced diff:\n%s", d)
	}

	if _, err := b.AddContainer("extra", "only here"); err != nil {
		t.Fatal(err)
	}
	d := Diff(a, b)
	if d == "" {
		t.Fatal("differing vaults produced empty diff")
	}
	if !strings.HasPrefix(d, "--- local\n+++ backup\n") {
		t.Errorf("diff missing headers:\n%s", d)
	}
}
