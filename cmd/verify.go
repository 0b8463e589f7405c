package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/securebox/securebox/internal/crypto"
	"github.com/securebox/securebox/internal/vault"
)

// Verify checks every record in the vault against the derived key and
// reports per-container results. With recover set, a partially damaged
// vault is opened anyway and only the verification report is shown.
func Verify(recover bool) {
	s := Settings()

	if recover {
		password, err := GetPassword(s, "Enter password: ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
		defer crypto.ClearBytes(password)

		v, report, err := vault.OpenRecovery(password, s.VaultPath())
		if err != nil {
			HandleError(err)
		}
		defer v.Lock()

		printReport(report)
		if !report.OK() {
			os.Exit(1)
		}
		return
	}

	v, password := OpenVault(s)
	defer crypto.ClearBytes(password)
	defer v.Lock()

	report, err := v.VerifyIntegrity()
	if err != nil {
		HandleError(err)
	}

	printReport(report)
	if !report.OK() {
		os.Exit(1)
	}
}

func printReport(report *vault.IntegrityReport) {
	for _, check := range report.Containers {
		mark := "✓"
		if !check.OK {
			mark = "✗"
		}
		fmt.Printf("  %s container [%d]\n", mark, check.ID)
	}

	names := make([]string, 0, len(report.Reserved))
	for name := range report.Reserved {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		mark := "✓"
		if !report.Reserved[name] {
			mark = "✗"
		}
		fmt.Printf("  %s %s record\n", mark, name)
	}

	if report.MACOK {
		fmt.Println("  ✓ vault seal")
	} else {
		fmt.Println("  ✗ vault seal")
	}

	if report.OK() {
		fmt.Println("Vault verified")
	} else {
		fmt.Printf("Verification failed for %d container(s)\n", len(report.Failed()))
	}
}
