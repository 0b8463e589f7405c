package vault

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// render flattens the container set into a stable text form suitable for
// line diffing. Reserved credential records are deliberately excluded.
func (v *Vault) render() string {
	var b strings.Builder
	for _, c := range v.Containers() {
		fmt.Fprintf(&b, "[%d] %s\n", c.ID(), c.Name())
		data := c.Data()
		b.WriteString(data)
		if !strings.HasSuffix(data, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Diff returns a unified diff between this vault's containers and
// another unlocked vault, typically one opened from a downloaded
// backup. Returns the empty string when the contents match.
func Diff(local, other *Vault) string {
	localStr := local.render()
	otherStr := other.render()
	if localStr == otherStr {
		return ""
	}

	dmp := diffmatchpatch.New()

	// Line-mode diff for better output
	a, b, lineArray := dmp.DiffLinesToChars(localStr, otherStr)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	patches := dmp.PatchMake(localStr, diffs)
	if len(patches) == 0 {
		return ""
	}

	var result strings.Builder
	result.WriteString("--- local\n")
	result.WriteString("+++ backup\n")
	result.WriteString(dmp.PatchToText(patches))
	return result.String()
}
