package cmd

import (
	"fmt"
	"runtime/debug"
)

// Version is set at build time via -ldflags
var Version = "dev"

// PrintVersion prints the build version
func PrintVersion() {
	version := Version
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
	fmt.Printf("securebox %s\n", version)
}
