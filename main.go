package main

import (
	"os"

	"github.com/loghealer/healthmon/cmd"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := cmd.Execute(version, buildDate); err != nil {
		os.Exit(1)
	}
}
