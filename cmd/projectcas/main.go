package main

import (
	_ "embed"
	"os"
	"strings"
)

//go:embed VERSION
var versionFile string

func version() string {
	return strings.TrimSpace(versionFile)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
