// Package main is the entry point for the opsgate CLI.
package main

import (
	"os"

	"github.com/opsgate/opsgate/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
