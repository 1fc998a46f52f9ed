// Package main provides the entry point for the soudok CLI.
package main

import (
	"os"

	"github.com/soudok/soudok/cmd/soudok/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
