// Package main provides the entry point for the applyrag CLI.
package main

import (
	"os"

	"github.com/applyrag/applyrag/cmd/applyrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
