// Package main provides the entry point for the trezor-gpg-agent daemon.
package main

import (
	"context"
	"os"

	"github.com/Quaternioneer/trezor-agent/internal/cli"
)

func main() {
	ctx := context.Background()
	if err := cli.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
