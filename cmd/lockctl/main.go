package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var addr string

var rootCmd = &cobra.Command{
	Use:   "lockctl",
	Short: "lockctl - operate the lock controller over its HTTP API",
	Long: `lockctl drives the lock controller's HTTP API: listing entities,
running the device pairing flows, and kicking off unlock requests.

It talks to a running lockserver; it does not touch the device registry
directly.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "http://localhost:8080", "lock server base URL")

	// Subcommands are registered in their respective files:
	// - keygen.go: keygenCmd
	// - entity.go: entityCmd
	// - pair.go: pairCmd (initial, delegated)
	// - unlock.go: unlockCmd
}
