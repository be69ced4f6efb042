package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var addr string

var rootCmd = &cobra.Command{
	Use:   "auditctl",
	Short: "auditctl - operate the audit co-signer over its HTTP API",
	Long: `auditctl drives the audit co-signer's HTTP API: registering a
client, requesting co-signed stamps, and reading back a client's
append-only log.

It talks to a running auditserver; it does not touch the audit device
registry directly.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "http://localhost:8081", "audit server base URL")

	// Subcommands are registered in their respective files:
	// - register.go: registerCmd
	// - sign.go: signCmd
	// - logs.go: logsCmd
}
