package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/lockaudit/internal/apiclient"
)

var (
	signClientID     string
	signEnvelopeFile string
	signClientMac    string
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Request a co-signed stamp for an already-HMAC'd envelope",
	Long: `Mainly useful for exercising the audit server directly; in normal
operation the client device calls /api/sign itself before forwarding the
envelope on to the lock server.`,
	RunE: runSign,
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringVar(&signClientID, "client-id", "", "registered client id (required)")
	signCmd.Flags().StringVar(&signEnvelopeFile, "envelope", "", "path to the raw sealed envelope bytes (required)")
	signCmd.Flags().StringVar(&signClientMac, "mac", "", "base64 HMAC-SHA256 over the envelope bytes, under the client MAC key (required)")
}

func runSign(cmd *cobra.Command, args []string) error {
	if signClientID == "" || signEnvelopeFile == "" || signClientMac == "" {
		return fmt.Errorf("--client-id, --envelope, and --mac are required")
	}
	envelope, err := os.ReadFile(signEnvelopeFile)
	if err != nil {
		return fmt.Errorf("read envelope file: %w", err)
	}
	mac, err := decodeBase64Flag(signClientMac)
	if err != nil {
		return fmt.Errorf("decode --mac: %w", err)
	}

	req := struct {
		ClientID  string `json:"clientId"`
		Envelope  []byte `json:"envelope"`
		ClientMac []byte `json:"clientMac"`
	}{ClientID: signClientID, Envelope: envelope, ClientMac: mac}

	c := apiclient.New(addr)
	body, err := c.RawBody("POST", "/api/sign", req, nil)
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}
