package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/lockaudit/internal/apiclient"
)

var registerMacKey string

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a client and obtain its audit server public key and read token",
	Long: `--mac-key must be the base64 encoding of the 32-byte client MAC key;
the client's id is derived from it, so re-registering the same key
recovers the same client id while rotating its audit signing key.`,
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().StringVar(&registerMacKey, "mac-key", "", "base64, 32-byte client MAC key (required)")
}

func runRegister(cmd *cobra.Command, args []string) error {
	if registerMacKey == "" {
		return fmt.Errorf("--mac-key is required")
	}
	macKey, err := decodeBase64Flag(registerMacKey)
	if err != nil {
		return fmt.Errorf("decode --mac-key: %w", err)
	}

	req := struct {
		ClientMacKey []byte `json:"clientMacKey"`
	}{ClientMacKey: macKey}

	var res struct {
		ClientID  string `json:"clientId"`
		ServerPK  string `json:"serverPublicKey"`
		ReadToken string `json:"readToken"`
	}

	c := apiclient.New(addr)
	if err := c.Do("POST", "/api/register", req, &res, nil); err != nil {
		return err
	}

	fmt.Printf("clientId:        %s\n", res.ClientID)
	fmt.Printf("serverPublicKey: %s\n", res.ServerPK)
	fmt.Printf("readToken:       %s\n", res.ReadToken)
	return nil
}
