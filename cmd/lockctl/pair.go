package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/lockaudit/internal/apiclient"
	"github.com/sage-x-project/lockaudit/lock"
)

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Drive device pairing against a lock server",
}

var pairChallengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Request a pairing challenge",
	RunE:  runPairChallenge,
}

var (
	pairInitialStartOut string
)

var pairInitialStartCmd = &cobra.Command{
	Use:   "initial-start",
	Short: "Start initial pairing, saving the QR-coded secret to a PNG",
	RunE:  runPairInitialStart,
}

var (
	pairInitialFinishPayload string
	pairInitialFinishMac     string
)

var pairInitialFinishCmd = &cobra.Command{
	Use:   "initial-finish",
	Short: "Submit a finish payload and MAC to complete initial pairing",
	Long: `--payload must be the path of a file holding the canonical JSON bytes of
a lock.PairFinishPayload and --mac the base64 HMAC-SHA256 of those bytes under the secret rendered
into the initial-start QR code.`,
	RunE: runPairInitialFinish,
}

var (
	pairDelegatedCID string
)

var pairDelegatedUploadCmd = &cobra.Command{
	Use:   "delegated-upload --cid <id> <finish-payload-file>",
	Short: "Upload an enrollee's finish payload for a delegator to approve",
	Args:  cobra.ExactArgs(1),
	RunE:  runPairDelegatedUpload,
}

var pairDelegatedGetCmd = &cobra.Command{
	Use:   "delegated-get --cid <id>",
	Short: "Fetch the finish payload waiting for delegator approval",
	RunE:  runPairDelegatedGet,
}

var pairDelegatedFinishCmd = &cobra.Command{
	Use:   "delegated-finish --cid <id> <signed-envelope-file>",
	Short: "Submit a delegator-signed envelope completing delegated pairing",
	Args:  cobra.ExactArgs(1),
	RunE:  runPairDelegatedFinish,
}

func init() {
	rootCmd.AddCommand(pairCmd)
	pairCmd.AddCommand(pairChallengeCmd, pairInitialStartCmd, pairInitialFinishCmd,
		pairDelegatedUploadCmd, pairDelegatedGetCmd, pairDelegatedFinishCmd)

	pairInitialStartCmd.Flags().StringVarP(&pairInitialStartOut, "out", "o", "pairing.png", "output PNG path")

	pairInitialFinishCmd.Flags().StringVar(&pairInitialFinishPayload, "payload", "", "path to a lock.PairFinishPayload JSON file (required)")
	pairInitialFinishCmd.Flags().StringVar(&pairInitialFinishMac, "mac", "", "base64 HMAC-SHA256 over the payload bytes (required)")

	for _, c := range []*cobra.Command{pairDelegatedUploadCmd, pairDelegatedGetCmd, pairDelegatedFinishCmd} {
		c.Flags().StringVar(&pairDelegatedCID, "cid", "", "pairing challenge id (required)")
	}
}

func runPairChallenge(cmd *cobra.Command, args []string) error {
	c := apiclient.New(addr)
	var res lock.PairingChallengeResponse
	if err := c.Do("POST", "/api/pair/get_challenge", nil, &res, nil); err != nil {
		return err
	}
	fmt.Printf("id:        %s\n", res.ID)
	fmt.Printf("timestamp: %d\n", res.Timestamp)
	fmt.Printf("isInitial: %t\n", res.IsInitial)
	return nil
}

func runPairInitialStart(cmd *cobra.Command, args []string) error {
	c := apiclient.New(addr)
	png, err := c.RawBody("POST", "/api/pair/initial/start", nil, nil)
	if err != nil {
		return err
	}
	if err := os.WriteFile(pairInitialStartOut, png, 0644); err != nil {
		return fmt.Errorf("write qr png: %w", err)
	}
	fmt.Printf("QR code written to: %s\n", pairInitialStartOut)
	return nil
}

func runPairInitialFinish(cmd *cobra.Command, args []string) error {
	if pairInitialFinishPayload == "" || pairInitialFinishMac == "" {
		return fmt.Errorf("--payload and --mac are required")
	}
	payload, err := os.ReadFile(pairInitialFinishPayload)
	if err != nil {
		return fmt.Errorf("read payload file: %w", err)
	}
	mac, err := decodeBase64Flag(pairInitialFinishMac)
	if err != nil {
		return fmt.Errorf("decode --mac: %w", err)
	}

	req := struct {
		FinishPayload []byte `json:"finishPayload"`
		Mac           []byte `json:"mac"`
	}{FinishPayload: payload, Mac: mac}

	c := apiclient.New(addr)
	if err := c.Do("POST", "/api/pair/initial/finish", req, nil, nil); err != nil {
		return err
	}
	fmt.Println("initial pairing complete")
	return nil
}

func runPairDelegatedUpload(cmd *cobra.Command, args []string) error {
	if pairDelegatedCID == "" {
		return fmt.Errorf("--cid is required")
	}
	payload, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read finish payload file: %w", err)
	}
	c := apiclient.New(addr)
	if _, err := c.DoRaw("POST", "/api/pair/delegated/"+pairDelegatedCID+"/finish_payload", payload, map[string]string{"Content-Type": "application/json"}); err != nil {
		return err
	}
	fmt.Println("finish payload uploaded")
	return nil
}

func runPairDelegatedGet(cmd *cobra.Command, args []string) error {
	if pairDelegatedCID == "" {
		return fmt.Errorf("--cid is required")
	}
	c := apiclient.New(addr)
	body, err := c.DoRaw("GET", "/api/pair/delegated/"+pairDelegatedCID+"/finish_payload", nil, nil)
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}

func runPairDelegatedFinish(cmd *cobra.Command, args []string) error {
	if pairDelegatedCID == "" {
		return fmt.Errorf("--cid is required")
	}
	envelope, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read envelope file: %w", err)
	}
	c := apiclient.New(addr)
	if _, err := c.DoRaw("POST", "/api/pair/delegated/"+pairDelegatedCID+"/finish", envelope, map[string]string{"Content-Type": "application/json"}); err != nil {
		return err
	}
	fmt.Println("delegated pairing complete")
	return nil
}
