package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/lockaudit/internal/apiclient"
	"github.com/sage-x-project/lockaudit/lock"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Start and finish unlock challenges against a lock server",
}

var unlockEntityID string

var unlockStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Request an unlock challenge for an entity",
	RunE:  runUnlockStart,
}

var unlockFinishCID string

var unlockFinishCmd = &cobra.Command{
	Use:   "finish <signed-envelope-file>",
	Short: "Submit a signed envelope completing an unlock request",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnlockFinish,
}

func init() {
	rootCmd.AddCommand(unlockCmd)
	unlockCmd.AddCommand(unlockStartCmd, unlockFinishCmd)

	unlockStartCmd.Flags().StringVar(&unlockEntityID, "entity", "", "entity id to unlock (required)")
	unlockFinishCmd.Flags().StringVar(&unlockFinishCID, "cid", "", "unlock challenge id (required)")
}

func runUnlockStart(cmd *cobra.Command, args []string) error {
	if unlockEntityID == "" {
		return fmt.Errorf("--entity is required")
	}
	req := struct {
		EntityID string `json:"entityId"`
	}{EntityID: unlockEntityID}

	c := apiclient.New(addr)
	var res lock.UnlockChallengeResponse
	if err := c.Do("POST", "/api/unlock/start", req, &res, nil); err != nil {
		return err
	}
	fmt.Printf("id:        %s\n", res.ID)
	fmt.Printf("timestamp: %d\n", res.Timestamp)
	fmt.Printf("entityId:  %s\n", res.EntityID)
	return nil
}

func runUnlockFinish(cmd *cobra.Command, args []string) error {
	if unlockFinishCID == "" {
		return fmt.Errorf("--cid is required")
	}
	envelope, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read envelope file: %w", err)
	}
	c := apiclient.New(addr)
	if _, err := c.DoRaw("POST", "/api/unlock/"+unlockFinishCID+"/finish", envelope, map[string]string{"Content-Type": "application/json"}); err != nil {
		return err
	}
	fmt.Println("unlock requested")
	return nil
}
