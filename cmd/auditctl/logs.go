package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/lockaudit/internal/apiclient"
)

var logsReadToken string

var logsCmd = &cobra.Command{
	Use:   "logs <client-id>",
	Short: "Fetch a client's append-only audit log",
	Long: `Requires --token, the read-token issued to this client id by a
prior register call; the server rejects a token scoped to a different
client id.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().StringVar(&logsReadToken, "token", "", "read token scoped to this client id (required)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	if logsReadToken == "" {
		return fmt.Errorf("--token is required")
	}
	clientID := args[0]

	c := apiclient.New(addr)
	body, err := c.DoRaw("GET", "/api/device/"+clientID+"/logs", nil,
		map[string]string{"Authorization": "Bearer " + logsReadToken})
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}
