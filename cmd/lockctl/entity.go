package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/lockaudit/config"
	"github.com/sage-x-project/lockaudit/internal/apiclient"
)

var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Inspect the entities a lock server exposes",
}

var entityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List lockable entities and their Home Assistant bindings",
	RunE:  runEntityList,
}

func init() {
	rootCmd.AddCommand(entityCmd)
	entityCmd.AddCommand(entityListCmd)
}

func runEntityList(cmd *cobra.Command, args []string) error {
	c := apiclient.New(addr)
	var entities []config.Entity
	if err := c.Do("GET", "/api/entity", nil, &entities, nil); err != nil {
		return err
	}
	if len(entities) == 0 {
		fmt.Println("(no entities configured)")
		return nil
	}
	for _, e := range entities {
		fmt.Printf("%-20s %-30s -> %s\n", e.ID, e.Name, e.HAEntity)
	}
	return nil
}
