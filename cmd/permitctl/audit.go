package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	auditAction    string
	auditActor     string
	auditRequestID string
	auditLimit     int
)

func addAuditCommands() {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit ledger",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		RunE:  listAudit,
	}
	listCmd.Flags().StringVar(&auditAction, "action", "", "Filter by action")
	listCmd.Flags().StringVar(&auditActor, "actor-id", "", "Filter by actor id")
	listCmd.Flags().StringVar(&auditRequestID, "request-id", "", "Filter by target request id")
	listCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum entries")

	auditCmd.AddCommand(listCmd)
	rootCmd.AddCommand(auditCmd)
}

func listAudit(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	defer database.Close()

	entries, err := auditRepo.List(auditAction, auditActor, auditRequestID, auditLimit)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No audit entries found")
		return nil
	}

	for _, entry := range entries {
		fmt.Printf("%s  %-26s %-20s %s\n",
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.Action,
			entry.ActorName,
			entry.Description,
		)
	}

	return nil
}
