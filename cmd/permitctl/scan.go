package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamscao/permitserver/internal/checkpoint"
)

func addScanCommand() {
	scanCmd := &cobra.Command{
		Use:   "scan <payload>",
		Short: "Validate a scanned credential payload at the checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  scanPayload,
	}
	rootCmd.AddCommand(scanCmd)
}

func scanPayload(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	defer database.Close()

	actor, err := resolveActor()
	if err != nil {
		return err
	}

	decision, err := checkpointV.Validate(args[0], checkpoint.Operator{ID: actor.ID, Name: actor.Name})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if decision.Granted {
		fmt.Println("ACCESS GRANTED")
	} else {
		fmt.Printf("ACCESS DENIED (%s)\n", decision.Reason)
		if decision.RequestStatus != "" {
			fmt.Printf("Request status: %s\n", decision.RequestStatus)
		}
	}

	if decision.Summary != nil {
		fmt.Printf("Holder: %s (%s)\n", decision.Summary.HolderName, decision.Summary.HolderID)
		fmt.Printf("Vehicle: %s %s %s\n", decision.Summary.Plate, decision.Summary.VehicleModel, decision.Summary.VehicleColor)
		if decision.Summary.ExpiresAt != nil {
			fmt.Printf("Expires: %s\n", decision.Summary.ExpiresAt.Format("2006-01-02 15:04:05"))
		}
	}

	return nil
}
