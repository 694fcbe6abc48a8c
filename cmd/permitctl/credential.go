package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func addCredentialCommands() {
	credentialCmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage issued credentials",
	}

	showCmd := &cobra.Command{
		Use:   "show <request-id>",
		Short: "Show the active credential for a request",
		Args:  cobra.ExactArgs(1),
		RunE:  showCredential,
	}

	regenerateCmd := &cobra.Command{
		Use:   "regenerate <request-id>",
		Short: "Re-issue the credential for an approved request",
		Args:  cobra.ExactArgs(1),
		RunE:  regenerateCredential,
	}

	credentialCmd.AddCommand(showCmd, regenerateCmd)
	rootCmd.AddCommand(credentialCmd)
}

func showCredential(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	defer database.Close()

	cred, err := permitSvc.ActiveCredential(args[0])
	if err != nil {
		return err
	}

	return printJSON(cred)
}

func regenerateCredential(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	defer database.Close()

	actor, err := resolveActor()
	if err != nil {
		return err
	}

	cred, err := permitSvc.Regenerate(args[0], actor)
	if err != nil {
		return fmt.Errorf("failed to regenerate credential: %w", err)
	}

	fmt.Printf("Credential regenerated: serial %s\n", cred.Serial)
	fmt.Printf("Image: %s\n", cred.ImageRef)
	fmt.Printf("Document: %s\n", cred.DocumentRef)
	return nil
}
