package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamscao/permitserver/internal/models"
)

var (
	reqHolderName      string
	reqHolderID        string
	reqEmail           string
	reqPhone           string
	reqProgram         string
	reqActivityType    string
	reqActivityDesc    string
	reqPlate           string
	reqModel           string
	reqColor           string
	reqGarage          string
	reqModifications   string
	reqVehiclePhoto    string
	reqVehicleIDPhoto  string
	reqOnBehalf        bool
	reqApproveLevel    int
	reqApproveComments string
	reqRejectLevel     int
	reqRejectReason    string
	reqListStatuses    []string
)

func addRequestCommands() {
	requestCmd := &cobra.Command{
		Use:   "request",
		Short: "Manage access requests",
	}

	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new permit request",
		RunE:  submitRequest,
	}
	submitCmd.Flags().StringVar(&reqHolderName, "holder-name", "", "Requester full name (required)")
	submitCmd.Flags().StringVar(&reqHolderID, "holder-id", "", "Requester national id (required)")
	submitCmd.Flags().StringVar(&reqEmail, "email", "", "Contact email (required)")
	submitCmd.Flags().StringVar(&reqPhone, "phone", "", "Contact phone (required)")
	submitCmd.Flags().StringVar(&reqProgram, "program", "", "Program / affiliation (required)")
	submitCmd.Flags().StringVar(&reqActivityType, "activity-type", "", "Workshop activity type")
	submitCmd.Flags().StringVar(&reqActivityDesc, "activity-description", "", "Workshop activity description")
	submitCmd.Flags().StringVar(&reqPlate, "plate", "", "Vehicle plate (required)")
	submitCmd.Flags().StringVar(&reqModel, "model", "", "Vehicle model (required)")
	submitCmd.Flags().StringVar(&reqColor, "color", "", "Vehicle color (required)")
	submitCmd.Flags().StringVar(&reqGarage, "garage", "", "Garage / parking location")
	submitCmd.Flags().StringVar(&reqModifications, "modifications", "", "Vehicle modification notes")
	submitCmd.Flags().StringVar(&reqVehiclePhoto, "vehicle-photo", "", "Vehicle photo reference")
	submitCmd.Flags().StringVar(&reqVehicleIDPhoto, "vehicle-id-photo", "", "Supporting document photo reference")
	submitCmd.Flags().BoolVar(&reqOnBehalf, "on-behalf", false, "File on behalf of someone else (authorities only)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List requests, newest first",
		RunE:  listRequests,
	}
	listCmd.Flags().StringSliceVar(&reqListStatuses, "status", nil, "Filter by status (repeatable)")

	showCmd := &cobra.Command{
		Use:   "show <request-id>",
		Short: "Show one request",
		Args:  cobra.ExactArgs(1),
		RunE:  showRequest,
	}

	approveCmd := &cobra.Command{
		Use:   "approve <request-id>",
		Short: "Approve a request at the actor's authority level",
		Args:  cobra.ExactArgs(1),
		RunE:  approveRequest,
	}
	approveCmd.Flags().IntVar(&reqApproveLevel, "level", 0, "Approval level (required: 1 or 2)")
	approveCmd.Flags().StringVar(&reqApproveComments, "comments", "", "Approval comments")
	approveCmd.MarkFlagRequired("level")

	overrideCmd := &cobra.Command{
		Use:   "override-approve <request-id>",
		Short: "Fill an approval slot by override (highest authority only)",
		Args:  cobra.ExactArgs(1),
		RunE:  overrideApproveRequest,
	}
	overrideCmd.Flags().IntVar(&reqApproveLevel, "level", 0, "Approval level to fill (required: 1 or 2)")
	overrideCmd.Flags().StringVar(&reqApproveComments, "comments", "", "Approval comments")
	overrideCmd.MarkFlagRequired("level")

	rejectCmd := &cobra.Command{
		Use:   "reject <request-id>",
		Short: "Reject a request",
		Args:  cobra.ExactArgs(1),
		RunE:  rejectRequest,
	}
	rejectCmd.Flags().IntVar(&reqRejectLevel, "level", 0, "Rejecting level (required: 1 or 2)")
	rejectCmd.Flags().StringVar(&reqRejectReason, "reason", "", "Rejection reason (required)")
	rejectCmd.MarkFlagRequired("level")
	rejectCmd.MarkFlagRequired("reason")

	deleteCmd := &cobra.Command{
		Use:   "delete <request-id>",
		Short: "Purge a request and retire its credential (highest authority only)",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteRequest,
	}

	requestCmd.AddCommand(submitCmd, listCmd, showCmd, approveCmd, overrideCmd, rejectCmd, deleteCmd)
	rootCmd.AddCommand(requestCmd)
}

func submitRequest(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	defer database.Close()

	actor, err := resolveActor()
	if err != nil {
		return err
	}

	draft := models.AccessRequest{
		HolderName:          reqHolderName,
		HolderID:            reqHolderID,
		Email:               reqEmail,
		Phone:               reqPhone,
		Program:             reqProgram,
		ActivityType:        reqActivityType,
		ActivityDescription: reqActivityDesc,
		VehiclePlate:        reqPlate,
		VehicleModel:        reqModel,
		VehicleColor:        reqColor,
		GarageLocation:      reqGarage,
		ModificationNotes:   reqModifications,
		VehiclePhotoRef:     reqVehiclePhoto,
		VehicleIDPhotoRef:   reqVehicleIDPhoto,
	}

	var req *models.AccessRequest
	if reqOnBehalf {
		req, err = permitSvc.SubmitOnBehalf(draft, actor)
	} else {
		req, err = permitSvc.Submit(draft, actor)
	}
	if err != nil {
		return fmt.Errorf("failed to submit request: %w", err)
	}

	fmt.Printf("Request %s created (status %s)\n", req.ID, req.Status)
	return nil
}

func listRequests(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	defer database.Close()

	statuses, err := statusArgs(reqListStatuses)
	if err != nil {
		return err
	}

	requests, err := permitSvc.List(statuses...)
	if err != nil {
		return err
	}

	if len(requests) == 0 {
		fmt.Println("No requests found")
		return nil
	}

	fmt.Printf("%-36s %-10s %-24s %-16s %s\n", "ID", "Plate", "Holder", "Status", "Created")
	for _, req := range requests {
		fmt.Printf("%-36s %-10s %-24s %-16s %s\n",
			req.ID,
			req.VehiclePlate,
			req.HolderName,
			req.Status,
			req.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}

	return nil
}

func showRequest(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	defer database.Close()

	req, err := permitSvc.Get(args[0])
	if err != nil {
		return err
	}

	return printJSON(req)
}

func approveRequest(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	defer database.Close()

	actor, err := resolveActor()
	if err != nil {
		return err
	}

	req, err := permitSvc.Approve(args[0], reqApproveLevel, actor, reqApproveComments)
	if err != nil && req == nil {
		return err
	}

	fmt.Printf("Request %s is now %s\n", req.ID, req.Status)
	if err != nil {
		// Approval committed, issuance failed; recoverable via
		// `credential regenerate`.
		return err
	}

	if req.Status == models.StatusApproved {
		if cred, credErr := permitSvc.ActiveCredential(req.ID); credErr == nil {
			fmt.Printf("Credential issued: serial %s, image %s\n", cred.Serial, cred.ImageRef)
		}
	}

	return nil
}

func overrideApproveRequest(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	defer database.Close()

	actor, err := resolveActor()
	if err != nil {
		return err
	}

	req, err := permitSvc.OverrideApprove(args[0], reqApproveLevel, actor, reqApproveComments)
	if err != nil && req == nil {
		return err
	}

	fmt.Printf("Request %s is now %s\n", req.ID, req.Status)
	return err
}

func rejectRequest(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	defer database.Close()

	actor, err := resolveActor()
	if err != nil {
		return err
	}

	req, err := permitSvc.Reject(args[0], reqRejectLevel, actor, reqRejectReason)
	if err != nil {
		return err
	}

	fmt.Printf("Request %s rejected\n", req.ID)
	return nil
}

func deleteRequest(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	defer database.Close()

	actor, err := resolveActor()
	if err != nil {
		return err
	}

	if err := permitSvc.Delete(args[0], actor); err != nil {
		return err
	}

	fmt.Printf("Request %s purged\n", args[0])
	return nil
}
