package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamscao/permitserver/internal/auth"
	"github.com/adamscao/permitserver/internal/models"
)

var (
	userUsername string
	userFullName string
	userRole     string
	userPassword string
	userEnabled  bool
)

func addUserCommands() {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user",
		RunE:  createUser,
	}
	createCmd.Flags().StringVarP(&userUsername, "username", "u", "", "Username (required)")
	createCmd.Flags().StringVarP(&userFullName, "name", "n", "", "Full name (required)")
	createCmd.Flags().StringVarP(&userRole, "role", "r", models.RoleRequester, "Role: requester, scanner, admin_level1, admin_level2, superadmin")
	createCmd.Flags().StringVarP(&userPassword, "password", "p", "", "Password (required)")
	createCmd.MarkFlagRequired("username")
	createCmd.MarkFlagRequired("name")
	createCmd.MarkFlagRequired("password")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE:  listUsers,
	}

	setRoleCmd := &cobra.Command{
		Use:   "set-role <username>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(1),
		RunE:  setUserRole,
	}
	setRoleCmd.Flags().StringVarP(&userRole, "role", "r", "", "New role (required)")
	setRoleCmd.MarkFlagRequired("role")

	setStatusCmd := &cobra.Command{
		Use:   "set-status <username>",
		Short: "Enable or disable a user",
		Args:  cobra.ExactArgs(1),
		RunE:  setUserStatus,
	}
	setStatusCmd.Flags().BoolVar(&userEnabled, "enabled", true, "Account enabled")

	passwdCmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Change a user's password",
		Args:  cobra.ExactArgs(1),
		RunE:  changeUserPassword,
	}
	passwdCmd.Flags().StringVarP(&userPassword, "password", "p", "", "New password (required)")
	passwdCmd.MarkFlagRequired("password")

	deleteCmd := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteUser,
	}

	userCmd.AddCommand(createCmd, listCmd, setRoleCmd, setStatusCmd, passwdCmd, deleteCmd)
	rootCmd.AddCommand(userCmd)
}

func createUser(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	defer database.Close()

	actor, err := resolveActor()
	if err != nil {
		return err
	}

	user, totpSecret, err := identitySvc.CreateUser(userUsername, userFullName, userRole, userPassword, actor)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("User created: %s (%s, role %s)\n", user.Username, user.ID, user.Role)
	if totpSecret != "" {
		fmt.Printf("TOTP secret: %s\n", totpSecret)
		fmt.Printf("TOTP enrollment URL: %s\n", auth.GenerateTOTPURL(totpSecret, user.Username))
	}

	return nil
}

func listUsers(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	defer database.Close()

	users, err := identitySvc.ListUsers()
	if err != nil {
		return err
	}

	if len(users) == 0 {
		fmt.Println("No users found")
		return nil
	}

	fmt.Printf("%-20s %-24s %-14s %-8s %s\n", "Username", "Name", "Role", "Enabled", "Created")
	for _, user := range users {
		enabled := "no"
		if user.Enabled {
			enabled = "yes"
		}
		fmt.Printf("%-20s %-24s %-14s %-8s %s\n",
			user.Username,
			user.Name,
			user.Role,
			enabled,
			user.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}

	return nil
}

func setUserRole(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	defer database.Close()

	actor, err := resolveActor()
	if err != nil {
		return err
	}

	target, err := identitySvc.GetByUsername(args[0])
	if err != nil {
		return err
	}

	user, err := identitySvc.SetRole(target.ID, userRole, actor)
	if err != nil {
		return err
	}

	fmt.Printf("User %s role set to %s\n", user.Username, user.Role)
	return nil
}

func setUserStatus(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	defer database.Close()

	actor, err := resolveActor()
	if err != nil {
		return err
	}

	target, err := identitySvc.GetByUsername(args[0])
	if err != nil {
		return err
	}

	user, err := identitySvc.SetStatus(target.ID, userEnabled, actor)
	if err != nil {
		return err
	}

	state := "disabled"
	if user.Enabled {
		state = "enabled"
	}
	fmt.Printf("User %s is now %s\n", user.Username, state)
	return nil
}

func changeUserPassword(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	defer database.Close()

	actor, err := resolveActor()
	if err != nil {
		return err
	}

	target, err := identitySvc.GetByUsername(args[0])
	if err != nil {
		return err
	}

	if err := identitySvc.ChangePassword(target.ID, userPassword, actor); err != nil {
		return err
	}

	fmt.Printf("Password changed for %s\n", target.Username)
	return nil
}

func deleteUser(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	defer database.Close()

	actor, err := resolveActor()
	if err != nil {
		return err
	}

	target, err := identitySvc.GetByUsername(args[0])
	if err != nil {
		return err
	}

	if err := identitySvc.DeleteUser(target.ID, actor); err != nil {
		return err
	}

	fmt.Printf("User %s deleted\n", target.Username)
	return nil
}
