package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/plodoki/pakd/internal/model"
	"github.com/plodoki/pakd/internal/service"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
		Long:  "Create and list the user accounts that can log in and mint personal API keys.",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserListCmd())

	return cmd
}

// ---------- user create ----------

func newUserCreateCmd() *cobra.Command {
	var (
		email    string
		password string
		name     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user account",
		Example: `  pakd user create --email dev@example.com --password secret
  pakd user create --email dev@example.com  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(email, password, name)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "User email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "User password (prompted if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "User display name")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runUserCreate(email, password, name string) error {
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %q", email)
	}

	// Prompt for password if not provided
	if password == "" {
		fmt.Print("Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return fmt.Errorf("passwords do not match")
		}
	}

	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open key store: %w", err)
	}
	defer st.Close()

	hash, err := service.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		IsActive:     true,
	}
	if err := st.CreateUser(context.Background(), user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Printf("Created user %q (ID %d)\n", email, user.ID)
	return nil
}

// ---------- user list ----------

func newUserListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runUserList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open key store: %w", err)
	}
	defer st.Close()

	users, err := st.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	type userRow struct {
		ID     int64  `json:"id"`
		Email  string `json:"email"`
		Name   string `json:"name"`
		Active bool   `json:"active"`
	}

	rows := make([]userRow, len(users))
	for i, u := range users {
		rows[i] = userRow{ID: u.ID, Email: u.Email, Name: u.Name, Active: u.IsActive}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No user accounts configured. Use 'pakd user create' to create one.")
		return nil
	}

	fmt.Printf("%-6s %-30s %-24s %-8s\n", "ID", "EMAIL", "NAME", "ACTIVE")
	fmt.Printf("%-6s %-30s %-24s %-8s\n", "--", "-----", "----", "------")
	for _, u := range rows {
		active := "yes"
		if !u.Active {
			active = "no"
		}
		fmt.Printf("%-6d %-30s %-24s %-8s\n", u.ID, u.Email, u.Name, active)
	}

	return nil
}
