package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/plodoki/pakd/internal/service"
)

func newPakCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pak",
		Aliases: []string{"apikey"},
		Short:   "Manage personal API keys",
		Long:    "Issue, list, and revoke personal API keys on behalf of a user, without going through the HTTP API.",
	}

	cmd.AddCommand(newPakIssueCmd())
	cmd.AddCommand(newPakListCmd())
	cmd.AddCommand(newPakRevokeCmd())

	return cmd
}

// ---------- pak issue ----------

func newPakIssueCmd() *cobra.Command {
	var (
		email      string
		label      string
		expiryDays int
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a new personal API key",
		Long:  "Sign a new API key token for a user. The token is shown once and cannot be retrieved again.",
		Example: `  pakd pak issue --email dev@example.com --label "CI pipeline" --expires-in 90
  pakd pak issue --email dev@example.com --label laptop`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var expiry *int
			if cmd.Flags().Changed("expires-in") {
				expiry = &expiryDays
			}
			return runPakIssue(email, label, expiry)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email of the owning user (required)")
	cmd.Flags().StringVar(&label, "label", "", "Human-readable label for the key (required)")
	cmd.Flags().IntVar(&expiryDays, "expires-in", 0, "Days until the key expires (omit for no expiry)")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("label")

	return cmd
}

func runPakIssue(email, label string, expiryDays *int) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open key store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	user, err := st.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("look up user %q: %w", email, err)
	}

	issuer := service.NewIssuer(service.NewKeyManager(signingKeyPath()), st)
	key, token, err := issuer.Create(ctx, user.ID, label, expiryDays)
	if err != nil {
		return fmt.Errorf("issue api key: %w", err)
	}

	fmt.Println("API key issued:")
	fmt.Println()
	fmt.Printf("  Token: %s\n", token)
	fmt.Printf("  ID:    %d\n", key.ID)
	fmt.Printf("  Owner: %s\n", email)
	fmt.Printf("  Label: %s\n", key.Label)
	if key.ExpiresAt != nil {
		fmt.Printf("  Expires: %s\n", key.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Println()
	fmt.Println("  Save this token now - it cannot be retrieved again.")
	return nil
}

// ---------- pak list ----------

func newPakListCmd() *cobra.Command {
	var (
		email      string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List a user's personal API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPakList(email, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email of the owning user (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runPakList(email string, jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open key store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	user, err := st.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("look up user %q: %w", email, err)
	}

	keys, err := st.ListAPIKeysForUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	type keyRow struct {
		ID      int64  `json:"id"`
		Label   string `json:"label"`
		Created string `json:"created_at"`
		Expires string `json:"expires_at,omitempty"`
		Revoked bool   `json:"revoked"`
	}

	rows := make([]keyRow, len(keys))
	for i, k := range keys {
		rows[i] = keyRow{
			ID:      k.ID,
			Label:   k.Label,
			Created: k.CreatedAt.Format("2006-01-02"),
			Revoked: k.Revoked(),
		}
		if k.ExpiresAt != nil {
			rows[i].Expires = k.ExpiresAt.Format("2006-01-02")
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Printf("No API keys for %s. Use 'pakd pak issue' to create one.\n", email)
		return nil
	}

	fmt.Printf("%-6s %-24s %-12s %-12s %-8s\n", "ID", "LABEL", "CREATED", "EXPIRES", "REVOKED")
	fmt.Printf("%-6s %-24s %-12s %-12s %-8s\n", "--", "-----", "-------", "-------", "-------")
	for _, k := range rows {
		expires := k.Expires
		if expires == "" {
			expires = "-"
		}
		revoked := "no"
		if k.Revoked {
			revoked = "yes"
		}
		fmt.Printf("%-6d %-24s %-12s %-12s %-8s\n", k.ID, k.Label, k.Created, expires, revoked)
	}

	return nil
}

// ---------- pak revoke ----------

func newPakRevokeCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a personal API key by its ID",
		Long:  "Permanently revoke an API key. Requests presenting the key fail immediately; revocation cannot be undone.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPakRevoke(email, args[0])
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email of the owning user (required)")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runPakRevoke(email, idArg string) error {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid key ID %q", idArg)
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open key store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	user, err := st.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("look up user %q: %w", email, err)
	}

	if err := st.RevokeAPIKey(ctx, id, user.ID); err != nil {
		return fmt.Errorf("revoke api key %d: %w", id, err)
	}

	fmt.Printf("Revoked API key %d\n", id)
	return nil
}
