package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plodoki/pakd/internal/service"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the RSA signing key",
		Long:  "Generate the RSA signing key used to sign API key tokens, and inspect the published JWKS document.",
	}

	cmd.AddCommand(newKeyGenerateCmd())
	cmd.AddCommand(newKeyJWKSCmd())

	return cmd
}

// ---------- key generate ----------

func newKeyGenerateCmd() *cobra.Command {
	var (
		out   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new RSA signing key",
		Long:  "Generate a 2048-bit RSA private key and write it as a PEM file. Rotating the key invalidates every previously issued token.",
		Example: `  pakd key generate
  pakd key generate --out /etc/pakd/signing_key.pem`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyGenerate(out, force)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output path for the PEM file (default: <data-dir>/signing_key.pem)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing key file")

	return cmd
}

func runKeyGenerate(out string, force bool) error {
	if out == "" {
		out = signingKeyPath()
	}

	if err := service.WriteKeyFile(out, force); err != nil {
		return fmt.Errorf("generate signing key: %w", err)
	}

	keys := service.NewKeyManager(out)
	_, kid, err := keys.PublicKey()
	if err != nil {
		return fmt.Errorf("read back signing key: %w", err)
	}

	fmt.Println("Signing key generated:")
	fmt.Println()
	fmt.Printf("  Path: %s\n", out)
	fmt.Printf("  Kid:  %s\n", kid)
	fmt.Println()
	fmt.Println("  Set auth.key_path in pakd.yaml (or PAKD_AUTH_KEY_PATH) to this path.")
	return nil
}

// ---------- key jwks ----------

func newKeyJWKSCmd() *cobra.Command {
	var keyPath string

	cmd := &cobra.Command{
		Use:   "jwks",
		Short: "Print the JWKS document for the signing key",
		Long:  "Print the JSON Web Key Set that the server publishes at /.well-known/jwks.json, for offline distribution to resource servers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyJWKS(keyPath)
		},
	}

	cmd.Flags().StringVar(&keyPath, "key-path", "", "PEM key file to read (default: configured auth.key_path)")

	return cmd
}

func runKeyJWKS(keyPath string) error {
	if keyPath == "" {
		keyPath = signingKeyPath()
	}

	keys := service.NewKeyManager(keyPath)
	jwks, err := keys.JWKS()
	if err != nil {
		return fmt.Errorf("build JWKS: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(jwks)
}
