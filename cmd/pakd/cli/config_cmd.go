package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/plodoki/pakd/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage pakd configuration",
		Long:  "Export the current effective configuration as YAML, or import and validate a configuration file.",
	}

	cmd.AddCommand(newConfigExportCmd())
	cmd.AddCommand(newConfigImportCmd())

	return cmd
}

// ---------- config export ----------

func newConfigExportCmd() *cobra.Command {
	var (
		out   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the effective configuration as YAML",
		Long:  "Write the current effective configuration (defaults overlaid with any loaded config file and PAKD_* environment variables) as a pakd.yaml file or to stdout.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigExport(out, force)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing output file")

	return cmd
}

// effectiveConfig builds a YAMLConfig from defaults overlaid with whatever
// viper has loaded from the config file and environment.
func effectiveConfig() *config.YAMLConfig {
	cfg := config.DefaultYAMLConfig()

	if v := viper.GetString("server.host"); v != "" {
		cfg.Server.Host = v
	}
	if v := viper.GetInt("server.port"); v != 0 {
		cfg.Server.Port = v
	}
	if v := viper.GetString("server.shutdown_timeout"); v != "" {
		cfg.Server.ShutdownTimeout = v
	}
	if v := viper.GetStringSlice("server.cors.origins"); len(v) > 0 {
		cfg.Server.CORS.Origins = v
	}
	if v := viper.GetString("auth.key_path"); v != "" {
		cfg.Auth.KeyPath = v
	}
	if v := viper.GetString("auth.session_ttl"); v != "" {
		cfg.Auth.SessionTTL = v
	}
	if v := viper.GetInt("auth.create_rate_limit"); v != 0 {
		cfg.Auth.CreateRateLimit = v
	}
	if v := viper.GetString("store.driver"); v != "" {
		cfg.Store.Driver = v
	}
	if v := viper.GetString("store.dsn"); v != "" {
		cfg.Store.DSN = v
	}
	if v := viper.GetString("logging.level"); v != "" {
		cfg.Logging.Level = v
	}
	if v := viper.GetString("logging.format"); v != "" {
		cfg.Logging.Format = v
	}

	return cfg
}

func runConfigExport(out string, force bool) error {
	data, err := yaml.Marshal(effectiveConfig())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if out == "" {
		fmt.Print(string(data))
		return nil
	}

	if !force {
		if _, err := os.Stat(out); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", out)
		}
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Exported configuration to %s\n", out)
	return nil
}

// ---------- config import ----------

func newConfigImportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Validate and install a configuration file",
		Long:  "Parse a YAML configuration file (expanding ${VAR} references), report any errors, and copy it to the active config location.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigImport(args[0], out)
		},
	}

	cmd.Flags().StringVar(&out, "out", "pakd.yaml", "Destination for the validated config")

	return cmd
}

func runConfigImport(path, out string) error {
	cfg, err := config.LoadYAMLConfig(path)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Re-marshal rather than copying bytes so the installed file reflects
	// exactly what was parsed (env references already expanded).
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Imported %s -> %s\n", path, out)
	fmt.Printf("  store:  %s\n", cfg.Store.Driver)
	if cfg.Auth.KeyPath != "" {
		fmt.Printf("  key:    %s\n", cfg.Auth.KeyPath)
	} else {
		fmt.Println("  key:    (ephemeral - run 'pakd key generate' and set auth.key_path)")
	}
	fmt.Printf("  listen: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	return nil
}
