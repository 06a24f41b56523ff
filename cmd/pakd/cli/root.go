package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	appVersion string // set in Execute, used by serve for the OpenAPI document
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pakd",
		Short: "Personal API key service with RSA-signed bearer tokens",
		Long: `pakd issues and verifies personal API keys as RS256-signed JWTs.

Users authenticate with email and password to obtain a session token, then
mint long-lived API keys for scripts and CI pipelines. Resource servers
verify those keys offline against the public key set published at
/.well-known/jwks.json.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./pakd.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for the SQLite key store (default: ~/.pakd)")

	cobra.OnInitialize(initConfig)

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newUserCmd())
	cmd.AddCommand(newPakCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newStopCmd())

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pakd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.pakd")
	}

	viper.SetEnvPrefix("PAKD")
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}
