package cli

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/plodoki/pakd/internal/store"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// PAKD_DATA_DIR env var, or ~/.pakd as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("PAKD_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.pakd"
}

// openStore opens the key store using the configured driver and DSN,
// defaulting to a SQLite database under the data directory.
func openStore() (*store.Store, error) {
	return store.NewStore(store.Options{
		Driver:  viper.GetString("store.driver"),
		DSN:     viper.GetString("store.dsn"),
		DataDir: resolveDataDir(),
	})
}

// signingKeyPath returns the configured PEM key path, or the conventional
// location under the data directory when none is configured. Used by the
// key subcommands; serve treats an unset auth.key_path as a request for an
// ephemeral key instead.
func signingKeyPath() string {
	if p := viper.GetString("auth.key_path"); p != "" {
		return p
	}
	return filepath.Join(resolveDataDir(), "signing_key.pem")
}

// --- PID file management ---

func pidFilePath() string {
	return filepath.Join(resolveDataDir(), "pakd.pid")
}

func writePID(pid int) error {
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0644)
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID() {
	os.Remove(pidFilePath())
}

func logFilePath() string {
	return filepath.Join(resolveDataDir(), "pakd.log")
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
