package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/plodoki/pakd/internal/server"
	"github.com/plodoki/pakd/internal/service"
)

const banner = `
             _       _
 _ __   __ _| | ____| |
| '_ \ / _` + "`" + ` | |/ / _` + "`" + ` |
| |_) | (_| |   < (_| |
| .__/ \__,_|_|\_\__,_|
|_|
`

func newServeCmd() *cobra.Command {
	var (
		port   int
		host   string
		dev    bool
		detach bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the pakd API server",
		Long:  "Start the HTTP server that issues and lists personal API keys and publishes the JWKS document.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if detach {
				return runServeDetached(os.Args)
			}
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging, CORS *)")
	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "Run the server in the background")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

// runServeDetached re-executes the current binary without --detach, in a new
// session with output redirected to the log file, and records its PID.
func runServeDetached(argv []string) error {
	if pid, err := readPID(); err == nil && isProcessRunning(pid) {
		return fmt.Errorf("server already running (PID %d); use 'pakd stop' first", pid)
	}

	if err := os.MkdirAll(resolveDataDir(), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logFile, err := os.OpenFile(logFilePath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	args := make([]string, 0, len(argv))
	for _, a := range argv[1:] {
		if a == "--detach" || a == "-d" {
			continue
		}
		args = append(args, a)
	}

	child := exec.Command(argv[0], args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setSysProcAttr(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("start background server: %w", err)
	}
	if err := writePID(child.Process.Pid); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}

	fmt.Printf("Server started in background (PID %d)\n", child.Process.Pid)
	fmt.Printf("  Logs: %s\n", logFilePath())
	fmt.Println("  Stop with: pakd stop")
	return nil
}

func runServe(host string, port int, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	// Set up logger
	logLevel := slog.LevelInfo
	switch viper.GetString("logging.level") {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	if dev {
		logLevel = slog.LevelDebug
	}
	var logger *slog.Logger
	if viper.GetString("logging.format") == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	}

	// 1. Open the key store
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open key store: %w", err)
	}
	defer st.Close()
	logger.Info("key store opened", "driver", viper.GetString("store.driver"), "data_dir", resolveDataDir())

	ctx := context.Background()

	// 2. Initialize signing key material
	keyPath := viper.GetString("auth.key_path")
	keys := service.NewKeyManager(keyPath)
	if keyPath == "" {
		logger.Warn("no auth.key_path configured - using an ephemeral signing key; issued tokens will not survive a restart (run 'pakd key generate' and set auth.key_path)")
	}
	if _, kid, err := keys.PublicKey(); err != nil {
		return fmt.Errorf("load signing key: %w", err)
	} else {
		logger.Info("signing key loaded", "kid", kid)
	}

	// 3. Check for first-run (no users exist)
	hasUser, err := st.HasAnyUser(ctx)
	if err != nil {
		logger.Warn("failed to check for users", "error", err)
	}
	if !hasUser {
		logger.Warn("no user accounts found - run: pakd user create")
	}

	// 4. Build and start HTTP server
	srvCfg := server.DefaultConfig()
	srvCfg.Host = host
	srvCfg.Port = port
	srvCfg.Version = versionString()
	if origins := viper.GetStringSlice("server.cors.origins"); len(origins) > 0 {
		srvCfg.CORSOrigins = origins
	}
	if dev {
		srvCfg.CORSOrigins = []string{"*"}
	}
	if ttl := viper.GetString("auth.session_ttl"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return fmt.Errorf("invalid auth.session_ttl %q: %w", ttl, err)
		}
		srvCfg.SessionTTL = d
	}
	if limit := viper.GetInt("auth.create_rate_limit"); limit > 0 {
		srvCfg.CreateRateLimit = limit
	}

	srv := server.New(srvCfg, st, keys, logger)

	fmt.Printf("→ pakd %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", host, port)
	fmt.Printf("→ JWKS:    http://%s:%d/.well-known/jwks.json\n", host, port)
	fmt.Printf("→ OpenAPI: http://%s:%d/openapi.json\n", host, port)
	fmt.Printf("→ Health:  http://%s:%d/healthz\n", host, port)
	fmt.Println()

	if err := writePID(os.Getpid()); err != nil {
		logger.Warn("failed to write PID file", "error", err)
	}
	defer removePID()

	return srv.ListenAndServe()
}
