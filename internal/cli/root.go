package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/existflow/sitegate/internal/client"
	"github.com/existflow/sitegate/internal/config"
	"github.com/existflow/sitegate/internal/logger"
)

var (
	logLevel   string
	logFile    string
	logConsole bool
	serverURL  string

	// cfg is loaded once per invocation in PersistentPreRunE
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sitegate",
	Short: "sitegate - access gate for staging sites",
	Long: `sitegate talks to a sitegate server: log in with username, password and
e-mailed one-time code, keep the session alive, and inspect the gate.

Run 'sitegate watch' to monitor an open session for inactivity.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, loadErr := config.Load()
		cfg = loaded
		if loadErr != nil {
			cfg = config.DefaultConfig()
		}

		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-file") {
			cfg.Log.File = logFile
		}
		if cmd.Flags().Changed("log-console") {
			cfg.Log.Console = logConsole
		} else {
			// stderr is shared with prompts and the TUI
			cfg.Log.Console = false
		}
		if cfg.Log.File == "" {
			cfg.Log.File = logger.DefaultFilePath("cli")
		}

		logConfig := logger.DefaultConfig()
		logConfig.Level = logger.ParseLevel(cfg.Log.Level)
		logConfig.FilePath = cfg.Log.File
		logConfig.Console = cfg.Log.Console

		if err := logger.Init(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if loadErr != nil {
			logger.Warn("Failed to load config, using defaults", logger.F("error", loadErr))
		}

		logger.Info("sitegate started", logger.F("command", cmd.Name()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Info("sitegate exiting", logger.F("command", cmd.Name()))
		logger.Close()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// newClient opens the persisted client, applying --server when given
func newClient() (*client.Client, error) {
	c, err := client.NewDefault()
	if err != nil {
		return nil, err
	}
	if serverURL != "" && serverURL != c.ServerURL() {
		if err := c.SetServer(serverURL); err != nil {
			return nil, fmt.Errorf("failed to save server URL: %w", err)
		}
	}
	return c, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Enable console logging")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL (remembered for later commands)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(otpRequiredCmd)
	rootCmd.AddCommand(hashPasswordCmd)
	rootCmd.AddCommand(auditCmd)
}
