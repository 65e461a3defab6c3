package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vedsharma/apitester/internal/config"
	"github.com/vedsharma/apitester/internal/logging"
)

var (
	configPath string
	overrides  config.Overrides
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "apitester",
	Short: "Compose HTTP requests and send them through a proxy backend",
	Long: `apitester composes HTTP requests, sends them through a proxy backend,
shows the backend's history log, and keeps requests in local collections.

Examples:
  apitester get https://jsonplaceholder.typicode.com/posts/1
  apitester post https://api.example.com/users -d '{"name": "John"}' --save demo
  apitester history
  apitester collection run demo
  apitester shell`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&configPath, "config", "", "Config file (default <data-dir>/config.yaml)")
	flags.StringVar(&overrides.BackendURL, "backend", "", "Proxy backend URL (default "+config.DefaultBackendURL+")")
	flags.StringVar(&overrides.DataDir, "data-dir", "", "Directory for local collections (default ~/.apitester)")
	flags.StringVar(&overrides.Storage, "storage", "", "Collection storage backend: json or sqlite")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	logger = logging.New(os.Stderr, verbose)
	slog.SetDefault(logger)

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	loaded.Apply(overrides)
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cfg = loaded
	logger.Debug("configuration loaded", "backend", cfg.BackendURL, "data_dir", cfg.DataDir, "storage", cfg.Storage)
	return nil
}
