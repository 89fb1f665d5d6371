// Package commands implements the savepoint CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	configcmd "github.com/marmos91/savepoint/cmd/savepoint/commands/config"
	"github.com/marmos91/savepoint/internal/logger"
	"github.com/marmos91/savepoint/pkg/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "savepoint",
	Short: "Savepoint - checkpoint archives for a live virtual machine",
	Long: `savepoint manages checkpoint archives: full captures of a running
virtual machine that can be written to disk and fed back later.

Use this tool to inspect archive contents, verify archives against the
catalog, and manage quick-save slots.

Use "savepoint [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Path to config file (default: $XDG_CONFIG_HOME/savepoint/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(slotsCmd)
	rootCmd.AddCommand(configcmd.Cmd)
}

// GetConfigFile returns the --config flag value.
func GetConfigFile() string {
	return configFile
}

// loadConfig loads the configuration, falling back to defaults when no file
// exists, and points the logger at the configured sink.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}

	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}
