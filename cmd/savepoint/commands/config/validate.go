package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/savepoint/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Validate the savepoint configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate the default config
  savepoint config validate

  # Validate a specific config file
  savepoint config validate --config /etc/savepoint/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if !cfg.Catalog.Enabled {
		warnings = append(warnings, "catalog disabled - 'savepoint verify' and slot listings over the API will not work")
	}
	if !cfg.Slots.Backup {
		warnings = append(warnings, "slot backups disabled - overwriting a slot discards the previous archive")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}
	return nil
}
