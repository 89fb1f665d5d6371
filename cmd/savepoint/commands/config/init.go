package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/savepoint/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter configuration file",
	Long: `Create a configuration file at the default location with every
tunable set to its default value.

Examples:
  # Create the config file
  savepoint config init

  # Overwrite an existing config file
  savepoint config init --force`,
	RunE: runConfigInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := config.InitConfig(initForce)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created: %s\n", path)
	fmt.Fprintln(out, "\nEdit slots.dir to point at your slot directory, then validate with:")
	fmt.Fprintln(out, "  savepoint config validate")
	return nil
}
