// Package config implements the "savepoint config" subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent "config" command.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the savepoint configuration",
	Long:  `Initialize, validate, and document the savepoint configuration file.`,
}

func init() {
	Cmd.AddCommand(initCmd)
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(schemaCmd)
}
