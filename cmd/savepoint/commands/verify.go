package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/savepoint/internal/cli/timeutil"
	"github.com/marmos91/savepoint/pkg/catalog"
	"github.com/marmos91/savepoint/pkg/config"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Verify an archive against its catalog digest",
	Long: `Re-hash a checkpoint archive and compare it with the digest the
catalog recorded when the archive was written. Detects truncation and
bit rot before a restore is attempted.

Requires a persistent catalog (catalog.dir in the configuration).

Examples:
  savepoint verify /var/lib/savepoint/slots/slot_01.sav`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	path := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Catalog.Dir == "" {
		cfgPath := GetConfigFile()
		if cfgPath == "" {
			cfgPath = config.GetDefaultConfigPath()
		}
		return fmt.Errorf("no persistent catalog configured: set catalog.dir in %s", cfgPath)
	}

	cat, err := catalog.Open(cfg.Catalog.Dir)
	if err != nil {
		return err
	}
	defer cat.Close()

	ctx := cmd.Context()

	rec, found, err := cat.Get(ctx, path)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("archive is not in the catalog: %s", path)
	}

	ok, err := cat.Verify(ctx, path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !ok {
		return fmt.Errorf("digest mismatch: %s has changed since it was indexed", path)
	}

	fmt.Fprintf(out, "OK: %s\n", path)
	fmt.Fprintf(out, "  Digest:  %s\n", rec.Digest)
	fmt.Fprintf(out, "  Indexed: %s\n", timeutil.Local(rec.CreatedAt))
	return nil
}
