package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/savepoint/internal/bytesize"
	"github.com/marmos91/savepoint/internal/cli/output"
	"github.com/marmos91/savepoint/pkg/archive"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the contents of a checkpoint archive",
	Long: `Inspect a checkpoint archive without loading it: the format version,
the core records, and every component entry with its sizes.

Examples:
  # Inspect a quick-save slot archive
  savepoint inspect /var/lib/savepoint/slots/slot_01.sav

  # Inspect an ad-hoc archive
  savepoint inspect ./before-upgrade.sav`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	r, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	var version uint32
	entries := output.NewTableData("ENTRY", "KIND", "SIZE", "COMPRESSED")

	for _, f := range r.Files() {
		kind := "component"
		switch {
		case archive.EqualName(f.Name, archive.EntryStateVersion):
			kind = "version"
			if version, err = r.ReadVersion(f); err != nil {
				return err
			}
		case archive.EqualName(f.Name, archive.EntryScreenshot):
			kind = "preview"
		case archive.EqualName(f.Name, archive.EntryInternals):
			kind = "core"
		}

		entries.AddRow(
			f.Name,
			kind,
			bytesize.ByteSize(f.UncompressedSize64).String(),
			bytesize.ByteSize(f.CompressedSize64).String(),
		)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Archive:  %s\n", path)
	fmt.Fprintf(out, "Size:     %s\n", bytesize.ByteSize(info.Size()))
	fmt.Fprintf(out, "Format:   %s", archive.FormatVersion(version))
	if err := archive.CheckVersion(path, archive.StateVersion, version); err != nil {
		fmt.Fprintf(out, "  (not loadable by this build: %s)", archive.FormatVersion(archive.StateVersion))
	}
	fmt.Fprintf(out, "\n\n")

	return output.PrintTable(out, entries)
}
