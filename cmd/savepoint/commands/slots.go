package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/marmos91/savepoint/internal/bytesize"
	"github.com/marmos91/savepoint/internal/cli/output"
	"github.com/marmos91/savepoint/internal/cli/prompt"
	"github.com/marmos91/savepoint/internal/cli/timeutil"
	"github.com/marmos91/savepoint/pkg/checkpoint"
)

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Manage quick-save slots",
	Long:  `List and remove quick-save slot archives in the configured slot directory.`,
}

var slotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quick-save slots",
	RunE:  runSlotsList,
}

var (
	listOutput string
	rmSlot     int
	rmYes      bool
)

var slotsRmCmd = &cobra.Command{
	Use:   "rm",
	Short: "Remove a quick-save slot archive",
	Long: `Remove a slot archive and its backup from the slot directory.

Examples:
  # Remove slot 3 after confirmation
  savepoint slots rm --slot 3

  # Remove without prompting
  savepoint slots rm --slot 3 --yes`,
	RunE: runSlotsRm,
}

func init() {
	slotsListCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table, json, yaml)")

	slotsRmCmd.Flags().IntVar(&rmSlot, "slot", -1, "Slot number to remove (required)")
	slotsRmCmd.Flags().BoolVarP(&rmYes, "yes", "y", false, "Skip the confirmation prompt")
	_ = slotsRmCmd.MarkFlagRequired("slot")

	slotsCmd.AddCommand(slotsListCmd)
	slotsCmd.AddCommand(slotsRmCmd)
}

// slotLayout builds the slot path resolver from configuration.
func slotLayout() (checkpoint.SlotConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return checkpoint.SlotConfig{}, err
	}
	if cfg.Slots.Dir == "" {
		return checkpoint.SlotConfig{}, fmt.Errorf("no slot directory configured: set slots.dir")
	}
	return checkpoint.SlotConfig{
		Dir:       cfg.Slots.Dir,
		Prefix:    cfg.Slots.Prefix,
		Extension: cfg.Slots.Extension,
		Backup:    cfg.Slots.Backup,
	}, nil
}

func runSlotsList(cmd *cobra.Command, args []string) error {
	layout, err := slotLayout()
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(listOutput)
	if err != nil {
		return err
	}

	dirEntries, err := os.ReadDir(layout.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(cmd.OutOrStdout(), "No slots found (%s does not exist)\n", layout.Dir)
			return nil
		}
		return err
	}

	type row struct {
		Slot     int    `json:"slot" yaml:"slot"`
		File     string `json:"file" yaml:"file"`
		Size     int64  `json:"size" yaml:"size"`
		Modified string `json:"modified" yaml:"modified"`
		Backup   bool   `json:"backup" yaml:"backup"`
	}
	var rows []row

	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		n, ok := layout.Slot(de.Name())
		if !ok {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		rows = append(rows, row{
			Slot:     n,
			File:     de.Name(),
			Size:     info.Size(),
			Modified: info.ModTime().Format(timeutil.LocalTimeFormat),
			Backup:   checkpoint.IsBackup(de.Name()),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Slot != rows[j].Slot {
			return rows[i].Slot < rows[j].Slot
		}
		return !rows[i].Backup && rows[j].Backup
	})

	if format != output.FormatTable {
		return output.NewPrinter(cmd.OutOrStdout(), format, false).Print(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No slots found in %s\n", layout.Dir)
		return nil
	}

	table := output.NewTableData("SLOT", "FILE", "SIZE", "MODIFIED", "BACKUP")
	for _, r := range rows {
		backup := ""
		if r.Backup {
			backup = "yes"
		}
		table.AddRow(
			fmt.Sprintf("%d", r.Slot),
			r.File,
			bytesize.ByteSize(r.Size).String(),
			r.Modified,
			backup,
		)
	}
	return output.PrintTable(cmd.OutOrStdout(), table)
}

func runSlotsRm(cmd *cobra.Command, args []string) error {
	layout, err := slotLayout()
	if err != nil {
		return err
	}

	path := layout.Path(rmSlot)
	backupPath := layout.BackupPath(rmSlot)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("slot %d is empty (%s)", rmSlot, filepath.Base(path))
	}

	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Remove slot %d (%s)?", rmSlot, filepath.Base(path)), rmYes)
	if err != nil {
		if prompt.IsAborted(err) {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
		return err
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
		return nil
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove slot %d: %w", rmSlot, err)
	}
	removed := []string{filepath.Base(path)}

	// The backup goes with the slot; its only purpose is undoing an
	// overwrite of this archive.
	if err := os.Remove(backupPath); err == nil {
		removed = append(removed, filepath.Base(backupPath))
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove slot %d backup: %w", rmSlot, err)
	}

	for _, name := range removed {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", name)
	}
	return nil
}
