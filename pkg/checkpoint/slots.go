package checkpoint

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// BackupSuffix is appended to an archive path when the backup policy
// displaces an existing file.
const BackupSuffix = ".backup"

// SlotConfig resolves numbered quick-save slots to archive paths.
type SlotConfig struct {
	// Dir is the directory holding slot archives.
	Dir string

	// Prefix is the filename prefix for slot archives. Defaults to "slot".
	Prefix string

	// Extension is the archive filename extension. Defaults to ".sav".
	Extension string

	// Backup renames an existing archive at the slot path to a .backup
	// suffix before a save replaces it.
	Backup bool
}

func (c SlotConfig) withDefaults() SlotConfig {
	if c.Prefix == "" {
		c.Prefix = "slot"
	}
	if c.Extension == "" {
		c.Extension = ".sav"
	}
	return c
}

// Path returns the archive path for a slot number.
func (c SlotConfig) Path(slot int) string {
	c = c.withDefaults()
	return filepath.Join(c.Dir, fmt.Sprintf("%s_%02d%s", c.Prefix, slot, c.Extension))
}

// BackupPath returns the backup archive path for a slot number.
func (c SlotConfig) BackupPath(slot int) string {
	return c.Path(slot) + BackupSuffix
}

// Slot extracts the slot number from an archive path produced by Path or
// BackupPath. The second return is false for paths outside the slot layout.
func (c SlotConfig) Slot(path string) (int, bool) {
	c = c.withDefaults()

	name := strings.TrimSuffix(filepath.Base(path), BackupSuffix)
	if !strings.HasPrefix(name, c.Prefix+"_") || !strings.HasSuffix(name, c.Extension) {
		return 0, false
	}

	num := strings.TrimSuffix(strings.TrimPrefix(name, c.Prefix+"_"), c.Extension)
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsBackup reports whether path names a backup archive.
func IsBackup(path string) bool {
	return strings.HasSuffix(path, BackupSuffix)
}
