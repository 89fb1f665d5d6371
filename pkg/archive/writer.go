// Package archive implements the on-disk container for machine checkpoints:
// a zip file of independently named, independently compressed streams,
// written with a temp-file-then-atomic-rename discipline.
//
// Stream order is fixed: the format version record first (uncompressed),
// then an optional preview image (uncompressed), then the internal
// structures record, then one stream per component. Readers must not rely
// on order beyond the version record being discoverable in a single
// directory scan.
package archive

import (
	"archive/zip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/flate"

	cperrors "github.com/marmos91/savepoint/pkg/checkpoint/errors"
)

// Canonical entry names for the archive's core records.
const (
	// EntryStateVersion holds one little-endian 32-bit format version.
	EntryStateVersion = "Savepoint State Version.id"

	// EntryScreenshot holds an optional encoded preview image.
	EntryScreenshot = "Screenshot.jpg"

	// EntryInternals holds the execution engine's internal structures.
	EntryInternals = "Internal Structures.dat"
)

// EqualName compares archive entry names case-insensitively, matching the
// historical reader behavior.
func EqualName(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Writer produces one archive. It writes to target + ".tmp" and replaces
// target only on Commit; any failure before Commit leaves a previous
// archive at target untouched.
type Writer struct {
	target   string
	tmpPath  string
	file     *os.File
	zw       *zip.Writer
	finished bool
}

// Create opens the temporary file for target and writes the uncompressed
// version record as the archive's first stream.
func Create(target string, version uint32, compressionLevel int) (*Writer, error) {
	tmpPath := target + ".tmp"

	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, cperrors.NewCannotCreateFile(target, err)
	}

	if compressionLevel == 0 {
		compressionLevel = flate.DefaultCompression
	}

	zw := zip.NewWriter(file)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, compressionLevel)
	})

	w := &Writer{
		target:  target,
		tmpPath: tmpPath,
		file:    file,
		zw:      zw,
	}

	vw, err := zw.CreateHeader(&zip.FileHeader{
		Name:   EntryStateVersion,
		Method: zip.Store,
	})
	if err != nil {
		w.Abort()
		return nil, cperrors.NewCannotCreateFile(target, err)
	}
	if err := binary.Write(vw, binary.LittleEndian, version); err != nil {
		w.Abort()
		return nil, cperrors.NewCannotCreateFile(target, err)
	}

	return w, nil
}

// WritePreview writes the optional preview image record, uncompressed.
// Must be called before any component entry to keep the stream order
// stable.
func (w *Writer) WritePreview(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	pw, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:   EntryScreenshot,
		Method: zip.Store,
	})
	if err != nil {
		return fmt.Errorf("creating preview entry: %w", err)
	}
	if _, err := pw.Write(data); err != nil {
		return fmt.Errorf("writing preview entry: %w", err)
	}
	return nil
}

// WriteEntry appends one named, independently deflated stream.
func (w *Writer) WriteEntry(name string, data []byte) error {
	ew, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("creating entry %q: %w", name, err)
	}
	if _, err := ew.Write(data); err != nil {
		return fmt.Errorf("writing entry %q: %w", name, err)
	}
	return nil
}

// Commit finalizes the zip directory, flushes the temp file, and atomically
// replaces the target path. After Commit the Writer is spent.
func (w *Writer) Commit() error {
	if w.finished {
		return fmt.Errorf("archive writer for %s already finished", w.target)
	}
	w.finished = true

	if err := w.zw.Close(); err != nil {
		w.discard()
		return fmt.Errorf("finalizing archive %s: %w", w.target, err)
	}
	if err := w.file.Sync(); err != nil {
		w.discard()
		return fmt.Errorf("syncing archive %s: %w", w.target, err)
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.tmpPath)
		return fmt.Errorf("closing archive %s: %w", w.target, err)
	}
	if err := os.Rename(w.tmpPath, w.target); err != nil {
		_ = os.Remove(w.tmpPath)
		return fmt.Errorf("replacing archive %s: %w", w.target, err)
	}
	return nil
}

// Abort discards the temporary file. Safe to call after a failed Commit.
func (w *Writer) Abort() {
	if w.finished {
		return
	}
	w.finished = true
	w.discard()
}

func (w *Writer) discard() {
	_ = w.file.Close()
	_ = os.Remove(w.tmpPath)
}
