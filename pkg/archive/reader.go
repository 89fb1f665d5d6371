package archive

import (
	"archive/zip"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	cperrors "github.com/marmos91/savepoint/pkg/checkpoint/errors"
)

// Reader opens an archive for a single directory scan followed by random
// access to the scanned entries.
type Reader struct {
	path string
	zr   *zip.ReadCloser
}

// Open opens the archive at path. A missing or unreadable file yields
// CannotOpenFile; a file that is not a well-formed container yields
// InvalidArchive.
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, cperrors.NewCannotOpenFile(path, err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return nil, cperrors.NewCannotOpenFile(path, err)
		}
		return nil, cperrors.NewInvalidArchive(path, err)
	}

	return &Reader{path: path, zr: zr}, nil
}

// Path returns the archive path.
func (r *Reader) Path() string {
	return r.path
}

// Files returns the archive's entries in directory order. The slice is the
// single scan the container format affords; callers classify each entry
// exactly once and keep references for later access.
func (r *Reader) Files() []*zip.File {
	return r.zr.File
}

// ReadVersion decodes the 32-bit format version from the version record.
func (r *Reader) ReadVersion(f *zip.File) (uint32, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, cperrors.NewInvalidArchive(r.path, err)
	}
	defer rc.Close()

	var v uint32
	if err := binary.Read(rc, binary.LittleEndian, &v); err != nil {
		return 0, cperrors.NewInvalidArchive(r.path, fmt.Errorf("reading version record: %w", err))
	}
	return v, nil
}

// OpenEntry opens one scanned entry for reading.
func (r *Reader) OpenEntry(f *zip.File) (io.ReadCloser, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, cperrors.NewInvalidArchive(r.path, fmt.Errorf("opening entry %q: %w", f.Name, err))
	}
	return rc, nil
}

// ReadEntry reads one scanned entry fully into memory.
func (r *Reader) ReadEntry(f *zip.File) ([]byte, error) {
	rc, err := r.OpenEntry(f)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, cperrors.NewInvalidArchive(r.path, fmt.Errorf("reading entry %q: %w", f.Name, err))
	}
	return data, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.zr.Close()
}
