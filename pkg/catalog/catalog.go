// Package catalog maintains a local index of known archives: for every
// archive it records the format version, size, content digest, and the
// component entries present. The engine feeds it through the
// archive-written observer; the CLI and control-plane API read it for slot
// listings and digest verification.
//
// The catalog is advisory. Checkpoint operation never fails because the
// catalog is stale or unavailable; it is rebuilt from the archives
// themselves at any time.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/savepoint/internal/logger"
	"github.com/marmos91/savepoint/internal/telemetry"
	"github.com/marmos91/savepoint/pkg/archive"
)

// Record describes one indexed archive.
type Record struct {
	// Path is the absolute archive path; it is also the catalog key.
	Path string `json:"path"`

	// Version is the archive's format version.
	Version uint32 `json:"version"`

	// Size is the archive file size in bytes.
	Size int64 `json:"size"`

	// Digest is the BLAKE2b-256 digest of the archive file, hex encoded.
	Digest string `json:"digest"`

	// Components lists the component entry names present in the archive.
	Components []string `json:"components"`

	// HasPreview reports whether the archive carries a preview image.
	HasPreview bool `json:"has_preview"`

	// CreatedAt is when the record was indexed.
	CreatedAt time.Time `json:"created_at"`
}

// Key namespace: records live under "r:<path>". Single prefix; the path is
// unique per archive.
const prefixRecord = "r:"

func keyRecord(path string) []byte {
	return []byte(prefixRecord + path)
}

// Catalog is a badger-backed archive index.
type Catalog struct {
	db *badger.DB
}

// Open opens (or creates) a catalog database at dir.
func Open(dir string) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating catalog directory %s: %w", dir, err)
	}

	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}
	return &Catalog{db: db}, nil
}

// OpenInMemory opens an ephemeral catalog, used in tests and when no data
// directory is configured.
func OpenInMemory() (*Catalog, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory catalog: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close releases the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Put stores or replaces a record.
func (c *Catalog) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding record for %s: %w", rec.Path, err)
		}
		if err := txn.Set(keyRecord(rec.Path), data); err != nil {
			return fmt.Errorf("storing record for %s: %w", rec.Path, err)
		}
		return nil
	})
}

// Get returns the record for path, or false when the path is not indexed.
func (c *Catalog) Get(ctx context.Context, path string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	var rec Record
	found := false

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyRecord(path))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("decoding record for %s: %w", path, err)
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("reading record for %s: %w", path, err)
	}
	return rec, found, nil
}

// Delete removes the record for path. Removing an unindexed path is a no-op.
func (c *Catalog) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(keyRecord(path))
	})
}

// List returns all records, ordered by path.
func (c *Catalog) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []Record

	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixRecord)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				var rec Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("decoding record: %w", err)
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

// Index scans the archive at path and stores a fresh record for it.
func (c *Catalog) Index(ctx context.Context, path string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return Record{}, fmt.Errorf("indexing %s: %w", path, err)
	}

	digest, err := DigestFile(path)
	if err != nil {
		return Record{}, err
	}

	r, err := archive.Open(path)
	if err != nil {
		return Record{}, err
	}
	defer r.Close()

	rec := Record{
		Path:      path,
		Size:      info.Size(),
		Digest:    digest,
		CreatedAt: time.Now().UTC(),
	}

	for _, f := range r.Files() {
		switch {
		case archive.EqualName(f.Name, archive.EntryStateVersion):
			v, err := r.ReadVersion(f)
			if err != nil {
				return Record{}, err
			}
			rec.Version = v
		case archive.EqualName(f.Name, archive.EntryScreenshot):
			rec.HasPreview = true
		case archive.EqualName(f.Name, archive.EntryInternals):
			// Core record, not a component.
		default:
			rec.Components = append(rec.Components, f.Name)
		}
	}

	if err := c.Put(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Verify re-hashes the archive at path against its recorded digest. It
// returns false with a nil error when the digests differ or the path is not
// indexed.
func (c *Catalog) Verify(ctx context.Context, path string) (bool, error) {
	ctx, span := telemetry.StartStageSpan(ctx, telemetry.SpanVerify, path)
	defer span.End()

	rec, found, err := c.Get(ctx, path)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	digest, err := DigestFile(path)
	if err != nil {
		return false, err
	}
	return digest == rec.Digest, nil
}

// ArchiveWritten implements the engine's archive-written observer: every
// committed archive is re-indexed. Failures are logged, never propagated,
// because the catalog must not interfere with checkpointing.
func (c *Catalog) ArchiveWritten(ctx context.Context, path string) {
	if _, err := c.Index(ctx, path); err != nil {
		logger.WarnCtx(ctx, "Catalog index failed",
			logger.Path(path), logger.Err(err))
		return
	}
	logger.DebugCtx(ctx, "Archive indexed", logger.Path(path))
}
