package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/savepoint/pkg/archive"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func writeArchive(t *testing.T, dir, name string, components map[string][]byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	w, err := archive.Create(path, archive.StateVersion, 0)
	require.NoError(t, err)
	require.NoError(t, w.WriteEntry(archive.EntryInternals, []byte("internals")))
	for entry, data := range components {
		require.NoError(t, w.WriteEntry(entry, data))
	}
	require.NoError(t, w.Commit())
	return path
}

func TestIndexRecordsArchiveShape(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)
	path := writeArchive(t, t.TempDir(), "state.sav", map[string][]byte{
		"Main Memory.bin": {1, 2, 3, 4},
	})

	rec, err := c.Index(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, path, rec.Path)
	assert.Equal(t, archive.StateVersion, rec.Version)
	assert.Equal(t, []string{"Main Memory.bin"}, rec.Components)
	assert.False(t, rec.HasPreview)
	assert.NotEmpty(t, rec.Digest)
	assert.Positive(t, rec.Size)

	got, found, err := c.Get(ctx, path)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec.Digest, got.Digest)
}

func TestVerifyDetectsTampering(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)
	path := writeArchive(t, t.TempDir(), "state.sav", nil)

	_, err := c.Index(ctx, path)
	require.NoError(t, err)

	ok, err := c.Verify(ctx, path)
	require.NoError(t, err)
	assert.True(t, ok)

	// Flip a byte and verify again.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	ok, err = c.Verify(ctx, path)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyUnindexedPath(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	ok, err := c.Verify(ctx, "/nowhere/state.sav")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)
	dir := t.TempDir()

	a := writeArchive(t, dir, "a.sav", nil)
	b := writeArchive(t, dir, "b.sav", nil)

	_, err := c.Index(ctx, a)
	require.NoError(t, err)
	_, err = c.Index(ctx, b)
	require.NoError(t, err)

	records, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	require.NoError(t, c.Delete(ctx, a))
	records, err = c.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, b, records[0].Path)

	// Deleting an unindexed path is a no-op.
	assert.NoError(t, c.Delete(ctx, a))
}

func TestArchiveWrittenIndexes(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)
	path := writeArchive(t, t.TempDir(), "state.sav", nil)

	c.ArchiveWritten(ctx, path)

	_, found, err := c.Get(ctx, path)
	require.NoError(t, err)
	assert.True(t, found)

	// A bogus path must not error out, only log.
	c.ArchiveWritten(ctx, "/nowhere/state.sav")
}
