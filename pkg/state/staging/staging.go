// Package staging provides the in-memory assembly area for one complete
// snapshot before it is compressed to disk.
//
// A List couples a single growable byte buffer with the archive entries
// describing the named regions appended to it. The snapshot stage builds the
// list while the machine is paused; ownership then transfers to the write
// stage, which compresses each region into the on-disk archive and discards
// the list. The two stages never share it.
package staging

import (
	"bytes"
	"fmt"
	"io"
)

// Entry describes one named byte range within a staging buffer or archive.
type Entry struct {
	// Name is the filename-like key of the region.
	Name string

	// Offset is the byte offset of the region inside the buffer.
	Offset int64

	// Size is the byte length of the region.
	Size int64
}

// List is a staging buffer plus the entries recorded against it.
type List struct {
	buf     bytes.Buffer
	entries []Entry
}

// NewList returns an empty staging list.
func NewList() *List {
	return &List{}
}

// Pos returns the current append position in the buffer.
func (l *List) Pos() int64 {
	return int64(l.buf.Len())
}

// Writer returns the buffer as an io.Writer for appending region bytes.
func (l *List) Writer() io.Writer {
	return &l.buf
}

// Add records an entry. Entries are kept in append order.
func (l *List) Add(e Entry) {
	l.entries = append(l.entries, e)
}

// Append writes one named region produced by save and records its entry.
// Regions that produce no bytes are legitimately absent: no entry is
// recorded and recorded reports false.
func (l *List) Append(name string, save func(w io.Writer) error) (recorded bool, err error) {
	start := l.Pos()
	if err := save(&l.buf); err != nil {
		return false, err
	}
	size := l.Pos() - start
	if size == 0 {
		return false, nil
	}
	l.Add(Entry{Name: name, Offset: start, Size: size})
	return true, nil
}

// Entries returns the recorded entries in append order.
func (l *List) Entries() []Entry {
	return l.entries
}

// Len returns the total buffered byte count.
func (l *List) Len() int64 {
	return int64(l.buf.Len())
}

// Region returns the bytes described by e.
func (l *List) Region(e Entry) ([]byte, error) {
	data := l.buf.Bytes()
	if e.Offset < 0 || e.Size < 0 || e.Offset+e.Size > int64(len(data)) {
		return nil, fmt.Errorf("entry %q [%d:%d) out of staging buffer bounds (%d bytes)",
			e.Name, e.Offset, e.Offset+e.Size, len(data))
	}
	return data[e.Offset : e.Offset+e.Size], nil
}
