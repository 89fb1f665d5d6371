package archive

import (
	"fmt"

	cperrors "github.com/marmos91/savepoint/pkg/checkpoint/errors"
)

// StateVersion is the current archive format version stamped into every
// archive at write time. The high 16 bits are the major version: archives
// whose major differs from the engine's cannot be loaded at all. The low 16
// bits are the minor version and only gate archives newer than the engine.
const StateVersion uint32 = 0x0003_0002

// Major returns the major half of a format version.
func Major(v uint32) uint16 {
	return uint16(v >> 16)
}

// Minor returns the minor half of a format version.
func Minor(v uint32) uint16 {
	return uint16(v & 0xffff)
}

// FormatVersion renders a version as "major.minor" for diagnostics.
func FormatVersion(v uint32) string {
	return fmt.Sprintf("%d.%d", Major(v), Minor(v))
}

// CheckVersion applies the compatibility gate to a saved version against
// the engine's current version. An archive newer than the engine, or one
// whose major version differs at all, is rejected; an older minor under the
// same major loads.
func CheckVersion(path string, current, saved uint32) error {
	// A version from the future: support for reading it does not exist.
	if saved > current {
		return cperrors.NewIncompatibleVersion(path, current, saved)
	}

	// Major mismatch: support for the old layout was removed entirely.
	if Major(saved) != Major(current) {
		return cperrors.NewIncompatibleVersion(path, current, saved)
	}

	return nil
}
