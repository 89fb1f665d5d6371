package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testComponent(name string) Component {
	return NewMemoryComponent(name, false, func() []byte { return nil })
}

func TestRegistryPreservesOrder(t *testing.T) {
	r, err := NewRegistry(
		testComponent("Main Memory.bin"),
		testComponent("Scratchpad.bin"),
		testComponent("VRAM.bin"),
	)
	require.NoError(t, err)
	require.Equal(t, 3, r.Len())

	names := make([]string, 0, r.Len())
	for _, c := range r.Components() {
		names = append(names, c.Filename())
	}
	assert.Equal(t, []string{"Main Memory.bin", "Scratchpad.bin", "VRAM.bin"}, names)
}

func TestRegistryLookup(t *testing.T) {
	r, err := NewRegistry(testComponent("GPU.dat"))
	require.NoError(t, err)

	c, ok := r.Lookup("GPU.dat")
	require.True(t, ok)
	assert.Equal(t, "GPU.dat", c.Filename())

	_, ok = r.Lookup("nope")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(testComponent("GPU.dat"), testComponent("GPU.dat"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	_, err := NewRegistry(testComponent(""))
	require.Error(t, err)
}
