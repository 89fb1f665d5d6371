package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCarriesCodeThroughWrapping(t *testing.T) {
	base := NewMissingComponents("/tmp/state.sav", []string{"Main Memory.bin"})
	wrapped := fmt.Errorf("restore: %w", base)

	assert.Equal(t, ErrMissingComponents, CodeOf(wrapped))
	assert.True(t, IsCode(wrapped, ErrMissingComponents))
	assert.False(t, IsCode(wrapped, ErrInvalidArchive))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrorCode(0), CodeOf(fmt.Errorf("plain")))
	assert.Equal(t, ErrorCode(0), CodeOf(nil))
}

func TestMissingComponentsEnumeratesNames(t *testing.T) {
	err := NewMissingComponents("/tmp/state.sav", []string{"Main Memory.bin", "GPU.dat"})
	assert.Equal(t, []string{"Main Memory.bin", "GPU.dat"}, err.Missing)
	assert.Contains(t, err.Error(), "Main Memory.bin")
	assert.Contains(t, err.Error(), "GPU.dat")
}

func TestUserMessageFallsBackToDiag(t *testing.T) {
	err := &CheckpointError{Code: ErrInvalidArchive, Diag: "bad header"}
	assert.Equal(t, "bad header", err.UserMessage())

	err.User = "This file is not a valid saved state."
	assert.Equal(t, "This file is not a valid saved state.", err.UserMessage())
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewCannotCreateFile("/tmp/state.sav", cause)
	require.ErrorIs(t, err, cause)
}

func TestIncompatibleVersionMessage(t *testing.T) {
	err := NewIncompatibleVersion("/tmp/state.sav", 0x0003_0002, 0x0004_0000)
	assert.Contains(t, err.Error(), "IncompatibleVersion")
	assert.Contains(t, err.Error(), "/tmp/state.sav")
}

func TestCodeNames(t *testing.T) {
	assert.Equal(t, "NoActiveState", ErrNoActiveState.String())
	assert.Equal(t, "ComponentIOError", ErrComponentIO.String())
	assert.Equal(t, "Cancelled", ErrCancelled.String())
}
