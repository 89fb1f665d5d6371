package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/savepoint/pkg/checkpoint"
	"github.com/marmos91/savepoint/pkg/config"
	"github.com/marmos91/savepoint/pkg/machine/testmachine"
	"github.com/marmos91/savepoint/pkg/state"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Slots.Dir = filepath.Join(t.TempDir(), "slots")
	cfg.Catalog.Enabled = true
	cfg.Catalog.Watch = true
	return cfg
}

func testRegistry(t *testing.T, mem []byte) *state.Registry {
	t.Helper()
	reg, err := state.NewRegistry(
		state.NewMemoryComponent("Main Memory.bin", true, func() []byte { return mem }),
	)
	require.NoError(t, err)
	return reg
}

func TestServiceLifecycle(t *testing.T) {
	cfg := testConfig(t)
	mem := []byte{1, 2, 3, 4}
	m := testmachine.New([]byte("internals"))

	svc, err := New(cfg, m, testRegistry(t, mem))
	require.NoError(t, err)
	require.NotNil(t, svc.Engine())
	require.NotNil(t, svc.Catalog())

	// Slot directory is created up front.
	info, err := os.Stat(cfg.Slots.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	// Save through the engine once it has started.
	var task *checkpoint.Task
	require.Eventually(t, func() bool {
		task, err = svc.Engine().SaveToSlot(ctx, 1)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond, "engine did not accept a save")
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer waitCancel()
	require.NoError(t, task.Wait(waitCtx))

	// The catalog observer indexed the slot archive.
	slotPath := svc.Engine().Slots().Path(1)
	_, found, err := svc.Catalog().Get(ctx, slotPath)
	require.NoError(t, err)
	assert.True(t, found)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("service did not shut down")
	}
}

func TestServiceWithoutCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalog.Enabled = false
	cfg.Catalog.Watch = false

	svc, err := New(cfg, testmachine.New([]byte("internals")), testRegistry(t, []byte{1}))
	require.NoError(t, err)
	assert.Nil(t, svc.Catalog())
}

func TestServiceInMemoryCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalog.Watch = false
	cfg.Catalog.Dir = "" // in-memory

	svc, err := New(cfg, testmachine.New([]byte("internals")), testRegistry(t, []byte{1}))
	require.NoError(t, err)
	require.NotNil(t, svc.Catalog())
	defer svc.Catalog().Close()
}
