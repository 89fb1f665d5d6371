package checkpoint_test

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/savepoint/pkg/archive"
	"github.com/marmos91/savepoint/pkg/checkpoint"
	cperrors "github.com/marmos91/savepoint/pkg/checkpoint/errors"
	"github.com/marmos91/savepoint/pkg/machine"
	"github.com/marmos91/savepoint/pkg/machine/testmachine"
	"github.com/marmos91/savepoint/pkg/state"
)

// fakeDevice implements the freeze protocol for an external subsystem.
type fakeDevice struct {
	state   []byte
	loadErr error
}

func (d *fakeDevice) freeze(action state.Action, f *state.FreezeData) error {
	switch action {
	case state.ActionSize:
		f.Size = len(d.state)
	case state.ActionSave:
		copy(f.Data, d.state)
	case state.ActionLoad:
		if d.loadErr != nil {
			return d.loadErr
		}
		d.state = append([]byte(nil), f.Data...)
	}
	return nil
}

func newEngine(t *testing.T, m machine.Machine, reg *state.Registry, cfg checkpoint.Config, opts ...checkpoint.Option) *checkpoint.Engine {
	t.Helper()
	e := checkpoint.New(m, reg, cfg, opts...)
	e.Start(context.Background())
	t.Cleanup(func() { e.Stop(5 * time.Second) })
	return e
}

func mustRegistry(t *testing.T, components ...state.Component) *state.Registry {
	t.Helper()
	reg, err := state.NewRegistry(components...)
	require.NoError(t, err)
	return reg
}

func waitTask(t *testing.T, task *checkpoint.Task) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return task.Wait(ctx)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.sav")

	mem := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	dev := &fakeDevice{state: []byte{0xDE, 0xAD}}
	reg := mustRegistry(t,
		state.NewMemoryComponent("Main Memory.bin", true, func() []byte { return mem }),
		state.NewDeviceComponent("GPU.dat", false, dev.freeze),
	)
	m := testmachine.New([]byte("internals-v1"))
	e := newEngine(t, m, reg, checkpoint.DefaultConfig())

	task, err := e.SaveToFile(ctx, path)
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))

	// Save is fire-and-forget: the machine is back up once the task is done.
	assert.True(t, m.Running())
	assert.Equal(t, 1, m.Pauses)
	assert.Equal(t, 1, m.Resumes)

	// Clobber every piece of state, then restore.
	copy(mem, []byte{0, 0, 0, 0, 0, 0, 0, 0})
	dev.state = []byte{0xFF, 0xFF}
	m.SetInternals([]byte("clobbered"))

	task, err = e.LoadFromFile(ctx, path)
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))

	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, mem)
	assert.Equal(t, []byte{0xDE, 0xAD}, dev.state)
	assert.Equal(t, []byte("internals-v1"), m.Internals())
	assert.True(t, m.Running(), "restore always leaves the machine running")
	assert.Equal(t, 1, m.CacheClears)
}

func TestSaveWithNoActiveState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.sav")

	reg := mustRegistry(t, state.NewMemoryComponent("Main Memory.bin", true, func() []byte { return nil }))
	m := testmachine.Invalid()
	notifier := &testmachine.Notifier{}
	e := newEngine(t, m, reg, checkpoint.DefaultConfig(), checkpoint.WithNotifier(notifier))

	task, err := e.SaveToFile(ctx, path)
	require.NoError(t, err)

	err = waitTask(t, task)
	require.Error(t, err)
	assert.True(t, cperrors.IsCode(err, cperrors.ErrNoActiveState))
	assert.NotEmpty(t, notifier.Last())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing may reach disk on a failed save")
}

func TestVersionGate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	mem := []byte{1, 2, 3, 4}
	reg := mustRegistry(t, state.NewMemoryComponent("Main Memory.bin", true, func() []byte { return mem }))

	save := func(version uint32, name string) string {
		path := filepath.Join(dir, name)
		cfg := checkpoint.DefaultConfig()
		cfg.Version = version
		writer := newEngine(t, testmachine.New([]byte("i")), reg, cfg)
		task, err := writer.SaveToFile(ctx, path)
		require.NoError(t, err)
		require.NoError(t, waitTask(t, task))
		return path
	}

	majorMismatch := save((uint32(archive.Major(archive.StateVersion))-1)<<16, "older-major.sav")
	newerMinor := save(archive.StateVersion+1, "newer-minor.sav")
	olderMinor := save(archive.StateVersion-1, "older-minor.sav")

	m := testmachine.New([]byte("i"))
	reader := newEngine(t, m, reg, checkpoint.DefaultConfig())

	task, err := reader.LoadFromFile(ctx, majorMismatch)
	require.NoError(t, err)
	err = waitTask(t, task)
	assert.True(t, cperrors.IsCode(err, cperrors.ErrIncompatibleVersion))

	task, err = reader.LoadFromFile(ctx, newerMinor)
	require.NoError(t, err)
	err = waitTask(t, task)
	assert.True(t, cperrors.IsCode(err, cperrors.ErrIncompatibleVersion),
		"an archive newer than the engine must be rejected")

	task, err = reader.LoadFromFile(ctx, olderMinor)
	require.NoError(t, err)
	assert.NoError(t, waitTask(t, task), "an older minor under the same major must load")
}

func TestCompletenessGate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.sav")

	// The archive holds only the core records, no components.
	writerReg := mustRegistry(t, state.NewMemoryComponent("GPU.dat", false, func() []byte { return nil }))
	writer := newEngine(t, testmachine.New([]byte("i")), writerReg, checkpoint.DefaultConfig())
	task, err := writer.SaveToFile(ctx, path)
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))

	mem := []byte{7, 7, 7, 7}
	readerReg := mustRegistry(t,
		state.NewMemoryComponent("Main Memory.bin", true, func() []byte { return mem }),
		state.NewMemoryComponent("Scratchpad.bin", true, func() []byte { return mem }),
	)
	m := testmachine.New([]byte("pristine"))
	reader := newEngine(t, m, readerReg, checkpoint.DefaultConfig())

	task, err = reader.LoadFromFile(ctx, path)
	require.NoError(t, err)
	err = waitTask(t, task)
	require.Error(t, err)
	require.True(t, cperrors.IsCode(err, cperrors.ErrMissingComponents))

	var ce *cperrors.CheckpointError
	require.True(t, errors.As(err, &ce))
	assert.ElementsMatch(t, []string{"Main Memory.bin", "Scratchpad.bin"}, ce.Missing)

	// The scan is read-only: nothing on the machine was touched.
	assert.Equal(t, []byte{7, 7, 7, 7}, mem)
	assert.Equal(t, []byte("pristine"), m.Internals())
	assert.Equal(t, 0, m.CacheClears)
	assert.True(t, m.Running(), "machine resumes after a structural failure")
}

func TestZeroSizeComponentOmittedAndTolerated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.sav")

	dev := &fakeDevice{state: nil} // reports size 0
	reg := mustRegistry(t, state.NewDeviceComponent("GPU.dat", false, dev.freeze))
	e := newEngine(t, testmachine.New([]byte("i")), reg, checkpoint.DefaultConfig())

	task, err := e.SaveToFile(ctx, path)
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	for _, f := range zr.File {
		assert.NotEqual(t, "GPU.dat", f.Name, "a zero-size component contributes no entry")
	}
	zr.Close()

	task, err = e.LoadFromFile(ctx, path)
	require.NoError(t, err)
	assert.NoError(t, waitTask(t, task), "an absent optional component is not an error")
}

func TestShortReadTolerance(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.sav")

	// Hand-craft an archive whose component entry is shorter than the
	// component's live region.
	w, err := archive.Create(path, archive.StateVersion, 0)
	require.NoError(t, err)
	require.NoError(t, w.WriteEntry(archive.EntryInternals, []byte("i")))
	require.NoError(t, w.WriteEntry("Main Memory.bin", []byte{1, 2, 3}))
	require.NoError(t, w.Commit())

	mem := []byte{9, 9, 9, 9, 9, 9}
	reg := mustRegistry(t, state.NewMemoryComponent("Main Memory.bin", false, func() []byte { return mem }))
	m := testmachine.New(nil)
	e := newEngine(t, m, reg, checkpoint.DefaultConfig())

	task, err := e.LoadFromFile(ctx, path)
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task), "a truncated component entry degrades to a warning")

	assert.Equal(t, []byte{1, 2, 3, 9, 9, 9}, mem,
		"available bytes applied, remainder untouched")
}

func TestComponentFailureDuringRestoreLeavesMachinePaused(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.sav")

	w, err := archive.Create(path, archive.StateVersion, 0)
	require.NoError(t, err)
	require.NoError(t, w.WriteEntry(archive.EntryInternals, []byte("i")))
	require.NoError(t, w.WriteEntry("GPU.dat", []byte{1, 2, 3}))
	require.NoError(t, w.Commit())

	dev := &fakeDevice{state: []byte{0, 0, 0}, loadErr: errors.New("device wedged")}
	reg := mustRegistry(t, state.NewDeviceComponent("GPU.dat", true, dev.freeze))
	m := testmachine.New([]byte("i"))
	e := newEngine(t, m, reg, checkpoint.DefaultConfig())

	task, err := e.LoadFromFile(ctx, path)
	require.NoError(t, err)
	err = waitTask(t, task)
	require.Error(t, err)
	assert.True(t, cperrors.IsCode(err, cperrors.ErrComponentIO))
	assert.False(t, m.Running(), "a half-restored machine must not resume")
}

func TestSaveComponentFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.sav")

	dev := &fakeDevice{state: []byte{1}}
	failing := state.NewDeviceComponent("GPU.dat", true, func(action state.Action, f *state.FreezeData) error {
		if action == state.ActionSave {
			return errors.New("device wedged")
		}
		return dev.freeze(action, f)
	})
	reg := mustRegistry(t, failing)
	m := testmachine.New([]byte("i"))
	e := newEngine(t, m, reg, checkpoint.DefaultConfig())

	task, err := e.SaveToFile(ctx, path)
	require.NoError(t, err)
	err = waitTask(t, task)
	require.Error(t, err)
	assert.True(t, cperrors.IsCode(err, cperrors.ErrComponentIO))
	assert.True(t, m.Running(), "machine resumes after an aborted snapshot")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestBackupPolicy(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := checkpoint.DefaultConfig()
	cfg.Slots = checkpoint.SlotConfig{Dir: dir, Backup: true}

	mem := []byte{1, 1, 1, 1}
	reg := mustRegistry(t, state.NewMemoryComponent("Main Memory.bin", true, func() []byte { return mem }))
	m := testmachine.New([]byte("first"))
	e := newEngine(t, m, reg, cfg)

	task, err := e.SaveToSlot(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))

	m.SetInternals([]byte("second"))
	copy(mem, []byte{2, 2, 2, 2})

	task, err = e.SaveToSlot(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))

	slots := e.Slots()
	_, err = os.Stat(slots.Path(1))
	require.NoError(t, err)
	_, err = os.Stat(slots.BackupPath(1))
	require.NoError(t, err, "previous archive must be renamed to its backup path")

	// The backup holds the first save.
	task, err = e.LoadFromSlot(ctx, 1, true)
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))
	assert.Equal(t, []byte("first"), m.Internals())
	assert.Equal(t, []byte{1, 1, 1, 1}, mem)

	// The slot itself holds the second.
	task, err = e.LoadFromSlot(ctx, 1, false)
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))
	assert.Equal(t, []byte("second"), m.Internals())
	assert.Equal(t, []byte{2, 2, 2, 2}, mem)
}

func TestLoadFromEmptySlot(t *testing.T) {
	ctx := context.Background()

	cfg := checkpoint.DefaultConfig()
	cfg.Slots = checkpoint.SlotConfig{Dir: t.TempDir()}

	reg := mustRegistry(t, state.NewMemoryComponent("Main Memory.bin", true, func() []byte { return nil }))
	m := testmachine.New([]byte("i"))
	notifier := &testmachine.Notifier{}
	e := newEngine(t, m, reg, cfg, checkpoint.WithNotifier(notifier))

	task, err := e.LoadFromSlot(ctx, 3, false)
	require.NoError(t, err)
	assert.NoError(t, waitTask(t, task), "an empty slot is a no-op, not a failure")
	assert.Equal(t, "Slot 3 is empty.", notifier.Last())
	assert.Equal(t, 0, m.Pauses, "machine is never touched for an empty slot")
}

func TestAtomicityOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.sav")

	mem := []byte{5, 5}
	reg := mustRegistry(t, state.NewMemoryComponent("Main Memory.bin", true, func() []byte { return mem }))
	m := testmachine.New([]byte("good"))
	e := newEngine(t, m, reg, checkpoint.DefaultConfig())

	task, err := e.SaveToFile(ctx, path)
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))

	// Wedge the temp path so the next write cannot even create its file.
	require.NoError(t, os.Mkdir(path+".tmp", 0o755))

	m.SetInternals([]byte("doomed"))
	task, err = e.SaveToFile(ctx, path)
	require.NoError(t, err)
	err = waitTask(t, task)
	require.Error(t, err)
	assert.True(t, cperrors.IsCode(err, cperrors.ErrCannotCreateFile))
	require.NoError(t, os.Remove(path+".tmp"))

	// The previous archive is untouched and still loads the old state.
	m.SetInternals([]byte("clobbered"))
	task, err = e.LoadFromFile(ctx, path)
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))
	assert.Equal(t, []byte("good"), m.Internals())
}

func TestLoadOrderedAfterQueuedSave(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.sav")

	mem := make([]byte, 1<<16)
	for i := range mem {
		mem[i] = byte(i)
	}
	reg := mustRegistry(t, state.NewMemoryComponent("Main Memory.bin", true, func() []byte { return mem }))
	m := testmachine.New([]byte("i"))
	e := newEngine(t, m, reg, checkpoint.DefaultConfig())

	// Queue the load immediately behind the save, without waiting. The load
	// must block until the archive is fully on disk and then see it whole.
	saveTask, err := e.SaveToFile(ctx, path)
	require.NoError(t, err)
	loadTask, err := e.LoadFromFile(ctx, path)
	require.NoError(t, err)

	require.NoError(t, waitTask(t, saveTask))
	require.NoError(t, waitTask(t, loadTask))
	assert.True(t, m.Running())
}

func TestCancelledBeforeSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.sav")

	reg := mustRegistry(t, state.NewMemoryComponent("Main Memory.bin", true, func() []byte { return []byte{1} }))
	m := testmachine.New([]byte("i"))
	e := newEngine(t, m, reg, checkpoint.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task, err := e.SaveToFile(ctx, path)
	require.NoError(t, err)
	err = waitTask(t, task)
	require.Error(t, err)
	assert.True(t, cperrors.IsCode(err, cperrors.ErrCancelled))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSlotPathLayout(t *testing.T) {
	cfg := checkpoint.SlotConfig{Dir: "/var/lib/savepoint"}
	assert.Equal(t, "/var/lib/savepoint/slot_07.sav", cfg.Path(7))
	assert.Equal(t, "/var/lib/savepoint/slot_07.sav.backup", cfg.BackupPath(7))

	custom := checkpoint.SlotConfig{Dir: "/tmp", Prefix: "qs", Extension: ".state"}
	assert.Equal(t, "/tmp/qs_00.state", custom.Path(0))
}

func TestSlotPathParsing(t *testing.T) {
	cfg := checkpoint.SlotConfig{Dir: "/var/lib/savepoint"}

	n, ok := cfg.Slot("/var/lib/savepoint/slot_07.sav")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	n, ok = cfg.Slot("/var/lib/savepoint/slot_12.sav.backup")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	_, ok = cfg.Slot("/var/lib/savepoint/readme.txt")
	assert.False(t, ok)
	_, ok = cfg.Slot("/var/lib/savepoint/slot_xx.sav")
	assert.False(t, ok)

	assert.True(t, checkpoint.IsBackup("/x/slot_01.sav.backup"))
	assert.False(t, checkpoint.IsBackup("/x/slot_01.sav"))
}
