package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/savepoint/pkg/catalog"
	"github.com/marmos91/savepoint/pkg/checkpoint"
	"github.com/marmos91/savepoint/pkg/machine/testmachine"
	"github.com/marmos91/savepoint/pkg/state"
)

type testEnv struct {
	srv     *httptest.Server
	machine *testmachine.Machine
	mem     []byte
}

func newTestEnv(t *testing.T, m *testmachine.Machine) *testEnv {
	t.Helper()

	mem := []byte{1, 2, 3, 4}
	reg, err := state.NewRegistry(
		state.NewMemoryComponent("Main Memory.bin", true, func() []byte { return mem }),
	)
	require.NoError(t, err)

	cat, err := catalog.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	cfg := checkpoint.DefaultConfig()
	cfg.Slots.Dir = t.TempDir()
	engine := checkpoint.New(m, reg, cfg, checkpoint.WithObserver(cat))
	engine.Start(context.Background())
	t.Cleanup(func() { engine.Stop(5 * time.Second) })

	srv := httptest.NewServer(NewRouter(engine, cat))
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, machine: m, mem: mem}
}

func (e *testEnv) post(t *testing.T, path string, body any) (*http.Response, Response) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var wrapped Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&wrapped))
	return resp, wrapped
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, Response) {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var wrapped Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&wrapped))
	return resp, wrapped
}

func TestSaveAndLoadOverHTTP(t *testing.T) {
	env := newTestEnv(t, testmachine.New([]byte("internals")))
	path := filepath.Join(t.TempDir(), "state.sav")

	resp, wrapped := env.post(t, "/api/v1/save", SaveRequest{Path: path, Wait: true})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", wrapped.Status)

	// Clobber and restore.
	copy(env.mem, []byte{9, 9, 9, 9})
	env.machine.SetInternals([]byte("clobbered"))

	resp, _ = env.post(t, "/api/v1/load", LoadRequest{Path: path, Wait: true})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte{1, 2, 3, 4}, env.mem)
	assert.Equal(t, []byte("internals"), env.machine.Internals())
}

func TestSaveToSlotAccepted(t *testing.T) {
	env := newTestEnv(t, testmachine.New([]byte("internals")))

	slot := 1
	resp, wrapped := env.post(t, "/api/v1/save", SaveRequest{Slot: &slot})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "accepted", wrapped.Status)
}

func TestSaveRequiresExactlyOneTarget(t *testing.T) {
	env := newTestEnv(t, testmachine.New([]byte("internals")))
	slot := 1

	resp, _ := env.post(t, "/api/v1/save", SaveRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.post(t, "/api/v1/save", SaveRequest{Path: "/tmp/x.sav", Slot: &slot})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoadMissingArchiveIsNotFound(t *testing.T) {
	env := newTestEnv(t, testmachine.New([]byte("internals")))

	resp, wrapped := env.post(t, "/api/v1/load", LoadRequest{
		Path: filepath.Join(t.TempDir(), "missing.sav"),
		Wait: true,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "error", wrapped.Status)
	assert.NotEmpty(t, wrapped.Error)
}

func TestSaveWithNoActiveStateConflicts(t *testing.T) {
	env := newTestEnv(t, testmachine.Invalid())

	resp, _ := env.post(t, "/api/v1/save", SaveRequest{
		Path: filepath.Join(t.TempDir(), "state.sav"),
		Wait: true,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestArchiveCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t, testmachine.New([]byte("internals")))
	path := filepath.Join(t.TempDir(), "state.sav")

	resp, _ := env.post(t, "/api/v1/save", SaveRequest{Path: path, Wait: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, wrapped := env.get(t, "/api/v1/archives")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	records, ok := wrapped.Data.([]any)
	require.True(t, ok)
	require.Len(t, records, 1)

	resp, wrapped = env.post(t, "/api/v1/verify", VerifyRequest{Path: path})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result, ok := wrapped.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, result["valid"])

	resp, wrapped = env.post(t, "/api/v1/verify", VerifyRequest{Path: "/nowhere/state.sav"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result, ok = wrapped.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, result["valid"])
}

func TestSlotListing(t *testing.T) {
	env := newTestEnv(t, testmachine.New([]byte("internals")))

	slot := 2
	resp, _ := env.post(t, "/api/v1/save", SaveRequest{Slot: &slot, Wait: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, wrapped := env.get(t, "/api/v1/slots")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries, ok := wrapped.Data.([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)

	entry, ok := entries[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), entry["slot"])
	assert.Equal(t, false, entry["backup"])
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, testmachine.New([]byte("internals")))

	resp, wrapped := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", wrapped.Status)

	resp, wrapped = env.get(t, "/health/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data, ok := wrapped.Data.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, data, "queue_depth")
}

func TestAPIConfigDefaults(t *testing.T) {
	var cfg APIConfig
	cfg.applyDefaults()

	assert.Equal(t, 8484, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.IdleTimeout)
}
