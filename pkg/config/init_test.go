package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// pointConfigDirAt redirects getConfigDir to a temp directory. XDG_CONFIG_HOME
// works on every platform; HOME does not, because os.UserHomeDir ignores it
// on Windows.
func pointConfigDirAt(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func TestInitConfigWritesAnnotatedYAML(t *testing.T) {
	pointConfigDirAt(t)

	path, err := InitConfig(false)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	for _, section := range []string{
		"# Savepoint Configuration File",
		"logging:",
		"telemetry:",
		"engine:",
		"slots:",
		"controlplane:",
	} {
		assert.Contains(t, string(content), section)
	}

	var parsed map[string]any
	assert.NoError(t, yaml.Unmarshal(content, &parsed), "generated file must parse as YAML")
}

func TestInitConfigRefusesToOverwrite(t *testing.T) {
	pointConfigDirAt(t)

	_, err := InitConfig(false)
	require.NoError(t, err)

	_, err = InitConfig(false)
	require.Error(t, err)
}

func TestInitConfigForceOverwrites(t *testing.T) {
	pointConfigDirAt(t)

	path, err := InitConfig(false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("mangled: true\n"), 0o600))

	_, err = InitConfig(true)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "logging:", "force must regenerate the file")
}

func TestInitConfigOutputLoads(t *testing.T) {
	pointConfigDirAt(t)

	path, err := InitConfig(false)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Slots.Dir)
}
