package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// InitConfig creates a starter configuration file at the default location.
//
// The generated file carries the full default configuration plus a commented
// header so users can discover the tunables without reading docs. When force
// is false an existing file is left untouched and an error is returned.
//
// Returns the path of the created file.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()

	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	cfg := GetDefaultConfig()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal default config: %w", err)
	}

	content := configFileHeader + string(data)

	if err := os.MkdirAll(GetConfigDir(), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}

const configFileHeader = `# Savepoint Configuration File
#
# Every value below can be overridden with a SAVEPOINT_* environment
# variable, e.g. SAVEPOINT_LOGGING_LEVEL=DEBUG or SAVEPOINT_SLOTS_DIR=/data.
#
# slots.dir is the only required setting: it is where numbered quick-save
# archives live. The catalog and control-plane API are optional and disabled
# by default.

`
