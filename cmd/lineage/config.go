// Config loading for the lineage CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/rootsmith/lineage/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend = "backend"
	cfgKeyDataDir = "data_dir"

	defaultConfigDir = ".lineage"
	defaultDataDir   = ".lineage-db"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# Lineage CLI configuration

# Backend selection
backend: sqlite

# Data directory (optional; overridable by --data-dir flag)
# data_dir:
`

// loadConfig reads config.yaml from the resolved config directory using
// Viper and applies flag overrides. A missing config.yaml is not an
// error; defaults apply.
func loadConfig() (types.Config, error) {
	configDir := flagConfigDir
	if configDir == "" {
		configDir = defaultConfigDir
	}

	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyDataDir, defaultDataDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := types.Config{
		Backend: v.GetString(cfgKeyBackend),
		DataDir: v.GetString(cfgKeyDataDir),
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// ensureConfigDir creates the config directory and a default config.yaml
// on first run.
func ensureConfigDir() (string, error) {
	configDir := flagConfigDir
	if configDir == "" {
		configDir = defaultConfigDir
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	path := filepath.Join(configDir, configFileName+"."+configFileType)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
			return "", fmt.Errorf("writing default config: %w", err)
		}
	}
	return configDir, nil
}
