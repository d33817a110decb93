// Package daemon resolves the data root and owns the daemon configuration
// record and startup lock file.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration record persisted at <root>/config.
type Config struct {
	API     APIConfig     `toml:"api"`
	Models  ModelsConfig  `toml:"models"`
	Engines EnginesConfig `toml:"engines"`
	Logging LoggingConfig `toml:"logging"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	Metrics     bool   `toml:"metrics"`
	MetricsPort int    `toml:"metrics_port"`
}

// ModelsConfig controls model storage and the detached download
// worker cap.
type ModelsConfig struct {
	Dir                string `toml:"dir"`
	MaxConcurrentPulls int    `toml:"max_concurrent_pulls"`
}

// EnginesConfig controls engine install storage.
type EnginesConfig struct {
	Dir string `toml:"dir"`
}

// LoggingConfig controls logging behavior. File is the long-running
// server's log; CLIFile is the one-shot command log, kept separate so the
// two streams never interleave.
type LoggingConfig struct {
	Level    string `toml:"level"`
	File     string `toml:"file"`
	CLIFile  string `toml:"cli_file"`
	MaxLines int    `toml:"max_lines"`
	Verbose  bool   `toml:"verbose"`
}

// DefaultConfig returns a sensible default configuration rooted at
// DataRoot().
func DefaultConfig() Config {
	root := DataRoot()
	return Config{
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        3928,
			Metrics:     false,
			MetricsPort: 9090,
		},
		Models: ModelsConfig{
			Dir:                filepath.Join(root, "models"),
			MaxConcurrentPulls: 4,
		},
		Engines: EnginesConfig{
			Dir: filepath.Join(root, "engines"),
		},
		Logging: LoggingConfig{
			Level:    "info",
			File:     filepath.Join(root, "logs", "lumend.log"),
			CLIFile:  filepath.Join(root, "logs", "lumen-cli.log"),
			MaxLines: 100000,
		},
	}
}

// LoadConfig reads <root>/config, falling back to defaults when absent.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(DataRoot(), "config")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to <root>/config.
func SaveConfig(cfg Config) error {
	root := DataRoot()
	if err := os.MkdirAll(root, 0o700); err != nil {
		return err
	}

	path := filepath.Join(root, "config")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// DataRoot returns the lumen data directory: $LUMEN_HOME, or ~/.lumen.
func DataRoot() string {
	if env := os.Getenv("LUMEN_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lumen")
}
