package daemon

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("LUMEN_HOME", t.TempDir())
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 3928 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 3928)
	}
	if cfg.Models.MaxConcurrentPulls != 4 {
		t.Errorf("Models.MaxConcurrentPulls = %d, want 4", cfg.Models.MaxConcurrentPulls)
	}
}

func TestSaveLoadConfigRoundTrip(t *testing.T) {
	t.Setenv("LUMEN_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.API.Port = 4000
	cfg.Models.MaxConcurrentPulls = 8

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.API.Port != 4000 {
		t.Errorf("API.Port = %d, want 4000", got.API.Port)
	}
	if got.Models.MaxConcurrentPulls != 8 {
		t.Errorf("Models.MaxConcurrentPulls = %d, want 8", got.Models.MaxConcurrentPulls)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("LUMEN_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Models.Dir != filepath.Join(DataRoot(), "models") {
		t.Errorf("Models.Dir = %q", cfg.Models.Dir)
	}
}
