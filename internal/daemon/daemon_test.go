package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lumenhq/lumen/internal/catalog"
	"github.com/lumenhq/lumen/internal/domain"
)

func TestNewWithConfig_WiresCoreServices(t *testing.T) {
	root := t.TempDir()
	t.Setenv("LUMEN_HOME", root)

	cfg := DefaultConfig()
	d, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer d.Close()

	if d.Catalog == nil {
		t.Fatal("Catalog not wired")
	}
	if d.Resolver == nil {
		t.Fatal("Resolver not wired")
	}
	if d.Downloader == nil {
		t.Fatal("Downloader not wired")
	}
	if d.Engines == nil {
		t.Fatal("Engines not wired")
	}
	if d.Orchestrator == nil {
		t.Fatal("Orchestrator not wired")
	}
	if d.Lock == nil {
		t.Fatal("Lock not acquired")
	}
}

func TestGCStaleEntriesDropsOrphanedDownloads(t *testing.T) {
	root := t.TempDir()
	cat := catalog.New(root)

	readyDesc := filepath.Join(root, "models", "ready", "ready.yaml")
	if err := os.MkdirAll(filepath.Dir(readyDesc), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(readyDesc, []byte("id: ready\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := cat.Add(domain.ModelEntry{ModelID: "ready", Alias: "ready", PathToDescriptor: readyDesc, Status: domain.StatusReady}); err != nil {
		t.Fatal(err)
	}
	if err := cat.Add(domain.ModelEntry{ModelID: "stale", Alias: "stale", PathToDescriptor: filepath.Join(root, "models", "stale", "stale.yaml"), Status: domain.StatusDownloading}); err != nil {
		t.Fatal(err)
	}

	gcStaleEntries(cat)

	if _, err := cat.GetByID("ready"); err != nil {
		t.Errorf("READY entry should survive GC: %v", err)
	}
	if _, err := cat.GetByID("stale"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("stale DOWNLOADING entry should be dropped, err = %v", err)
	}
}

func TestNewWithConfig_SecondInstanceFailsToLock(t *testing.T) {
	root := t.TempDir()
	t.Setenv("LUMEN_HOME", root)

	cfg := DefaultConfig()
	d1, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer d1.Close()

	if _, err := NewWithConfig(cfg); err == nil {
		t.Fatal("expected second NewWithConfig to fail while the first holds the lock")
	}
}
