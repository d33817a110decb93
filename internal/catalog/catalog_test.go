package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lumenhq/lumen/internal/domain"
)

func TestAddAndGetByIDAndAlias(t *testing.T) {
	c := New(t.TempDir())

	entry := domain.ModelEntry{ModelID: "tinyllama", Alias: "tl", Status: domain.StatusReady}
	if err := c.Add(entry); err != nil {
		t.Fatalf("Add: %v", err)
	}

	byID, err := c.GetByID("tinyllama")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	byAlias, err := c.GetByAlias("tl")
	if err != nil {
		t.Fatalf("GetByAlias: %v", err)
	}
	if byID.ModelID != byAlias.ModelID {
		t.Errorf("lookup mismatch: %+v vs %+v", byID, byAlias)
	}
}

func TestAddDuplicateModelIDFails(t *testing.T) {
	c := New(t.TempDir())
	_ = c.Add(domain.ModelEntry{ModelID: "m", Alias: "m1"})

	err := c.Add(domain.ModelEntry{ModelID: "m", Alias: "m2"})
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestAddDuplicateAliasFails(t *testing.T) {
	c := New(t.TempDir())
	_ = c.Add(domain.ModelEntry{ModelID: "m1", Alias: "shared"})

	err := c.Add(domain.ModelEntry{ModelID: "m2", Alias: "shared"})
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestUpdateAliasRejectsTakenAlias(t *testing.T) {
	c := New(t.TempDir())
	_ = c.Add(domain.ModelEntry{ModelID: "m1", Alias: "a1"})
	_ = c.Add(domain.ModelEntry{ModelID: "m2", Alias: "a2"})

	err := c.UpdateAlias("m1", "a2")
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestDeleteRemovesEntryAndDescriptor(t *testing.T) {
	dir := t.TempDir()
	descPath := filepath.Join(dir, "models", "m", "m.yaml")
	if err := os.MkdirAll(filepath.Dir(descPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(descPath, []byte("id: m\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := New(dir)

	if err := c.Add(domain.ModelEntry{ModelID: "m", Alias: "m", PathToDescriptor: descPath}); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete("m"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.GetByID("m"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID after delete: err = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(descPath); !os.IsNotExist(err) {
		t.Errorf("descriptor should be removed, stat err = %v", err)
	}
}

func TestForgetLeavesWeightFiles(t *testing.T) {
	dir := t.TempDir()
	modelDir := filepath.Join(dir, "models", "m")
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		t.Fatal(err)
	}
	descPath := filepath.Join(modelDir, "m.yaml")
	if err := os.WriteFile(descPath, []byte("id: m\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	weightPath := filepath.Join(modelDir, "m.gguf")
	if err := os.WriteFile(weightPath, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(dir)
	if err := c.Add(domain.ModelEntry{ModelID: "m", Alias: "m", PathToDescriptor: descPath, Status: domain.StatusDownloading}); err != nil {
		t.Fatal(err)
	}
	if err := c.Forget("m"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if _, err := c.GetByID("m"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID after forget: err = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(descPath); !os.IsNotExist(err) {
		t.Errorf("descriptor should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(weightPath); err != nil {
		t.Errorf("partial weight file should survive Forget: %v", err)
	}
}

func TestDeleteImportedEntryKeepsExternalWeights(t *testing.T) {
	dir := t.TempDir()
	descPath := filepath.Join(dir, "models", "imported", "m.yml")
	if err := os.MkdirAll(filepath.Dir(descPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(descPath, []byte("id: m\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	weightPath := filepath.Join(dir, "external.gguf")
	if err := os.WriteFile(weightPath, []byte("w"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(dir)
	if err := c.Add(domain.ModelEntry{ModelID: "m", Alias: "m", PathToDescriptor: descPath}); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete("m"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(descPath); !os.IsNotExist(err) {
		t.Errorf("descriptor should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(weightPath); err != nil {
		t.Errorf("external weight file should survive delete: %v", err)
	}
}

func TestDeleteUnknownIDFails(t *testing.T) {
	c := New(t.TempDir())
	err := c.Delete("nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
