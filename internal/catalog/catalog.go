// Package catalog implements the persistent model inventory: a flat
// JSON list keyed by model_id and alias, rewritten atomically (write
// temp, then rename) on every mutation.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lumenhq/lumen/internal/domain"
	"github.com/lumenhq/lumen/internal/metrics"
)

// Catalog is the single-writer, atomically-rewritten model inventory.
type Catalog struct {
	path string
	mu   sync.Mutex
}

// New returns a Catalog backed by <root>/models/catalog.json.
func New(root string) *Catalog {
	return &Catalog{path: filepath.Join(root, "models", "catalog.json")}
}

// LoadAll reads the whole catalog file, returning an empty slice when it
// doesn't yet exist.
func (c *Catalog) LoadAll() ([]domain.ModelEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked()
}

func (c *Catalog) loadLocked() ([]domain.ModelEntry, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return []domain.ModelEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	var entries []domain.ModelEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return entries, nil
}

func (c *Catalog) saveLocked(entries []domain.ModelEntry) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	metrics.CatalogSize.Set(float64(len(entries)))
	return nil
}

// GetByID returns the entry with the given model_id, or ErrNotFound.
func (c *Catalog) GetByID(id string) (*domain.ModelEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.loadLocked()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ModelID == id {
			return &entries[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

// GetByAlias returns the entry with the given alias, or ErrNotFound.
func (c *Catalog) GetByAlias(alias string) (*domain.ModelEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.loadLocked()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Alias == alias {
			return &entries[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

// Add inserts entry, enforcing the global uniqueness of model_id and alias.
func (c *Catalog) Add(entry domain.ModelEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry.Alias == "" {
		entry.Alias = entry.ModelID
	}

	entries, err := c.loadLocked()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.ModelID == entry.ModelID || e.Alias == entry.Alias {
			return fmt.Errorf("%w: model_id or alias already exists", domain.ErrDuplicate)
		}
	}
	entries = append(entries, entry)
	return c.saveLocked(entries)
}

// UpdateAlias sets a new alias for the entry with the given id. Fails when
// the alias is already taken by a different row.
func (c *Catalog) UpdateAlias(id, alias string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.loadLocked()
	if err != nil {
		return err
	}
	idx := -1
	for i, e := range entries {
		if e.ModelID == id {
			idx = i
		} else if e.Alias == alias {
			return fmt.Errorf("%w: alias %q taken by %q", domain.ErrDuplicate, alias, e.ModelID)
		}
	}
	if idx < 0 {
		return domain.ErrNotFound
	}
	entries[idx].Alias = alias
	return c.saveLocked(entries)
}

// UpdateStatus transitions an entry's status.
func (c *Catalog) UpdateStatus(id string, status domain.EntryStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.loadLocked()
	if err != nil {
		return err
	}
	for i := range entries {
		if entries[i].ModelID == id {
			entries[i].Status = status
			return c.saveLocked(entries)
		}
	}
	return domain.ErrNotFound
}

// Forget removes id's row and its descriptor file (when one exists) but
// leaves every weight file in place, so a later pull can resume a partial
// download. This is the rollback/garbage-collection path; Delete is the
// user-facing removal that also reclaims the weight files.
func (c *Catalog) Forget(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.loadLocked()
	if err != nil {
		return err
	}
	idx := -1
	for i, e := range entries {
		if e.ModelID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.ErrNotFound
	}

	descPath := entries[idx].PathToDescriptor
	entries = append(entries[:idx], entries[idx+1:]...)
	if err := c.saveLocked(entries); err != nil {
		return err
	}
	if descPath != "" {
		_ = os.Remove(descPath)
	}
	return nil
}

// Delete removes the entry along with the files it owns: for a pulled
// model, the whole model directory (descriptor plus weights); for an
// imported entry (descriptor under models/imported/), only the descriptor
// file — the externally referenced weight file is never touched, since
// the entry doesn't own it.
func (c *Catalog) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.loadLocked()
	if err != nil {
		return err
	}
	idx := -1
	for i, e := range entries {
		if e.ModelID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.ErrNotFound
	}

	descPath := entries[idx].PathToDescriptor
	entries = append(entries[:idx], entries[idx+1:]...)
	if err := c.saveLocked(entries); err != nil {
		return err
	}
	if descPath != "" {
		dir := filepath.Dir(descPath)
		if filepath.Base(dir) == "imported" {
			_ = os.Remove(descPath)
		} else {
			_ = os.RemoveAll(dir)
		}
	}
	return nil
}
