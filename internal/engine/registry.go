package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lumenhq/lumen/internal/domain"
	"github.com/lumenhq/lumen/internal/logx"
	"github.com/lumenhq/lumen/internal/metrics"
)

var log = logx.New("engine")

// Registry implements domain.EngineRegistry: it tracks installed
// engines per (os, arch, accelerator), installs/uninstalls them via the
// download service, and refcounts dynamically loaded libraries.
type Registry struct {
	Dir        string // <root>/engines
	Downloader domain.Downloader
	Loader     Loader

	// HostOS/HostArch override runtime.GOOS/GOARCH for tests; empty uses
	// the real host shape.
	HostOS   string
	HostArch string

	mu       sync.Mutex
	refcount map[string]int // variant dir -> live handle count
}

// New returns a Registry rooted at dir, using svc for installs and the
// platform's default Loader.
func New(dir string, svc domain.Downloader) *Registry {
	return &Registry{
		Dir:        dir,
		Downloader: svc,
		Loader:     defaultLoader(),
		refcount:   make(map[string]int),
	}
}

func (r *Registry) hostShape() (string, string) {
	if r.HostOS != "" && r.HostArch != "" {
		return r.HostOS, r.HostArch
	}
	return hostShape()
}

func variantDirName(v Variant) string {
	return fmt.Sprintf("%s-%s-%s", v.OS, v.Arch, v.Accelerator)
}

func (r *Registry) installDir(name string, v Variant) string {
	return filepath.Join(r.Dir, name, variantDirName(v))
}

// GetEngineInfo consults the manifest for the current host. It returns nil
// (no error) when name is unknown to the registry entirely,
func (r *Registry) GetEngineInfo(name string) (*domain.EngineInfo, error) {
	entry := lookup(name)
	if entry == nil {
		return nil, nil
	}

	osName, arch := r.hostShape()
	variant, ok := bestVariant(entry, osName, arch)
	if !ok {
		return &domain.EngineInfo{
			Name:   name,
			Status: domain.EngineIncompatible,
		}, nil
	}

	dir := r.installDir(name, variant)
	libPath, err := findLibrary(dir)
	if err != nil {
		return &domain.EngineInfo{
			Name:    name,
			Version: variant.Version,
			Variant: variantDirName(variant),
			Status:  domain.EngineNotInstalled,
		}, nil
	}

	return &domain.EngineInfo{
		Name:        name,
		Version:     variant.Version,
		Variant:     variantDirName(variant),
		Status:      domain.EngineInstalled,
		LibraryPath: libPath,
	}, nil
}

// findLibrary returns the path of a regular file under dir, preferring a
// platform shared-library extension. Absent dir or an empty dir means
// "not installed".
func findLibrary(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		return "", fmt.Errorf("%w: %s not installed", domain.ErrEngineLoadFailed, dir)
	}
	var fallback string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext == ".so" || ext == ".dylib" || ext == ".dll" {
			return filepath.Join(dir, name), nil
		}
		if fallback == "" {
			fallback = filepath.Join(dir, name)
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("%w: %s not installed", domain.ErrEngineLoadFailed, dir)
	}
	return fallback, nil
}

// InstallEngine resolves the best-matching variant for the current host,
// downloads its archive to a temp path, and extracts it into the
// per-engine install directory. A no-op when already installed.
func (r *Registry) InstallEngine(ctx context.Context, name string) error {
	entry := lookup(name)
	if entry == nil {
		return fmt.Errorf("%w: engine %q", domain.ErrEngineUnknown, name)
	}

	osName, arch := r.hostShape()
	variant, ok := bestVariant(entry, osName, arch)
	if !ok {
		return fmt.Errorf("%w: no %s/%s build of %q", domain.ErrEngineIncompatible, osName, arch, name)
	}

	dir := r.installDir(name, variant)
	if _, err := findLibrary(dir); err == nil {
		log.Infof("engine %s already installed at %s", name, dir)
		return nil
	}

	tmpDir, err := os.MkdirTemp("", "lumen-engine-*")
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	defer os.RemoveAll(tmpDir)

	archivePath := filepath.Join(tmpDir, "archive.tar.gz")
	task := domain.DownloadTask{
		ID: uuid.NewString(),
		Items: []domain.DownloadItem{
			{URL: variant.ArchiveURL, LocalPath: archivePath},
		},
	}
	if err := r.Downloader.RunTask(ctx, task, domain.PolicyResumeAlways, nil); err != nil {
		metrics.EngineInstalls.WithLabelValues(name, "error").Inc()
		return fmt.Errorf("download engine %s: %w", name, err)
	}

	if err := extractArchive(archivePath, dir); err != nil {
		_ = os.RemoveAll(dir)
		metrics.EngineInstalls.WithLabelValues(name, "error").Inc()
		return fmt.Errorf("extract engine %s: %w", name, err)
	}
	metrics.EngineInstalls.WithLabelValues(name, "ok").Inc()
	log.Infof("installed engine %s %s to %s", name, variant.Version, dir)
	return nil
}

// UninstallEngine removes an engine's install directory. Refused while any
// handle to it is live.
func (r *Registry) UninstallEngine(name string) error {
	entry := lookup(name)
	if entry == nil {
		return fmt.Errorf("%w: engine %q", domain.ErrEngineUnknown, name)
	}

	osName, arch := r.hostShape()
	variant, ok := bestVariant(entry, osName, arch)
	if !ok {
		return fmt.Errorf("%w: no %s/%s build of %q", domain.ErrEngineIncompatible, osName, arch, name)
	}
	dir := r.installDir(name, variant)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refcount[dir] > 0 {
		return fmt.Errorf("%w: engine %q is still loaded", domain.ErrEngineLoadFailed, name)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	return nil
}

// handle implements domain.EngineHandle.
type handle struct {
	registry *Registry
	name     string
	dir      string
	lib      Library
	closed   bool
}

func (h *handle) Capability() domain.CapabilityObject { return h.lib.Capability() }

func (h *handle) Close() error {
	h.registry.mu.Lock()
	defer h.registry.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.registry.refcount[h.dir]--
	metrics.EnginesLoaded.WithLabelValues(h.name).Set(float64(h.registry.refcount[h.dir]))
	if h.registry.refcount[h.dir] <= 0 {
		delete(h.registry.refcount, h.dir)
		return h.lib.Close()
	}
	return nil
}

// Load loads name's shared library and returns an owning handle,
// incrementing the engine's refcount. Fails with ErrEngineUnknown,
// ErrEngineIncompatible, or ErrEngineLoadFailed (when not installed or the
// ABI handshake fails).
func (r *Registry) Load(name string) (domain.EngineHandle, error) {
	info, err := r.GetEngineInfo(name)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("%w: engine %q", domain.ErrEngineUnknown, name)
	}
	switch info.Status {
	case domain.EngineIncompatible:
		return nil, fmt.Errorf("%w: engine %q", domain.ErrEngineIncompatible, name)
	case domain.EngineNotInstalled:
		return nil, fmt.Errorf("%w: engine %q is not installed", domain.ErrEngineLoadFailed, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lib, err := r.Loader.Open(info.LibraryPath)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(info.LibraryPath)
	r.refcount[dir]++
	metrics.EnginesLoaded.WithLabelValues(name).Set(float64(r.refcount[dir]))
	return &handle{registry: r, name: name, dir: dir, lib: lib}, nil
}

// Unload releases h. Equivalent to h.Close(); kept to satisfy
// domain.EngineRegistry's symmetrical Load/Unload contract.
func (r *Registry) Unload(h domain.EngineHandle) error {
	return h.Close()
}
