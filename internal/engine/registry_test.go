package engine

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lumenhq/lumen/internal/domain"
)

// fakeDownloader writes a fixed-content fake engine archive to whatever
// LocalPath the registry asks for, instead of making a real network call.
type fakeDownloader struct {
	calls int
}

func (f *fakeDownloader) ProbeSize(ctx context.Context, url string) (int64, error) { return 0, nil }

func (f *fakeDownloader) RunTask(ctx context.Context, task domain.DownloadTask, policy domain.ResumePolicy, onProgress func(int, int64, int64)) error {
	f.calls++
	for _, item := range task.Items {
		if err := writeFakeArchive(item.LocalPath); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeDownloader) RunTaskDetached(ctx context.Context, task domain.DownloadTask, policy domain.ResumePolicy, onComplete func(error)) {
	err := f.RunTask(ctx, task, policy, nil)
	if onComplete != nil {
		onComplete(err)
	}
}

func writeFakeArchive(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	content := []byte("fake shared library bytes")
	if err := tw.WriteHeader(&tar.Header{Name: "libengine.so", Mode: 0o755, Size: int64(len(content))}); err != nil {
		return err
	}
	if _, err := tw.Write(content); err != nil {
		return err
	}
	tw.Close()
	gz.Close()
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func newTestRegistry(t *testing.T) (*Registry, *fakeDownloader) {
	t.Helper()
	dl := &fakeDownloader{}
	r := New(t.TempDir(), dl)
	r.HostOS, r.HostArch = "linux", "x86_64"
	r.Loader = &MockLoader{}
	return r, dl
}

func TestGetEngineInfo_Unknown(t *testing.T) {
	r, _ := newTestRegistry(t)
	info, err := r.GetEngineInfo("does-not-exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info != nil {
		t.Fatalf("expected nil info for unknown engine, got %+v", info)
	}
}

func TestGetEngineInfo_NotInstalled(t *testing.T) {
	r, _ := newTestRegistry(t)
	info, err := r.GetEngineInfo("llamacpp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info == nil || info.Status != domain.EngineNotInstalled {
		t.Fatalf("expected NOT_INSTALLED, got %+v", info)
	}
}

func TestGetEngineInfo_Incompatible(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.HostOS, r.HostArch = "windows", "arm64" // no such variant published
	info, err := r.GetEngineInfo("llamacpp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info == nil || info.Status != domain.EngineIncompatible {
		t.Fatalf("expected INCOMPATIBLE, got %+v", info)
	}
}

func TestInstallEngine_IdempotentAndLoad(t *testing.T) {
	r, dl := newTestRegistry(t)

	if err := r.InstallEngine(context.Background(), "llamacpp"); err != nil {
		t.Fatalf("InstallEngine: %v", err)
	}
	if dl.calls != 1 {
		t.Fatalf("expected 1 download call, got %d", dl.calls)
	}

	// Installing again is a no-op: no second download.
	if err := r.InstallEngine(context.Background(), "llamacpp"); err != nil {
		t.Fatalf("re-InstallEngine: %v", err)
	}
	if dl.calls != 1 {
		t.Fatalf("expected InstallEngine on an installed engine to skip re-download, got %d calls", dl.calls)
	}

	info, err := r.GetEngineInfo("llamacpp")
	if err != nil || info == nil || info.Status != domain.EngineInstalled {
		t.Fatalf("expected INSTALLED after install, got %+v, err=%v", info, err)
	}

	h, err := r.Load("llamacpp")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.Capability() == nil {
		t.Fatal("expected a non-nil capability object")
	}

	// UninstallEngine refuses while loaded.
	if err := r.UninstallEngine("llamacpp"); err == nil {
		t.Fatal("expected UninstallEngine to refuse while the engine is loaded")
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := r.UninstallEngine("llamacpp"); err != nil {
		t.Fatalf("UninstallEngine after release: %v", err)
	}
	if _, err := os.Stat(r.installDir("llamacpp", Variant{OS: "linux", Arch: "x86_64", Accelerator: "cuda-12.4"})); !os.IsNotExist(err) {
		t.Fatalf("expected install dir removed, stat err=%v", err)
	}
}

func TestLoad_EngineUnknown(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.Load("nonexistent"); err == nil {
		t.Fatal("expected an error loading an unknown engine")
	}
}

func TestLoad_NotInstalled(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.Load("llamacpp"); err == nil {
		t.Fatal("expected an error loading an engine that isn't installed")
	}
}
