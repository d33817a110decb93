// Package orchestrator implements the run pipeline: the idempotent
// "from handle to chat" flow that composes the catalog, download service,
// engine registry, and descriptor store.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/lumenhq/lumen/internal/domain"
	"github.com/lumenhq/lumen/internal/gguf"
	"github.com/lumenhq/lumen/internal/logx"
	"github.com/lumenhq/lumen/internal/metrics"
)

var log = logx.New("orchestrator")

// ServerChecker reports whether the daemon's HTTP API is reachable at
// hostport.
type ServerChecker func(ctx context.Context, hostport string) bool

// ServerSpawner starts the daemon's HTTP API in the background, returning
// once the process has been launched (not once it is ready — readiness is
// polled separately via ServerChecker).
type ServerSpawner func(ctx context.Context, hostport string) error

// Orchestrator composes the catalog, descriptor store, resolver, download
// service, and engine registry into the run pipeline.
type Orchestrator struct {
	Catalog     domain.Cataloger
	Descriptors domain.DescriptorStore
	Resolver    domain.Resolver
	Downloader  domain.Downloader
	Engines     domain.EngineRegistry
	ModelsDir   string

	CheckServer ServerChecker
	StartServer ServerSpawner

	PollInterval time.Duration
	PollTimeout  time.Duration

	// ResumePolicy controls the download service's interactive-prompt
	// behavior; the CLI façade sets PolicyPrompt under a TTY, the HTTP
	// façade always uses PolicyResumeAlways.
	ResumePolicy domain.ResumePolicy

	// OnProgress, when set, receives per-item byte progress during
	// ensureCatalogEntry's download step. The CLI façade wires this to a
	// terminal progress bar; the HTTP façade leaves it nil.
	OnProgress func(item int, have, total int64)
}

// New returns an Orchestrator with production defaults for server
// start/poll (a 30s bounded deadline).
func New(catalog domain.Cataloger, descriptors domain.DescriptorStore, resolver domain.Resolver, downloader domain.Downloader, engines domain.EngineRegistry, modelsDir string) *Orchestrator {
	return &Orchestrator{
		Catalog:      catalog,
		Descriptors:  descriptors,
		Resolver:     resolver,
		Downloader:   downloader,
		Engines:      engines,
		ModelsDir:    modelsDir,
		CheckServer:  httpCheckServer,
		StartServer:  spawnServerProcess,
		PollInterval: 300 * time.Millisecond,
		PollTimeout:  30 * time.Second,
		ResumePolicy: domain.PolicyResumeAlways,
	}
}

// Result is what the pipeline hands to the chat adapter.
type Result struct {
	Entry      domain.ModelEntry
	Descriptor *domain.ModelDescriptor
	Engine     domain.EngineHandle
}

// Run executes the pipeline for handle against the daemon API at
// hostport. Every step is idempotent: re-running with no external change
// does not re-download, re-install, re-start, or re-load.
func (o *Orchestrator) Run(ctx context.Context, handle domain.ModelHandle, hostport string) (result *Result, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.RunPipelineLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	fileStem := handle.FileStem()

	entry, err := o.ensureCatalogEntry(ctx, handle, fileStem)
	if err != nil {
		return nil, err
	}

	desc, err := o.Descriptors.Read(entry.PathToDescriptor)
	if err != nil {
		return nil, fmt.Errorf("read descriptor for %s: %w", fileStem, err)
	}

	engineName := desc.Engine
	if engineName == "" {
		engineName = o.Resolver.EngineFor(handle)
		desc.Engine = engineName
	}

	info, err := o.Engines.GetEngineInfo(engineName)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrEngineUnknown, engineName)
	}
	switch info.Status {
	case domain.EngineIncompatible:
		return nil, fmt.Errorf("%w: %q", domain.ErrEngineIncompatible, engineName)
	case domain.EngineNotInstalled:
		if err := o.Engines.InstallEngine(ctx, engineName); err != nil {
			return nil, err
		}
	}

	if err := o.ensureServer(ctx, hostport); err != nil {
		return nil, err
	}

	engineHandle, err := o.Engines.Load(engineName)
	if err != nil {
		return nil, err
	}

	// Load policy: always issue ModelStart, except when the
	// engine is the GGUF runner and the model is already loaded.
	alreadyLoaded := engineName == "llamacpp" && engineHandle.Capability().IsLoaded(desc.ID)
	if !alreadyLoaded {
		if err := engineHandle.Capability().LoadModel(desc); err != nil {
			_ = engineHandle.Close()
			return nil, fmt.Errorf("%w: %v", domain.ErrEngineLoadFailed, err)
		}
	}

	return &Result{Entry: *entry, Descriptor: desc, Engine: engineHandle}, nil
}

// Pull ensures handle has a READY catalog entry, downloading it first if
// necessary. Unlike Run, it never touches the engine registry or the
// daemon server — it is the implementation behind `lumen pull` and
// `POST /models/pull`.
func (o *Orchestrator) Pull(ctx context.Context, handle domain.ModelHandle) (*domain.ModelEntry, error) {
	return o.ensureCatalogEntry(ctx, handle, handle.FileStem())
}

// Import registers a local GGUF file as a catalog entry under modelID,
// parsing its header for the descriptor and writing it under
// <root>/models/imported/<id>.yml. Fails with ErrDuplicate when modelID
// is already known, ErrParse when modelPath isn't a valid GGUF file.
func (o *Orchestrator) Import(modelID, modelPath string) (*domain.ModelEntry, error) {
	if _, err := o.Catalog.GetByID(modelID); err == nil {
		return nil, domain.ErrDuplicate
	} else if err != domain.ErrNotFound {
		return nil, err
	}

	res, err := gguf.ParseFile(modelPath)
	if err != nil {
		return nil, err
	}
	desc := res.ToDescriptor(modelID, modelPath)

	descPath := filepath.Join(o.ModelsDir, "imported", modelID+".yml")
	if err := o.Descriptors.Write(descPath, desc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIO, err)
	}

	entry := domain.ModelEntry{
		ModelID:          modelID,
		Alias:            modelID,
		PathToDescriptor: descPath,
		Status:           domain.StatusReady,
	}
	if err := o.Catalog.Add(entry); err != nil {
		_ = os.Remove(descPath)
		return nil, err
	}
	return &entry, nil
}

// ensureCatalogEntry ensures fileStem has a catalog entry: if the catalog
// doesn't know it yet, resolve and run a download task, rolling back the
// catalog entry on failure so no DOWNLOADING row is ever stranded.
func (o *Orchestrator) ensureCatalogEntry(ctx context.Context, handle domain.ModelHandle, fileStem string) (*domain.ModelEntry, error) {
	if entry, err := o.Catalog.GetByID(fileStem); err == nil {
		if entry.Status != domain.StatusDownloading {
			return entry, nil
		}
		if _, statErr := os.Stat(entry.PathToDescriptor); statErr == nil {
			return entry, nil
		}
		// a DOWNLOADING row whose descriptor never landed is debris from
		// a crashed run: drop the row (keeping any partial weight bytes
		// for resume) and pull fresh.
		log.Warnf("dropping stale DOWNLOADING entry %s", fileStem)
		if err := o.Catalog.Forget(fileStem); err != nil {
			return nil, err
		}
	} else if err != domain.ErrNotFound {
		return nil, err
	}

	task, err := o.Resolver.ResolveTask(ctx, handle)
	if err != nil {
		return nil, err
	}

	descPath := filepath.Join(o.ModelsDir, fileStem, fileStem+".yaml")
	entry := domain.ModelEntry{
		ModelID:          fileStem,
		Alias:            fileStem,
		Author:           handle.Owner,
		Branch:           handle.EffectiveBranch(),
		PathToDescriptor: descPath,
		Status:           domain.StatusDownloading,
	}
	if err := o.Catalog.Add(entry); err != nil {
		return nil, err
	}

	if err := o.Downloader.RunTask(ctx, task, o.ResumePolicy, o.OnProgress); err != nil {
		_ = o.Catalog.Forget(fileStem)
		return nil, err
	}

	desc := &domain.ModelDescriptor{
		ID:      fileStem,
		Name:    fileStem,
		Model:   fileStem,
		Created: time.Now().Unix(),
		Object:  "model",
		OwnedBy: "lumen",
		Engine:  o.Resolver.EngineFor(handle),
	}
	for _, item := range task.Items {
		desc.Files = append(desc.Files, filepath.Base(item.LocalPath))
	}
	if err := o.Descriptors.Write(descPath, desc); err != nil {
		_ = o.Catalog.Forget(fileStem)
		return nil, fmt.Errorf("%w: %v", domain.ErrIO, err)
	}

	if err := o.Catalog.UpdateStatus(fileStem, domain.StatusReady); err != nil {
		return nil, err
	}
	entry.Status = domain.StatusReady
	return &entry, nil
}

// ensureServer polls until the daemon API answers at hostport, spawning
// it once if the first probe fails.
func (o *Orchestrator) ensureServer(ctx context.Context, hostport string) error {
	if o.CheckServer == nil || o.CheckServer(ctx, hostport) {
		return nil
	}
	if o.StartServer != nil {
		if err := o.StartServer(ctx, hostport); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrServerStartFailed, err)
		}
	}

	deadline := time.Now().Add(o.PollTimeout)
	interval := o.PollInterval
	if interval <= 0 {
		interval = 300 * time.Millisecond
	}
	for time.Now().Before(deadline) {
		if o.CheckServer(ctx, hostport) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("%w: %s did not become ready within %v", domain.ErrServerStartFailed, hostport, o.PollTimeout)
}

func httpCheckServer(ctx context.Context, hostport string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+hostport+"/models", nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

func spawnServerProcess(ctx context.Context, hostport string) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	cmd := exec.Command(exe, "start-server", "--host-port", hostport)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return err
	}
	log.Infof("spawned daemon pid=%d for %s", cmd.Process.Pid, hostport)
	return cmd.Process.Release()
}
