// Package daemon wires the core components (catalog, descriptor store,
// resolver, download service, engine registry, orchestrator) into a
// runnable process: acquiring the data-root lock, loading configuration,
// and serving the HTTP API.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumenhq/lumen/internal/api"
	"github.com/lumenhq/lumen/internal/catalog"
	"github.com/lumenhq/lumen/internal/descriptor"
	"github.com/lumenhq/lumen/internal/domain"
	"github.com/lumenhq/lumen/internal/download"
	"github.com/lumenhq/lumen/internal/engine"
	"github.com/lumenhq/lumen/internal/hfresolver"
	"github.com/lumenhq/lumen/internal/logx"
	"github.com/lumenhq/lumen/internal/orchestrator"
)

var log = logx.New("daemon")

// Daemon owns the data root lock and every core service, and serves the
// HTTP API.
type Daemon struct {
	Config Config
	Root   string
	Lock   *Lock

	Catalog      *catalog.Catalog
	Descriptors  descriptor.Store
	Resolver     *hfresolver.Resolver
	Downloader   *download.Service
	Engines      *engine.Registry
	Orchestrator *orchestrator.Orchestrator

	server *http.Server
}

// New loads configuration from the data root and returns a Daemon wired
// against it.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig wires a Daemon against an explicit configuration, acquiring
// the data-root lock and garbage-collecting catalog entries stranded by a
// prior unclean shutdown. Log output goes to stderr until the caller picks
// a file via UseLogFile (the CLI and the server keep separate files).
func NewWithConfig(cfg Config) (*Daemon, error) {
	root := DataRoot()

	lock, err := AcquireLock(root)
	if err != nil {
		return nil, err
	}

	dl := download.New()
	dl.MaxWorkers = cfg.Models.MaxConcurrentPulls
	engines := engine.New(cfg.Engines.Dir, dl)
	cat := catalog.New(root)
	gcStaleEntries(cat)
	resolver := hfresolver.New(cfg.Models.Dir)
	orch := orchestrator.New(cat, descriptor.Store{}, resolver, dl, engines, cfg.Models.Dir)

	return &Daemon{
		Config:       cfg,
		Root:         root,
		Lock:         lock,
		Catalog:      cat,
		Descriptors:  descriptor.Store{},
		Resolver:     resolver,
		Downloader:   dl,
		Engines:      engines,
		Orchestrator: orch,
	}, nil
}

// gcStaleEntries drops DOWNLOADING catalog rows whose descriptor never
// made it to disk — debris from a crash mid-download. Partially
// downloaded weight files are left in place so a later pull resumes them.
func gcStaleEntries(cat *catalog.Catalog) {
	entries, err := cat.LoadAll()
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.Status != domain.StatusDownloading {
			continue
		}
		if _, err := os.Stat(e.PathToDescriptor); err == nil {
			continue
		}
		log.Warnf("dropping stale DOWNLOADING entry %s", e.ModelID)
		if err := cat.Forget(e.ModelID); err != nil {
			log.Warnf("drop %s: %v", e.ModelID, err)
		}
	}
}

// UseLogFile directs the process log stream to a rotating file at path,
// leaving stderr for --verbose duplication. The CLI and the server each
// point this at their own file so one-shot command logs never interleave
// with the long-running daemon's.
func (d *Daemon) UseLogFile(path string) {
	if path == "" {
		return
	}
	if f, err := logx.NewRotatingFile(path, d.Config.Logging.MaxLines); err == nil {
		logx.SetFile(f)
	} else {
		log.Warnf("open log file %s: %v", path, err)
	}
}

// Close releases the data-root lock. Safe to call once, at process exit.
func (d *Daemon) Close() {
	if d.Lock != nil {
		_ = d.Lock.Release()
	}
}

// Serve starts the HTTP API at Config.API.Host:Port and blocks until ctx
// is cancelled or a termination signal arrives.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := api.NewServer(d.Catalog, d.Orchestrator, d.Engines)
	if d.Config.API.Metrics {
		srv.EnableMetrics()
	}

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	d.server = &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = d.server.Shutdown(shutdownCtx)
	}()

	log.Infof("serving on http://%s", addr)
	if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("%w: %v", domain.ErrServerStartFailed, err)
	}
	return nil
}
