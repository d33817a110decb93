// Package hfresolver implements the upstream half of the run pipeline:
// given a user handle, it enumerates Hugging Face branches, builds the
// resolve URL for a file, and produces a domain.DownloadTask for the
// download service to execute. A curated registry maps short handles
// to known-good repos under the upstream cortexso/* namespace.
package hfresolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/lumenhq/lumen/internal/domain"
)

const defaultAPIBase = "https://huggingface.co"

// CuratedEntry maps a short handle to an owner/repo pair plus the weight
// file name the curated repo is known to publish. Engine names the
// inference backend the model pipeline should query/install before
// loading — derived here rather than from the handle text, matching the
// original's CmdInfo deriving the engine from the model's own metadata
// rather than from user input (see DESIGN.md).
type CuratedEntry struct {
	Name   string
	Owner  string
	Repo   string
	File   string
	Engine string
}

// curated is the built-in table of short-name → cortexso/* repo mappings.
var curated = []CuratedEntry{
	{Name: "tinyllama", Owner: "cortexso", Repo: "tinyllama", File: "tinyllama.gguf", Engine: "llamacpp"},
	{Name: "phi3", Owner: "cortexso", Repo: "phi3", File: "phi3.gguf", Engine: "llamacpp"},
	{Name: "qwen2.5", Owner: "cortexso", Repo: "qwen2.5", File: "qwen2.5.gguf", Engine: "llamacpp"},
	{Name: "llama3", Owner: "cortexso", Repo: "llama3", File: "llama3.gguf", Engine: "llamacpp"},
	{Name: "gemma2", Owner: "cortexso", Repo: "gemma2", File: "gemma2.gguf", Engine: "llamacpp"},
	{Name: "mistral", Owner: "cortexso", Repo: "mistral", File: "mistral.gguf", Engine: "llamacpp"},
}

// LookupCurated returns the curated entry for a short name, or nil.
func LookupCurated(name string) *CuratedEntry {
	for i := range curated {
		if curated[i].Name == name {
			return &curated[i]
		}
	}
	return nil
}

// Resolver resolves handles against the Hugging Face API.
type Resolver struct {
	APIBase string // override for tests
	Client  *http.Client
	DestDir string // models directory DownloadTask local paths are rooted under
}

// New returns a Resolver pointed at the real Hugging Face API, rooting
// produced DownloadTasks under destDir.
func New(destDir string) *Resolver {
	return &Resolver{APIBase: defaultAPIBase, Client: http.DefaultClient, DestDir: destDir}
}

func (r *Resolver) apiBase() string {
	if r.APIBase != "" {
		return r.APIBase
	}
	return defaultAPIBase
}

func (r *Resolver) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return http.DefaultClient
}

type refsResponse struct {
	Branches []domain.RepoBranch `json:"branches"`
}

// GetModelRepositoryBranches enumerates the branches of owner/repo via the
// Hugging Face refs API.
func (r *Resolver) GetModelRepositoryBranches(ctx context.Context, owner, repo string) ([]domain.RepoBranch, error) {
	url := fmt.Sprintf("%s/api/models/%s/%s/refs", r.apiBase(), owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	resp, err := r.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: refs %s/%s: status %d", domain.ErrNetwork, owner, repo, resp.StatusCode)
	}

	var parsed refsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return parsed.Branches, nil
}

// GetDownloadableURL templates the resolve URL for a file in owner/repo at
// branch (defaulting to "main").
func (r *Resolver) GetDownloadableURL(owner, repo, file, branch string) string {
	if branch == "" {
		branch = "main"
	}
	return fmt.Sprintf("%s/%s/%s/resolve/%s/%s", r.apiBase(), owner, repo, branch, file)
}

// EngineFor returns the engine a handle's model should run on: the
// curated entry's engine for curated handles, "llamacpp" (the only
// locally-inferable default for a GGUF weight file) otherwise. The run
// orchestrator treats this as provisional — once the model's own
// descriptor exists on disk, its engine field is authoritative.
func (r *Resolver) EngineFor(handle domain.ModelHandle) string {
	if handle.IsCurated() {
		if entry := LookupCurated(handle.Name); entry != nil {
			return entry.Engine
		}
	}
	return "llamacpp"
}

// ResolveTask produces a DownloadTask for handle. Curated short names look
// up their known file; owner/repo handles assume a conventional
// "<stem>.gguf" weight file matching the handle's file stem.
func (r *Resolver) ResolveTask(ctx context.Context, handle domain.ModelHandle) (domain.DownloadTask, error) {
	owner, repo, file := handle.Owner, handle.Repo, ""
	if handle.IsCurated() {
		entry := LookupCurated(handle.Name)
		if entry == nil {
			return domain.DownloadTask{}, domain.ErrNotFound
		}
		owner, repo, file = entry.Owner, entry.Repo, entry.File
	}

	branch := handle.EffectiveBranch()
	if file == "" {
		stem := handle.FileStem()
		file = stem + ".gguf"
	}

	url := r.GetDownloadableURL(owner, repo, file, branch)
	localPath := filepath.Join(r.DestDir, handle.FileStem(), file)

	return domain.DownloadTask{
		ID: handle.FileStem(),
		Items: []domain.DownloadItem{
			{URL: url, LocalPath: localPath},
		},
	}, nil
}
