package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers. Infrastructure
// implements them; the orchestrator and façades depend on them.

// Downloader abstracts resumable file acquisition.
type Downloader interface {
	// ProbeSize performs a HEAD-style request, returning 0 when size is
	// unknown. Fails with ErrNetwork on transport failure.
	ProbeSize(ctx context.Context, url string) (int64, error)

	// RunTask fetches every item synchronously, aborting before any byte is
	// written if pre-flight probing fails for any item.
	RunTask(ctx context.Context, task DownloadTask, policy ResumePolicy, onProgress func(item int, have, total int64)) error

	// RunTaskDetached spawns one worker per item and returns immediately;
	// onComplete fires once after every item reports a terminal status.
	RunTaskDetached(ctx context.Context, task DownloadTask, policy ResumePolicy, onComplete func(err error))
}

// Cataloger abstracts the persistent model inventory.
type Cataloger interface {
	LoadAll() ([]ModelEntry, error)
	GetByID(id string) (*ModelEntry, error)
	GetByAlias(alias string) (*ModelEntry, error)
	Add(entry ModelEntry) error
	UpdateAlias(id, alias string) error
	UpdateStatus(id string, status EntryStatus) error
	// Forget drops the row (and descriptor file) without touching weight
	// files, so partial downloads stay resumable. Delete also reclaims
	// the files the entry owns.
	Forget(id string) error
	Delete(id string) error
}

// DescriptorStore abstracts reading/writing model descriptor files.
type DescriptorStore interface {
	Read(path string) (*ModelDescriptor, error)
	Write(path string, d *ModelDescriptor) error
}

// Resolver abstracts handle resolution against Hugging Face and the
// curated registry.
type Resolver interface {
	GetModelRepositoryBranches(ctx context.Context, owner, repo string) ([]RepoBranch, error)
	GetDownloadableURL(owner, repo, file, branch string) string
	ResolveTask(ctx context.Context, handle ModelHandle) (DownloadTask, error)
	// EngineFor returns the provisional engine name for handle, used
	// before its descriptor exists on disk.
	EngineFor(handle ModelHandle) string
}

// EngineRegistry abstracts engine install/load/unload.
type EngineRegistry interface {
	GetEngineInfo(name string) (*EngineInfo, error)
	InstallEngine(ctx context.Context, name string) error
	UninstallEngine(name string) error
	Load(name string) (EngineHandle, error)
	Unload(h EngineHandle) error
}

// EngineHandle is an owning reference to a loaded engine library.
type EngineHandle interface {
	Capability() CapabilityObject
	Close() error
}

// Token is one generated piece of model output.
type Token struct {
	Text string
	Done bool
}

// GenerateRequest carries a prompt and sampling parameters to Generate.
type GenerateRequest struct {
	ModelID string
	Prompt  string
}

// CapabilityObject is the contract an engine's factory symbol returns.
type CapabilityObject interface {
	// ABIVersion is the handshake call: the registry refuses to use a
	// capability object whose ABI version doesn't match the version it
	// was built against.
	ABIVersion() int
	LoadModel(d *ModelDescriptor) error
	UnloadModel(id string) error
	IsLoaded(id string) bool
	Generate(ctx context.Context, req GenerateRequest, sink chan<- Token) error
	ExecutePythonFile(argv0, script, pyHome string) error
}
