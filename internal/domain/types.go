package domain

import "strings"

// ─── Handles & Status ───────────────────────────────────────────────────────

// EntryStatus is the lifecycle state of a catalog entry.
type EntryStatus string

const (
	StatusDownloading EntryStatus = "DOWNLOADING"
	StatusReady       EntryStatus = "READY"
	StatusError       EntryStatus = "ERROR"
)

// EngineStatus is the install state of an engine for the current host.
type EngineStatus string

const (
	EngineNotInstalled EngineStatus = "NOT_INSTALLED"
	EngineInstalled    EngineStatus = "INSTALLED"
	EngineIncompatible EngineStatus = "INCOMPATIBLE"
)

// ModelHandle is a user-facing model reference: a curated short name, or
// owner/repo, or owner/repo:branch. Branch defaults to "main".
type ModelHandle struct {
	Name   string // curated registry lookup; empty when Owner/Repo set
	Owner  string
	Repo   string
	Branch string
}

// IsCurated reports whether the handle is a bare curated-registry name
// rather than an owner/repo pair.
func (h ModelHandle) IsCurated() bool {
	return h.Owner == "" && h.Repo == ""
}

// EffectiveBranch returns Branch, defaulting to "main".
func (h ModelHandle) EffectiveBranch() string {
	if h.Branch == "" {
		return "main"
	}
	return h.Branch
}

// ParseHandle parses a user-typed model reference into a ModelHandle: a
// bare curated name, "owner/repo", or "owner/repo:branch".
func ParseHandle(s string) ModelHandle {
	rest, branch := s, ""
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		rest, branch = s[:i], s[i+1:]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return ModelHandle{Owner: rest[:i], Repo: rest[i+1:], Branch: branch}
	}
	return ModelHandle{Name: rest, Branch: branch}
}

// FileStem is the canonical on-disk key derived from the handle: repo when
// branch is main, else repo-branch.
func (h ModelHandle) FileStem() string {
	repo := h.Repo
	if repo == "" {
		repo = h.Name
	}
	branch := h.EffectiveBranch()
	if branch == "main" {
		return repo
	}
	return repo + "-" + branch
}

// RepoBranch is one branch of a remote model repository.
type RepoBranch struct {
	Name string `json:"name"`
	Ref  string `json:"ref"`
}

// ─── Catalog ─────────────────────────────────────────────────────────────

// ModelEntry is one row of the model catalog.
type ModelEntry struct {
	ModelID          string      `json:"model_id"`
	Alias            string      `json:"alias"`
	Author           string      `json:"author,omitempty"`
	Branch           string      `json:"branch,omitempty"`
	PathToDescriptor string      `json:"path_to_descriptor"`
	Status           EntryStatus `json:"status"`
}

// ─── Model Descriptor ──────────────────────────────────────────────────

// ModelDescriptor is the per-model configuration record, partitioned into
// identity, sampling, load, and host-compatibility groups. Optional
// numeric/bool fields are pointers so ToWire can omit them instead of
// carrying a NaN sentinel.
type ModelDescriptor struct {
	// Identity
	ID      string   `yaml:"id" json:"id"`
	Name    string   `yaml:"name" json:"name"`
	Model   string   `yaml:"model" json:"model"`
	Version string   `yaml:"version,omitempty" json:"version,omitempty"`
	Files   []string `yaml:"files,omitempty" json:"files,omitempty"`
	Created int64    `yaml:"created" json:"created"`
	Object  string   `yaml:"object,omitempty" json:"object,omitempty"`
	OwnedBy string   `yaml:"owned_by,omitempty" json:"owned_by,omitempty"`

	// Inference parameters (sampling)
	Stop             []string `yaml:"stop,omitempty" json:"stop,omitempty"`
	Stream           *bool    `yaml:"stream,omitempty" json:"stream,omitempty"`
	TopP             *float64 `yaml:"top_p,omitempty" json:"top_p,omitempty"`
	Temperature      *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	FrequencyPenalty *float64 `yaml:"frequency_penalty,omitempty" json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `yaml:"presence_penalty,omitempty" json:"presence_penalty,omitempty"`
	MaxTokens        *int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Seed             *int     `yaml:"seed,omitempty" json:"seed,omitempty"`
	DynatempRange    *float64 `yaml:"dynatemp_range,omitempty" json:"dynatemp_range,omitempty"`
	DynatempExponent *float64 `yaml:"dynatemp_exponent,omitempty" json:"dynatemp_exponent,omitempty"`
	TopK             *int     `yaml:"top_k,omitempty" json:"top_k,omitempty"`                   // default 40
	MinP             *float64 `yaml:"min_p,omitempty" json:"min_p,omitempty"`                   // default 0.05
	TfsZ             *float64 `yaml:"tfs_z,omitempty" json:"tfs_z,omitempty"`                   // default 1.0
	TypP             *float64 `yaml:"typ_p,omitempty" json:"typ_p,omitempty"`                   // default 1.0
	RepeatLastN      *int     `yaml:"repeat_last_n,omitempty" json:"repeat_last_n,omitempty"`   // default 64
	RepeatPenalty    *float64 `yaml:"repeat_penalty,omitempty" json:"repeat_penalty,omitempty"` // default 1.0
	Mirostat         *int     `yaml:"mirostat,omitempty" json:"mirostat,omitempty"`
	MirostatTau      *float64 `yaml:"mirostat_tau,omitempty" json:"mirostat_tau,omitempty"` // default 5.0
	MirostatEta      *float64 `yaml:"mirostat_eta,omitempty" json:"mirostat_eta,omitempty"` // default 0.1
	PenalizeNl       *bool    `yaml:"penalize_nl,omitempty" json:"penalize_nl,omitempty"`
	IgnoreEos        *bool    `yaml:"ignore_eos,omitempty" json:"ignore_eos,omitempty"`
	NProbs           *int     `yaml:"n_probs,omitempty" json:"n_probs,omitempty"`
	MinKeep          *int     `yaml:"min_keep,omitempty" json:"min_keep,omitempty"`
	Grammar          string   `yaml:"grammar,omitempty" json:"grammar,omitempty"`

	// Load parameters
	Engine             string `yaml:"engine" json:"engine"` // required
	PromptTemplate     string `yaml:"prompt_template,omitempty" json:"prompt_template,omitempty"`
	SystemTemplate     string `yaml:"system_template,omitempty" json:"system_template,omitempty"`
	UserTemplate       string `yaml:"user_template,omitempty" json:"user_template,omitempty"`
	AiTemplate         string `yaml:"ai_template,omitempty" json:"ai_template,omitempty"`
	CtxLen             *int   `yaml:"ctx_len,omitempty" json:"ctx_len,omitempty"`
	Ngl                *int   `yaml:"ngl,omitempty" json:"ngl,omitempty"`
	Tp                 *int   `yaml:"tp,omitempty" json:"tp,omitempty"`
	Precision          string `yaml:"precision,omitempty" json:"precision,omitempty"`
	QuantizationMethod string `yaml:"quantization_method,omitempty" json:"quantization_method,omitempty"`
	TrtllmVersion      string `yaml:"trtllm_version,omitempty" json:"trtllm_version,omitempty"`

	// Host compatibility
	OS        string `yaml:"os,omitempty" json:"os,omitempty"`
	GpuArch   string `yaml:"gpu_arch,omitempty" json:"gpu_arch,omitempty"`
	TextModel *bool  `yaml:"text_model,omitempty" json:"text_model,omitempty"`

	// Extra holds unknown keys encountered on read, preserved verbatim so
	// Write/Read round-trips losslessly. Populated by internal/descriptor.
	Extra map[string]interface{} `yaml:"-" json:"-"`
}

// IsTensorRT reports whether this descriptor's engine is the TRT-LLM
// backend, the only engine for which trtllm_version/tp are emitted.
func (d *ModelDescriptor) IsTensorRT() bool {
	return d.Engine == "cortex.tensorrt-llm"
}

// ─── Download ───────────────────────────────────────────────────────

// DownloadItem is one file to fetch.
type DownloadItem struct {
	URL           string
	LocalPath     string
	ExpectedBytes int64 // 0 = unknown, disables resume
}

// DownloadTask groups the items of one fetch operation.
type DownloadTask struct {
	ID    string
	Items []DownloadItem
}

// ResumePolicy controls how the download service handles a partially
// downloaded file: ask the user, always resume, or always restart.
type ResumePolicy int

const (
	PolicyPrompt ResumePolicy = iota
	PolicyResumeAlways
	PolicyRestartAlways
)

// ─── Engine Registry ───────────────────────────────────────────────────

// EngineInfo describes one engine's install state for the current host.
type EngineInfo struct {
	Name        string
	Version     string
	Variant     string // os+arch+accelerator tuple, e.g. "linux-x86_64-cuda-12"
	Status      EngineStatus
	LibraryPath string // set only when Status == EngineInstalled
}
