// Package engine implements the engine registry: a manifest of known
// engines per (os, arch, accelerator), install/uninstall via the download
// service, and refcounted dynamic load/unload of the engine's shared
// library through a pluggable Loader.
package engine

import (
	"runtime"
	"sort"
)

// acceleratorRank orders accelerators for "prefer the highest accelerator"
// tie-breaking in the compatibility matrix: GPU beats CPU.
var acceleratorRank = map[string]int{
	"cpu":   0,
	"rocm":  1,
	"metal": 1,
	"cuda":  2,
}

// Variant is one published build of an engine for a specific host shape.
type Variant struct {
	OS          string // "linux", "macos", "windows"
	Arch        string // "x86_64", "arm64"
	Accelerator string // "cpu", "cuda-12.4", "metal", "rocm-6.0"
	Version     string // semantic engine version, e.g. "0.1.48"
	ArchiveURL  string // archive to fetch on install; only tar.gz archives extract (see extractArchive)
}

func (v Variant) acceleratorFamily() string {
	for i := 0; i < len(v.Accelerator); i++ {
		if v.Accelerator[i] == '-' {
			return v.Accelerator[:i]
		}
	}
	return v.Accelerator
}

func (v Variant) rank() int {
	return acceleratorRank[v.acceleratorFamily()]
}

// Entry is one known engine's manifest: its name and every published
// variant across hosts.
type Entry struct {
	Name     string
	Variants []Variant
}

// Manifest is the built-in table of known engines and the archive each
// one publishes per host platform: llama.cpp's llama-server backend and
// the TensorRT-LLM engine.
var Manifest = []Entry{
	{
		Name: "llamacpp",
		Variants: []Variant{
			{OS: "linux", Arch: "x86_64", Accelerator: "cpu", Version: "0.1.48", ArchiveURL: "https://github.com/ggml-org/llama.cpp/releases/download/b4079/llama-b4079-bin-ubuntu-x64.tar.gz"},
			{OS: "linux", Arch: "x86_64", Accelerator: "cuda-12.4", Version: "0.1.48", ArchiveURL: "https://github.com/ggml-org/llama.cpp/releases/download/b4079/llama-b4079-bin-ubuntu-cuda-12.4-x64.tar.gz"},
			{OS: "linux", Arch: "arm64", Accelerator: "cpu", Version: "0.1.48", ArchiveURL: "https://github.com/ggml-org/llama.cpp/releases/download/b4079/llama-b4079-bin-ubuntu-arm64.tar.gz"},
			{OS: "macos", Arch: "arm64", Accelerator: "metal", Version: "0.1.48", ArchiveURL: "https://github.com/ggml-org/llama.cpp/releases/download/b4079/llama-b4079-bin-macos-arm64.tar.gz"},
			{OS: "macos", Arch: "x86_64", Accelerator: "cpu", Version: "0.1.48", ArchiveURL: "https://github.com/ggml-org/llama.cpp/releases/download/b4079/llama-b4079-bin-macos-x64.tar.gz"},
			{OS: "windows", Arch: "x86_64", Accelerator: "cpu", Version: "0.1.48", ArchiveURL: "https://github.com/ggml-org/llama.cpp/releases/download/b4079/llama-b4079-bin-win-x64.zip"},
			{OS: "windows", Arch: "x86_64", Accelerator: "cuda-12.4", Version: "0.1.48", ArchiveURL: "https://github.com/ggml-org/llama.cpp/releases/download/b4079/llama-b4079-bin-win-cuda-12.4-x64.zip"},
		},
	},
	{
		Name: "cortex.tensorrt-llm",
		Variants: []Variant{
			{OS: "linux", Arch: "x86_64", Accelerator: "cuda-12.4", Version: "0.15.0", ArchiveURL: "https://catalog.jan.ai/cortex/engines/cortex.tensorrt-llm/linux-amd64-cuda-12.4.tar.gz"},
			{OS: "windows", Arch: "x86_64", Accelerator: "cuda-12.4", Version: "0.15.0", ArchiveURL: "https://catalog.jan.ai/cortex/engines/cortex.tensorrt-llm/windows-amd64-cuda-12.4.zip"},
		},
	},
	{
		// python backs the --run_python_file exec path: a capability object
		// whose only real method is ExecutePythonFile, never loaded through
		// the catalog/descriptor pipeline.
		Name: "python",
		Variants: []Variant{
			{OS: "linux", Arch: "x86_64", Accelerator: "cpu", Version: "0.1.0", ArchiveURL: "https://catalog.jan.ai/cortex/engines/cortex.python/linux-amd64.tar.gz"},
			{OS: "linux", Arch: "arm64", Accelerator: "cpu", Version: "0.1.0", ArchiveURL: "https://catalog.jan.ai/cortex/engines/cortex.python/linux-arm64.tar.gz"},
			{OS: "macos", Arch: "arm64", Accelerator: "cpu", Version: "0.1.0", ArchiveURL: "https://catalog.jan.ai/cortex/engines/cortex.python/macos-arm64.tar.gz"},
			{OS: "macos", Arch: "x86_64", Accelerator: "cpu", Version: "0.1.0", ArchiveURL: "https://catalog.jan.ai/cortex/engines/cortex.python/macos-amd64.tar.gz"},
			{OS: "windows", Arch: "x86_64", Accelerator: "cpu", Version: "0.1.0", ArchiveURL: "https://catalog.jan.ai/cortex/engines/cortex.python/windows-amd64.zip"},
		},
	},
}

// lookup returns the manifest entry for name, or nil when the name is
// unknown to the registry entirely.
func lookup(name string) *Entry {
	for i := range Manifest {
		if Manifest[i].Name == name {
			return &Manifest[i]
		}
	}
	return nil
}

// hostShape is the (os, arch) pair the process is currently running on.
// Tests override this via Registry.HostOS/HostArch.
func hostShape() (string, string) {
	osName := runtime.GOOS
	switch osName {
	case "darwin":
		osName = "macos"
	}
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "arm64"
	}
	return osName, arch
}

// bestVariant picks the variant matching (osName, arch) with the highest
// accelerator rank, breaking ties by the highest version. Returns false
// when no variant matches the host.
func bestVariant(e *Entry, osName, arch string) (Variant, bool) {
	var candidates []Variant
	for _, v := range e.Variants {
		if v.OS == osName && v.Arch == arch {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return Variant{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].rank() != candidates[j].rank() {
			return candidates[i].rank() > candidates[j].rank()
		}
		return candidates[i].Version > candidates[j].Version
	})
	return candidates[0], true
}
