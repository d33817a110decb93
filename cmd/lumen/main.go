// Command lumen is the single-binary entrypoint: a CLI over the daemon's
// core services, plus two modes that bypass cobra entirely because they
// must run before any catalog is opened — the unsupported host check and
// the Python exec path (which reads only the config).
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/lumenhq/lumen/internal/cli"
	"github.com/lumenhq/lumen/internal/daemon"
	"github.com/lumenhq/lumen/internal/engine"
)

// version is set at build time via -ldflags.
var version = "dev"

var supportedOS = map[string]bool{"linux": true, "darwin": true, "windows": true}
var supportedArch = map[string]bool{"amd64": true, "arm64": true}

func main() {
	if !supportedOS[runtime.GOOS] || !supportedArch[runtime.GOARCH] {
		fmt.Fprintf(os.Stderr, "unsupported OS or architecture: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "--run_python_file" {
		runPythonFile(os.Args[2:])
		return
	}

	cli.Execute(version)
}

// runPythonFile loads only the python engine variant and delegates
// execution to it, bypassing the catalog and descriptor pipeline
// entirely. Usage: lumen --run_python_file <script> [py_home].
func runPythonFile(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: lumen --run_python_file <script> [py_home]")
		os.Exit(1)
	}
	script := args[0]
	pyHome := ""
	if len(args) > 1 {
		pyHome = args[1]
	}

	cfg, err := daemon.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	registry := engine.New(cfg.Engines.Dir, nil)
	handle, err := registry.Load("python")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load python engine: %v\n", err)
		os.Exit(1)
	}
	defer handle.Close()

	capability := handle.Capability()
	if err := capability.ExecutePythonFile(os.Args[0], script, pyHome); err != nil {
		fmt.Fprintf(os.Stderr, "execute %s: %v\n", script, err)
		os.Exit(1)
	}
}
