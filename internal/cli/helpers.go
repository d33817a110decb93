package cli

import (
	"errors"

	"github.com/lumenhq/lumen/internal/daemon"
	"github.com/lumenhq/lumen/internal/domain"
)

// exitCodeFor maps a pipeline error onto an exit code: 2 for malformed
// input, 1 for every other fatal condition.
func exitCodeFor(err error) int {
	if errors.Is(err, domain.ErrBadRequest) {
		return 2
	}
	return 1
}

// newDaemon constructs a *daemon.Daemon for the lifetime of one CLI
// invocation, pointing the log stream at the CLI log file so one-shot
// command logs never interleave with the server's. start-server switches
// to the server log before serving.
func newDaemon() (*daemon.Daemon, error) {
	d, err := daemon.New()
	if err != nil {
		return nil, err
	}
	d.UseLogFile(d.Config.Logging.CLIFile)
	return d, nil
}
