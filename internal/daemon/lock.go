package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lumenhq/lumen/internal/domain"
)

// Lock is the exclusive hold on a data root, acquired on daemon start and
// released on clean shutdown. A second instance pointed at the same root
// fails fast with ErrFatal.
type Lock struct {
	path string
}

func lockPath(root string) string {
	return filepath.Join(root, "lumend.lock")
}

// AcquireLock creates <root>/lumend.lock exclusively and writes this
// process's PID into it. A pre-existing lock fails the acquire with
// domain.ErrFatal.
func AcquireLock(root string) (*Lock, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create data root: %v", domain.ErrIO, err)
	}

	path := lockPath(root)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: another lumend instance holds %s", domain.ErrFatal, path)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIO, err)
	}

	return &Lock{path: path}, nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	return os.Remove(l.path)
}

// ReadLockPID reads the PID recorded in a lock file, used by diagnostics.
func ReadLockPID(root string) (int, error) {
	b, err := os.ReadFile(lockPath(root))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}
