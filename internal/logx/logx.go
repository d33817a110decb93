// Package logx is a thin wrapper over the standard log package that tags
// lines with a component prefix and supports a verbose/quiet mode.
package logx

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Logger writes component-tagged lines to an underlying *log.Logger.
type Logger struct {
	std *log.Logger
}

var (
	outMu   sync.Mutex
	fileOut io.Writer
	verbose bool
)

// sink fans each log line out to the active destinations, resolved at
// write time so SetFile reaches Loggers created before it was called
// (package-level Loggers exist from init). With a file set, lines go to
// the file, duplicated to stderr only under --verbose; with no file set,
// stderr is the sole destination.
type sink struct{}

func (sink) Write(p []byte) (int, error) {
	outMu.Lock()
	f, v := fileOut, verbose
	outMu.Unlock()

	if f == nil {
		return os.Stderr.Write(p)
	}
	n, err := f.Write(p)
	if v {
		_, _ = os.Stderr.Write(p)
	}
	return n, err
}

// New returns a Logger tagged with component.
func New(component string) *Logger {
	return &Logger{
		std: log.New(sink{}, "["+component+"] ", log.LstdFlags),
	}
}

// SetFile directs every Logger, existing and future, to write to w.
func SetFile(w io.Writer) {
	outMu.Lock()
	fileOut = w
	outMu.Unlock()
}

// SetVerbose toggles Debugf emission and the stderr duplication of
// file-bound log lines, process-wide.
func SetVerbose(v bool) {
	outMu.Lock()
	verbose = v
	outMu.Unlock()
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.std.Printf("INFO "+format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.std.Printf("WARN "+format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.std.Printf("ERROR "+format, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	outMu.Lock()
	v := verbose
	outMu.Unlock()
	if !v {
		return
	}
	l.std.Printf("DEBUG "+format, args...)
}

// Fatalf logs and exits the process with status 1.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.std.Fatalf("FATAL "+format, args...)
}

// RotatingFile is an append-only log file that rotates once it has
// accumulated maxLines lines: the current file is renamed to <path>.1
// (replacing any previous rotation) and a fresh file is opened.
type RotatingFile struct {
	mu       sync.Mutex
	path     string
	maxLines int
	lines    int
	f        *os.File
}

// NewRotatingFile opens (or creates) path for appending, counting the
// lines already present so rotation thresholds survive a restart.
func NewRotatingFile(path string, maxLines int) (*RotatingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	lines := 0
	if data, err := os.ReadFile(path); err == nil {
		lines = bytes.Count(data, []byte{'\n'})
	}
	return &RotatingFile{path: path, maxLines: maxLines, lines: lines, f: f}, nil
}

func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.f.Write(p)
	r.lines += bytes.Count(p[:n], []byte{'\n'})
	if err != nil {
		return n, err
	}

	if r.maxLines > 0 && r.lines >= r.maxLines {
		if rerr := r.rotateLocked(); rerr != nil {
			return n, rerr
		}
	}
	return n, nil
}

func (r *RotatingFile) rotateLocked() error {
	if err := r.f.Close(); err != nil {
		return err
	}
	if err := os.Rename(r.path, r.path+".1"); err != nil {
		return err
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	r.f = f
	r.lines = 0
	return nil
}

// Close releases the underlying file.
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}
